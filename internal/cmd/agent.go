package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	leadagent "github.com/lihan0705/lead-agent"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/internal/config"
	"github.com/lihan0705/lead-agent/llm"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/session/sqlite"
)

// agentFlags are the per-command overrides for agent assembly, shared by
// run and chat.
type agentFlags struct {
	model       string
	workingDir  string
	autoApprove bool
	noSubagents bool
	noMemory    bool
	assistantID string
	session     string
}

func registerAgentFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", `model kind, "qwen" or "gemini" (default from config)`)
	cmd.Flags().String("working-dir", "", "directory scoping file tools, the shell and project memory (default: current directory)")
	cmd.Flags().Bool("auto-approve", false, "run tool calls without interactive approval")
	cmd.Flags().Bool("no-subagents", false, "disable the task delegation tool")
	cmd.Flags().Bool("no-memory", false, "disable agent.md memory injection")
	cmd.Flags().String("assistant-id", "", "assistant id scoping user-level memory")
	cmd.Flags().String("session", "", "session id to create or resume")
}

func readAgentFlags(cmd *cobra.Command) agentFlags {
	var f agentFlags
	f.model, _ = cmd.Flags().GetString("model")
	f.workingDir, _ = cmd.Flags().GetString("working-dir")
	f.autoApprove, _ = cmd.Flags().GetBool("auto-approve")
	f.noSubagents, _ = cmd.Flags().GetBool("no-subagents")
	f.noMemory, _ = cmd.Flags().GetBool("no-memory")
	f.assistantID, _ = cmd.Flags().GetString("assistant-id")
	f.session, _ = cmd.Flags().GetString("session")
	return f
}

// buildModel constructs the model for the configured kind, layering config
// values over the deployment defaults in the llm package.
func buildModel(cfg *config.Config, kindOverride string) (model.Model, error) {
	kind := cfg.Model.Kind
	if kindOverride != "" {
		kind = kindOverride
	}

	switch kind {
	case config.ModelGemini:
		return llm.BuildGemini(func(o *llm.GeminiOptions) {
			if cfg.Model.APIKey != "" {
				o.APIKey = cfg.Model.APIKey
			}
			if cfg.Model.MaxTokens > 0 {
				o.MaxTokens = int(cfg.Model.MaxTokens)
			}
			if cfg.Model.Temperature > 0 {
				o.Temperature = cfg.Model.Temperature
			}
			o.RequestsPerMinute = cfg.Model.RequestsPerMinute
		})
	case config.ModelQwen:
		return llm.BuildQwen(func(o *llm.QwenOptions) {
			if cfg.Model.BaseURL != "" {
				o.BaseURL = cfg.Model.BaseURL
			}
			if cfg.Model.APIKey != "" {
				o.APIKey = cfg.Model.APIKey
			}
			if cfg.Model.CACertFile != "" {
				o.CACertFile = cfg.Model.CACertFile
			}
			if cfg.Model.MaxTokens > 0 {
				o.MaxTokens = cfg.Model.MaxTokens
			}
			if cfg.Model.Temperature > 0 {
				o.Temperature = cfg.Model.Temperature
			}
			o.RequestsPerMinute = cfg.Model.RequestsPerMinute
		})
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}

// newSessionStore builds the configured session store. The returned closer
// is non-nil when the store holds external resources.
func newSessionStore(cfg *config.Config) (core.SessionStore, func() error, error) {
	switch cfg.Session.Store {
	case config.StoreSQLite:
		path := cfg.Session.SQLitePath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create session store directory: %w", err)
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return store, store.Close, nil
	default:
		return session.NewInMemoryStore(), nil, nil
	}
}

// buildAgent assembles the root agent from configuration plus command-line
// overrides. Flags win over config values.
func buildAgent(ctx *Context, flags agentFlags) (*leadagent.Agent, error) {
	m, err := buildModel(ctx.Config, flags.model)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newSessionStore(ctx.Config)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		ctx.OnClose(closeStore)
	}

	agentCfg := ctx.Config.Agent

	return leadagent.New(m, func(o *leadagent.Options) {
		o.WorkingDir = firstNonEmpty(flags.workingDir, agentCfg.WorkingDir)
		o.AutoApprove = agentCfg.AutoApprove || flags.autoApprove
		o.EnableSubagents = agentCfg.Subagents && !flags.noSubagents
		o.EnableMemory = agentCfg.Memory && !flags.noMemory
		o.AssistantID = firstNonEmpty(flags.assistantID, agentCfg.AssistantID)
		o.SessionStore = store
		o.Logger = ctx.Logger
		if agentCfg.MaxModelCalls > 0 {
			o.MaxModelCalls = agentCfg.MaxModelCalls
		}
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
