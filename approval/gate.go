package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/logging"
)

// RejectionMessage is the function response text emitted in place of a tool
// result when the user rejects a call.
const RejectionMessage = "Tool call rejected by the user. Do not retry it; adjust the plan or ask for guidance."

// GateOptions configure a Gate.
type GateOptions struct {
	// Logger records decisions. Defaults to a no-op logger.
	Logger logging.Logger
}

// Gate checks pending tool calls against interrupt configs. Ungated tools
// pass straight through; gated tools are described and put to the prompter.
// A nil *Gate approves everything, so flows can treat "no gate" and
// "auto-approve" the same way.
type Gate struct {
	prompter   Prompter
	configs    map[string]InterruptConfig
	workingDir string
	logger     logging.Logger
}

// NewGate creates an approval gate.
func NewGate(prompter Prompter, configs map[string]InterruptConfig, workingDir string, optFns ...func(o *GateOptions)) *Gate {
	opts := GateOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gate{
		prompter:   prompter,
		configs:    configs,
		workingDir: workingDir,
		logger:     opts.Logger,
	}
}

// Check decides whether fc may execute. It returns DecisionApprove for tools
// without an interrupt config. Prompter errors reject the call.
func (g *Gate) Check(ctx context.Context, fc core.FunctionCall) (Decision, error) {
	if g == nil || g.prompter == nil {
		return DecisionApprove, nil
	}

	cfg, gated := g.configs[fc.Name]
	if !gated {
		return DecisionApprove, nil
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		// Undecodable arguments still prompt, with fallback field values.
		_ = json.Unmarshal([]byte(fc.Arguments), &args)
	}

	description := fmt.Sprintf("Tool: %s\nArguments: %s", fc.Name, fc.Arguments)
	if cfg.Describe != nil {
		description = cfg.Describe(fc, args, g.workingDir)
	}

	decision, err := g.prompter.Prompt(ctx, Request{
		Call:             fc,
		Description:      description,
		AllowedDecisions: cfg.AllowedDecisions,
	})
	if err != nil {
		return DecisionReject, fmt.Errorf("approval prompt for %s: %w", fc.Name, err)
	}

	if len(cfg.AllowedDecisions) > 0 && !decisionAllowed(decision, cfg.AllowedDecisions) {
		return DecisionReject, fmt.Errorf("decision %q not allowed for tool %s", decision, fc.Name)
	}

	g.logger.Debug("approval decision", "tool", fc.Name, "decision", string(decision))

	return decision, nil
}

func decisionAllowed(d Decision, allowed []Decision) bool {
	for _, a := range allowed {
		if a == d {
			return true
		}
	}
	return false
}
