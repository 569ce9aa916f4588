// Package leadagent assembles conversational, tool-calling agents over the
// execution engine. A constructed agent ships with todo tracking, file tools
// scoped to a working directory, a shell, optional delegation to subagents
// and hierarchical memory loaded from agent.md files. Most applications
// interact with this package by:
//  1. Building a model client (see the llm package)
//  2. Creating an Agent via New() with options for working directory,
//     approval mode, memory and extra tools
//  3. Invoking it asynchronously (Invoke), synchronously (InvokeSync) or as
//     a REPL (RunInteractive)
//
// Defaults are safe for local use: an in-memory session store, a filesystem
// backend rooted at the working directory and interactive approval for
// destructive tool calls.
package leadagent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lihan0705/lead-agent/agent"
	"github.com/lihan0705/lead-agent/approval"
	"github.com/lihan0705/lead-agent/backend"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/engine"
	"github.com/lihan0705/lead-agent/flow"
	"github.com/lihan0705/lead-agent/logging"
	"github.com/lihan0705/lead-agent/memory"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/prompt"
	"github.com/lihan0705/lead-agent/runner"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/tool"
)

// AgentName is the name of the root agent.
const AgentName = "superagent"

// Options configures New.
type Options struct {
	// WorkingDir scopes file tools, the shell and project memory. Defaults
	// to the current directory and is resolved to an absolute path.
	WorkingDir string

	// Tools are registered in addition to the builtin set.
	Tools []tool.Tool

	// SystemPrompt overrides the default instructions generated for the
	// working directory.
	SystemPrompt string

	// AutoApprove disables interactive approval, letting every tool call
	// run unattended.
	AutoApprove bool

	// EnableSubagents registers the task tool for delegation. Default true.
	EnableSubagents bool

	// EnableMemory injects agent.md memory into every model turn. Default
	// true.
	EnableMemory bool

	// AssistantID scopes user-level memory. Defaults to
	// memory.DefaultAssistantID.
	AssistantID string

	// Backend handles file operations. Defaults to a composite over a
	// filesystem backend rooted at the working directory.
	Backend core.Backend

	// SessionStore persists conversations. Defaults to in-memory.
	SessionStore core.SessionStore

	// Logger defaults to a no-op.
	Logger logging.Logger

	// MaxModelCalls caps model requests per invocation, bounding runaway
	// tool loops. Defaults to the engine's limit.
	MaxModelCalls int

	// Prompter collects approval decisions. Defaults to the console
	// prompter. Ignored when AutoApprove is set.
	Prompter approval.Prompter
}

// Agent is an assembled superagent bound to a working directory.
type Agent struct {
	root       *agent.ModelAgent
	runner     *runner.Runner
	backend    core.Backend
	sessions   core.SessionStore
	logger     logging.Logger
	workingDir string
}

// New assembles an agent around the given model.
func New(llm model.Model, optFns ...func(o *Options)) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("model must not be nil")
	}

	opts := Options{
		EnableSubagents: true,
		EnableMemory:    true,
		AssistantID:     memory.DefaultAssistantID,
		Logger:          logging.NoOpLogger{},
		MaxModelCalls:   engine.DefaultConfig.MaxModelCalls,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	workingDir, err := resolveWorkingDir(opts.WorkingDir)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("leadagent.working_dir", "path", workingDir)

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompt.SystemPrompt(workingDir)
	}

	fileBackend := opts.Backend
	if fileBackend == nil {
		fs, err := backend.NewFilesystem(workingDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem backend: %w", err)
		}
		fileBackend = backend.NewComposite(fs, nil)
	}

	var gate *approval.Gate
	if !opts.AutoApprove {
		prompter := opts.Prompter
		if prompter == nil {
			prompter = approval.NewConsolePrompter()
		}
		gate = approval.NewGate(prompter, approval.Configs(workingDir), workingDir)
	}

	var enrichers []flow.RequestProcessor
	if opts.EnableMemory {
		enrichers = append(enrichers, memory.NewProcessor(memory.Config{
			AssistantID: opts.AssistantID,
			ProjectRoot: workingDir,
		}))
		opts.Logger.Info("leadagent.memory.enabled", "assistant_id", opts.AssistantID)
	}

	root := agent.NewModelAgent(AgentName, llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(systemPrompt)
		o.Enrichers = enrichers
		o.Interrupts = gate
	})

	root.RegisterTools(
		tool.NewWriteTodosTool(),
		tool.NewLsTool(),
		tool.NewReadFileTool(),
		tool.NewWriteFileTool(),
		tool.NewEditFileTool(),
		tool.NewGlobTool(),
		tool.NewGrepTool(),
		tool.NewShellTool(workingDir),
	)
	root.RegisterTools(opts.Tools...)

	// Subagents snapshot the tool set, so delegation is enabled last.
	if opts.EnableSubagents {
		root.EnableSubagents()
	}

	sessions := opts.SessionStore
	if sessions == nil {
		sessions = session.NewInMemoryStore()
	}

	run := runner.New(root, func(o *runner.Options) {
		o.Config = engine.Config{
			MaxConcurrentInvocations: engine.DefaultConfig.MaxConcurrentInvocations,
			EventBufferSize:          engine.DefaultConfig.EventBufferSize,
			MaxModelCalls:            opts.MaxModelCalls,
		}
		o.SessionStore = sessions
		o.Backend = fileBackend
		o.Logger = opts.Logger
	})

	return &Agent{
		root:       root,
		runner:     run,
		backend:    fileBackend,
		sessions:   sessions,
		logger:     opts.Logger,
		workingDir: workingDir,
	}, nil
}

func resolveWorkingDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("working directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", abs)
	}

	return abs, nil
}

// Invoke starts a streaming invocation of the root agent within the given
// session. The event channel carries partial chunks, tool activity and the
// final response; the error channel reports at most one terminal error.
func (a *Agent) Invoke(ctx context.Context, sessionID, text string) (<-chan core.Event, <-chan error, error) {
	content, err := userContent(text)
	if err != nil {
		return nil, nil, err
	}

	_, events, errs, err := a.runner.Run(ctx, sessionID, content)
	return events, errs, err
}

// InvokeSync runs one turn to completion and returns the final response
// event.
func (a *Agent) InvokeSync(ctx context.Context, sessionID, text string) (*core.Event, error) {
	content, err := userContent(text)
	if err != nil {
		return nil, err
	}

	_, events, err := a.runner.RunSync(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.IsFinalResponse() && ev.Content != nil {
			return &ev, nil
		}
	}

	return nil, errors.New("run produced no final response")
}

// RunInteractive runs a line-based REPL on stdin/stdout until EOF or an
// exit/quit command. All turns share one session.
func (a *Agent) RunInteractive(ctx context.Context) error {
	return a.RunInteractiveIO(ctx, os.Stdin, os.Stdout)
}

// RunInteractiveIO is RunInteractive with explicit input and output streams.
func (a *Agent) RunInteractiveIO(ctx context.Context, in io.Reader, out io.Writer) error {
	sessionID := core.NewID()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(out, "Interactive session started. Type 'exit' or 'quit' to leave.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Fprintln(out, "Bye.")
			return nil
		}

		events, errs, err := a.Invoke(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := StreamText(out, events, errs); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

// StreamText prints assistant output from an Invoke stream as it arrives.
// Partial chunks stream directly; a final response that follows streamed
// chunks repeats their text and is skipped. Tool calls render as bracketed
// markers. The returned error is the terminal error of the run, if any.
func StreamText(out io.Writer, events <-chan core.Event, errs <-chan error) error {
	streamed := false

	for ev := range events {
		switch {
		case ev.IsPartial():
			if ev.Content != nil {
				fmt.Fprint(out, ev.Content.Text())
				streamed = true
			}

		case ev.ErrorMessage != nil:
			fmt.Fprintf(out, "\nerror: %s\n", *ev.ErrorMessage)

		case ev.Content != nil && ev.Content.Role == "assistant":
			if text := ev.Content.Text(); text != "" && !streamed {
				fmt.Fprint(out, text)
			}
			streamed = false

			for _, fc := range ev.GetFunctionCalls() {
				fmt.Fprintf(out, "\n[tool] %s\n", fc.Name)
			}
		}
	}

	return <-errs
}

func userContent(text string) (core.Content, error) {
	if strings.TrimSpace(text) == "" {
		return core.Content{}, errors.New("prompt text must not be empty")
	}
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}, nil
}

// Root exposes the underlying model agent for advanced composition, such as
// registering additional tools or subagent types before the first run.
func (a *Agent) Root() *agent.ModelAgent { return a.root }

// Backend returns the file backend used by tool calls.
func (a *Agent) Backend() core.Backend { return a.backend }

// Sessions returns the session store holding conversation history.
func (a *Agent) Sessions() core.SessionStore { return a.sessions }

// Session returns a stored conversation by id.
func (a *Agent) Session(sessionID string) (*core.Session, error) {
	return a.sessions.Get(sessionID)
}

// WorkingDir returns the resolved working directory.
func (a *Agent) WorkingDir() string { return a.workingDir }
