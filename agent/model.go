package agent

import (
	"fmt"
	"sort"
	"time"

	"github.com/lihan0705/lead-agent/approval"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/flow"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/tool"
)

// DefaultToolTimeout bounds a single tool call unless overridden. Shell
// commands and delegated subagent runs routinely take minutes, so the
// default is generous.
const DefaultToolTimeout = 5 * time.Minute

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Instruction is the system prompt, static text or a dynamic provider.
	Instruction Instruction

	// EnableStreaming forwards partial model output as events.
	EnableStreaming bool

	// EnableFunctionCalling advertises registered tools to the model.
	EnableFunctionCalling bool

	// ToolTimeout bounds each tool call. Zero disables the deadline.
	ToolTimeout time.Duration

	// OutputKey, when set, stores the agent's final response text in session
	// state under this key.
	OutputKey string

	// MaxHistoryMessages caps the conversation history included per request.
	// Zero or negative means unlimited.
	MaxHistoryMessages int

	// MaxParallelTools caps concurrent tool execution within one batch of
	// function calls. Zero means one goroutine per call.
	MaxParallelTools int

	// Enrichers are request processors that run between instruction
	// resolution and content assembly, such as persistent memory injection.
	Enrichers []flow.RequestProcessor

	// Interrupts gates tool calls behind user approval. Nil approves all.
	Interrupts *approval.Gate

	// Tools seeds the tool registry.
	Tools map[string]tool.Tool
}

// ModelAgent is a conversational, tool-calling agent backed by a language
// model.
//
// It supports streamed responses, function calling against the registered
// tool set, template-based instructions, approval-gated tool execution and
// delegation to isolated subagents through the task tool (see
// EnableSubagents). ModelAgent embeds BaseAgent for the standard lifecycle.
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	toolTimeout           time.Duration
	outputKey             string
	maxHistoryMessages    int
	maxParallelTools      int
	enrichers             []flow.RequestProcessor
	interrupts            *approval.Gate
	fl                    flow.Flow
	subagents             map[string]*ModelAgent
}

// NewModelAgent creates a new model-backed agent.
//
// Defaults: streaming and function calling enabled, unlimited history,
// DefaultToolTimeout per tool call, no output key, no subagents.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           DefaultToolTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tools == nil {
		opts.Tools = make(map[string]tool.Tool)
	}

	a := &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		tools:                 opts.Tools,
		enableFunctionCalling: opts.EnableFunctionCalling,
		enableStreaming:       opts.EnableStreaming,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		maxParallelTools:      opts.MaxParallelTools,
		enrichers:             opts.Enrichers,
		interrupts:            opts.Interrupts,
	}

	a.fl = flow.NewSingleAgentFlow(a, opts.Enrichers, func(o *flow.BaseFlowOptions) {
		o.Interrupts = opts.Interrupts
		o.Executor = flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
			MaxParallel:   opts.MaxParallelTools,
			PreserveOrder: true,
			ToolTimeout:   opts.ToolTimeout,
		})
	})

	return a
}

// RegisterTool adds a tool to the agent's capability set. Registered tools
// become available for the model to call when function calling is enabled.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// GetTool retrieves a specific tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// ListTools returns the names of all registered tools, sorted.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string {
	return a.Name()
}

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model {
	return a.llm
}

// GetTools returns a copy of the registered tools for function calling.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	return tools
}

// IsFunctionCallingEnabled returns whether function calling is enabled.
func (a *ModelAgent) IsFunctionCallingEnabled() bool {
	return a.enableFunctionCalling
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool {
	return a.enableStreaming
}

// MaxHistoryMessages returns the conversation history cap per request.
func (a *ModelAgent) MaxHistoryMessages() int {
	return a.maxHistoryMessages
}

// ResolveInstructions produces the system prompt for this run by resolving
// the static or dynamic instruction source.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent. It executes the agent's flow and streams the
// resulting events to the run context's emit channel.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	eventChan, err := a.fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())

		return fmt.Errorf("flow execution failed: %w", err)
	}

	for event := range eventChan {
		a.applyOutputKey(&event)

		select {
		case runCtx.Emit <- event:
		case <-runCtx.Context.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Context.Err())

			return runCtx.Context.Err()
		}
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}

// applyOutputKey stages the final response text into the event's state delta
// so it persists alongside the event.
func (a *ModelAgent) applyOutputKey(ev *core.Event) {
	if a.outputKey == "" || ev.Content == nil || !ev.IsFinalResponse() {
		return
	}

	text := ev.Content.Text()
	if text == "" {
		return
	}

	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = map[string]any{}
	}
	ev.Actions.StateDelta[a.outputKey] = text
}
