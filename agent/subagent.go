package agent

import (
	"fmt"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/tool"
)

// GeneralPurposeSubagent is the subagent type that is always available when
// delegation is enabled.
const GeneralPurposeSubagent = "general-purpose"

// subagentEventBuffer sizes the emit channel of a delegated child run.
const subagentEventBuffer = 100

// SubagentConfig declares a launchable subagent for the task tool.
type SubagentConfig struct {
	// Name is the subagent_type the model uses to launch it.
	Name string

	// Description tells the model when to pick this subagent over others.
	Description string

	// Instruction is the subagent's system prompt. Empty falls back to the
	// parent agent's instruction.
	Instruction Instruction

	// Tools available to the subagent. The task tool is never part of this
	// set, so subagents cannot nest further delegation.
	Tools map[string]tool.Tool
}

// EnableSubagents registers the task tool backed by a registry of launchable
// subagents. A general-purpose subagent mirroring this agent's instruction
// and tools (minus the task tool itself) is always included; extra configs
// add specialized types. Register regular tools before calling this, because
// the general-purpose subagent snapshots the tool set at this point.
func (a *ModelAgent) EnableSubagents(extra ...SubagentConfig) {
	configs := append([]SubagentConfig{a.generalPurposeConfig()}, extra...)

	registry := make(map[string]*ModelAgent, len(configs))
	infos := make([]tool.SubagentInfo, 0, len(configs))

	for _, cfg := range configs {
		if _, dup := registry[cfg.Name]; dup {
			continue
		}

		registry[cfg.Name] = a.newSubagent(cfg)
		infos = append(infos, tool.SubagentInfo{Name: cfg.Name, Description: cfg.Description})
	}

	a.subagents = registry
	a.RegisterTool(tool.NewTaskTool(tool.SubagentRunnerFunc(a.runSubagent), infos))
}

// Subagents returns the names of the registered subagent types, or nil when
// delegation is disabled.
func (a *ModelAgent) Subagents() []string {
	if a.subagents == nil {
		return nil
	}

	names := make([]string, 0, len(a.subagents))
	for name := range a.subagents {
		names = append(names, name)
	}

	return names
}

func (a *ModelAgent) generalPurposeConfig() SubagentConfig {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		if name == "task" {
			continue
		}
		tools[name] = t
	}

	return SubagentConfig{
		Name:        GeneralPurposeSubagent,
		Description: "General-purpose agent for researching complex questions and executing multi-step tasks. It has the same tools as the main agent and works best when given a complete, self-contained assignment.",
		Instruction: a.instruction,
		Tools:       tools,
	}
}

// newSubagent builds the agent behind one subagent type. Subagents inherit
// the parent's model, enrichers, approval gate and execution limits;
// streaming is disabled because only the final report reaches the caller.
func (a *ModelAgent) newSubagent(cfg SubagentConfig) *ModelAgent {
	instruction := cfg.Instruction
	if instruction.provider == nil && instruction.text == "" {
		instruction = a.instruction
	}

	return NewModelAgent(cfg.Name, a.llm, func(o *ModelAgentOptions) {
		o.Instruction = instruction
		o.Tools = cfg.Tools
		o.EnableStreaming = false
		o.EnableFunctionCalling = true
		o.ToolTimeout = a.toolTimeout
		o.MaxHistoryMessages = a.maxHistoryMessages
		o.MaxParallelTools = a.maxParallelTools
		o.Enrichers = a.enrichers
		o.Interrupts = a.interrupts
	})
}

// runSubagent executes one delegated task and returns the subagent's final
// response text. The child run is isolated: it gets a private in-memory
// session seeded only with the task description, so it neither sees nor
// pollutes the parent conversation. It shares the parent's backend (file
// edits are visible to both) and the parent's model-call limiter, so
// delegated work counts against the run's budget.
func (a *ModelAgent) runSubagent(toolCtx *core.ToolContext, subagentType, description string) (string, error) {
	sub, ok := a.subagents[subagentType]
	if !ok {
		return "", fmt.Errorf("unknown subagent type %q", subagentType)
	}

	parent := toolCtx.InternalRunContext()

	childSessionID := core.NewID()
	store := session.NewInMemoryStore()
	if _, err := store.Create(childSessionID); err != nil {
		return "", fmt.Errorf("create subagent session: %w", err)
	}
	if err := store.AppendEvent(childSessionID, core.NewUserMessageEvent(parent.RunID, description)); err != nil {
		return "", fmt.Errorf("seed subagent session: %w", err)
	}

	sess, err := store.Get(childSessionID)
	if err != nil {
		return "", fmt.Errorf("load subagent session: %w", err)
	}

	emit := make(chan core.Event, subagentEventBuffer)
	resume := make(chan struct{}, 1)

	child := parent.NewChildContext(emit, resume, "task:"+subagentType)
	child.Agent = core.AgentInfo{Name: sub.Name(), Type: "subagent"}
	child.UserContent = core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: description}}}
	child.SessionID = childSessionID
	child.SessionStore = store
	child.Session = sess

	toolCtx.LogInfo("agent.subagent.start", "parent", a.Name(), "subagent", subagentType)

	done := make(chan error, 1)
	go func() {
		err := sub.Run(child)
		close(emit)
		done <- err
	}()

	var (
		final   *core.Event
		lastErr string
	)

	for ev := range emit {
		if ev.IsPartial() {
			continue
		}

		if err := store.AppendEvent(childSessionID, ev); err != nil {
			toolCtx.LogWarn("agent.subagent.persist_failed", "subagent", subagentType, "error", err.Error())
		}
		if len(ev.Actions.StateDelta) > 0 {
			if err := store.ApplyDelta(childSessionID, ev.Actions.StateDelta); err != nil {
				toolCtx.LogWarn("agent.subagent.delta_failed", "subagent", subagentType, "error", err.Error())
			}
		}

		switch {
		case ev.ErrorMessage != nil:
			lastErr = *ev.ErrorMessage
		case ev.IsFinalResponse() && ev.Content != nil:
			evCopy := ev
			final = &evCopy
		}

		// The child flow waits for this handshake after each non-partial
		// event; the send must come after persistence.
		select {
		case resume <- struct{}{}:
		default:
		}
	}

	if err := <-done; err != nil {
		return "", fmt.Errorf("subagent %s: %w", subagentType, err)
	}
	if lastErr != "" {
		return "", fmt.Errorf("subagent %s failed: %s", subagentType, lastErr)
	}

	toolCtx.LogInfo("agent.subagent.complete", "parent", a.Name(), "subagent", subagentType)

	if final == nil || final.Content == nil || final.Content.Text() == "" {
		return "(subagent returned no final text)", nil
	}

	return final.Content.Text(), nil
}
