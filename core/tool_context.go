package core

import (
	"context"
	"fmt"

	"github.com/lihan0705/lead-agent/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. It accumulates EventActions (state
// deltas, escalation signals) without directly mutating the underlying
// session until applied.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions
	valid          bool

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
		valid:          true,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// AgentType returns the agent type associated with the tool invocation.
func (tc *ToolContext) AgentType() string { return tc.agentInfo.Type }

// Backend returns the file backend configured for the run, or nil.
func (tc *ToolContext) Backend() Backend { return tc.runCtx.Backend }

// GetState retrieves the state associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.runCtx.GetState(k)
}

// SetState records a state mutation both on the underlying run context
// (for immediate visibility) and in the local EventActions delta for emission.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that post-processing summarization be bypassed
// for the originating event.
func (tc *ToolContext) SkipSummarization() {
	b := true
	if tc.eventActions.SkipSummarization == nil {
		tc.eventActions.SkipSummarization = &b
	}
}

// Escalate requests escalation (e.g., aborting a subagent run back to its parent).
func (tc *ToolContext) Escalate() {
	b := true
	if tc.eventActions.Escalate == nil {
		tc.eventActions.Escalate = &b
	}

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// GetSessionHistory returns conversation history (filtered) for context.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// RefreshSession reloads the underlying session from the SessionStore.
func (tc *ToolContext) RefreshSession() error {
	if tc.runCtx.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := tc.runCtx.SessionStore.Get(tc.SessionID())
	if err != nil {
		return err
	}

	tc.runCtx.Session = s

	return nil
}

// EmitEvent sends an event directly without merging accumulated actions.
func (tc *ToolContext) EmitEvent(ev Event) error {
	if tc.runCtx.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	select {
	case <-tc.runCtx.Context.Done():
		return tc.runCtx.Context.Err()
	case tc.runCtx.Emit <- ev:
	}

	return nil
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if !tc.valid || tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// IsValid reports whether Validate would succeed (fast path).
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.runCtx != nil && tc.runCtx.SessionID != "" && tc.functionCallID != ""
}

// InternalRunContext returns the internal run context. Tools that spawn
// nested agent runs (the task tool) derive child contexts from it.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges accumulated EventActions into the provided event.
// (Used internally by the flow when finalizing tool invocation events.)
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range tc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}

	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}

	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate

		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}
}
