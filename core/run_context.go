package core

import (
	"context"
	"fmt"

	"maps"

	"github.com/lihan0705/lead-agent/logging"
)

// RunContext carries execution state & helpers for an agent run.
// It encapsulates the mutable, per-invocation execution scope passed to an
// Agent's Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, Agent info)
//   - Input user Content
//   - Emission / resumption coordination channels
//   - Backing services (session store, file backend) for persistence concerns
//   - A working Session snapshot and pending StateDelta to commit
//   - Branch label for nested subagent runs
//
// State mutations performed via SetState accumulate in StateDelta until
// CommitStateDelta or EmitEvent applies them. Cloning produces an isolated
// delta buffer while keeping references to underlying services.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	MaxModelCalls    int
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	Backend          Backend
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Branch           string

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	backend Backend,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		MaxModelCalls: maxModelCalls,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  sessionStore,
		Backend:       backend,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// CommitStateDelta persists the accumulated StateDelta then clears the buffer.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	if err := rc.SessionStore.ApplyDelta(rc.SessionID, rc.StateDelta); err != nil {
		return err
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// GetSessionHistory returns all historical events for the session.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetEvents()
}

// GetAgentName returns the logical agent name for this invocation.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// GetAgentType returns a categorization label for the agent.
func (rc *RunContext) GetAgentType() string { return rc.Agent.Type }

// Clone returns a shallow copy with a deep-copied delta buffer.
func (rc *RunContext) Clone() *RunContext {
	c := &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		MaxModelCalls: rc.MaxModelCalls,
		Emit:          rc.Emit,
		Resume:        rc.Resume,
		SessionStore:  rc.SessionStore,
		Backend:       rc.Backend,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		Branch:        rc.Branch,
		loggerAdapter: rc.loggerAdapter,
	}

	maps.Copy(c.StateDelta, rc.StateDelta)

	return c
}

// WithBranch clones the context and sets the Branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b
	return c
}

// NewChildContext derives a context for a nested / child execution path such
// as a subagent run. The child shares the session and limiter but gets fresh
// emit/resume channels and an isolated delta buffer.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	finalBranch := rc.Branch
	if branch != "" {
		finalBranch = branch
	}

	return &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		MaxModelCalls: rc.MaxModelCalls,
		Emit:          emit,
		Resume:        resume,
		SessionStore:  rc.SessionStore,
		Backend:       rc.Backend,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{}, // fresh buffer
		Branch:        finalBranch,
		loggerAdapter: rc.loggerAdapter,
	}
}

// EmitEvent merges the pending StateDelta into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			delta := map[string]any{}
			for k, v := range rc.StateDelta {
				delta[k] = v
			}
			ev.Actions.StateDelta = delta
		} else {
			for k, v := range rc.StateDelta {
				ev.Actions.StateDelta[k] = v
			}
		}
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// WaitForResume blocks until Resume signals or context cancellation.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
