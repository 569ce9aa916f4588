package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lihan0705/lead-agent/backend"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/logging"
	"github.com/lihan0705/lead-agent/session"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentInvocations limits the number of agent invocations that
	// can execute simultaneously. Invoke fails fast once the limit is
	// reached. Set to 0 for unlimited (not recommended).
	MaxConcurrentInvocations int

	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// MaxModelCalls caps the number of model requests a single invocation
	// may make. Exceeding the cap aborts the run with an error event.
	// Set to 0 for unlimited.
	MaxModelCalls int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
	MaxModelCalls:            1000,
}

// Options configures an Engine instance. All services default to in-memory
// implementations so an Engine works out of the box for development and
// tests; production setups typically provide a durable session store and a
// filesystem or object-store backend.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// SessionStore manages session persistence and state.
	SessionStore core.SessionStore

	// Backend executes file operations requested by tools.
	Backend core.Backend

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine orchestrates agent execution: it resolves sessions, creates run
// contexts, fans out events to clients, persists history, and signals the
// producer to resume after each non-partial event is durable.
//
// Event flow per invocation:
//  1. User content is persisted as the starting event
//  2. The agent's event stream is consumed from its emit channel
//  3. State deltas are applied to the session store
//  4. Non-partial events are appended to session history
//  5. Events are forwarded to the client channel
//  6. A resume signal releases the producer for its next step
//
// Persistence therefore always completes before the producing flow
// continues, which is what makes approval interrupts and subagent
// delegation observable in stored history.
//
// All public methods are safe for concurrent use.
type Engine struct {
	sessionStore core.SessionStore
	backend      core.Backend
	logger       logging.Logger
	config       Config

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.Mutex

	// slots bounds concurrent invocations; nil means unlimited.
	slots chan struct{}
}

var _ core.Engine = (*Engine)(nil)

// New creates an Engine with in-memory defaults and optional overrides.
//
// The engine does not take ownership of provided services and will not
// manage their lifecycle; close durable stores yourself when done.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Backend:      backend.NewState(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var slots chan struct{}
	if opts.Config.MaxConcurrentInvocations > 0 {
		slots = make(chan struct{}, opts.Config.MaxConcurrentInvocations)
	}

	return &Engine{
		sessionStore:      opts.SessionStore,
		backend:           opts.Backend,
		logger:            opts.Logger,
		config:            opts.Config,
		agents:            make(map[string]core.Agent),
		activeInvocations: make(map[string]context.CancelFunc),
		slots:             slots,
	}
}

// Register adds an agent to the engine's registry, making it available for
// invocation by name. Registering the same name again replaces the previous
// agent.
func (e *Engine) Register(a core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.Name()] = a
}

// GetAgent retrieves a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]
	return a, ok
}

// resolveSession loads the session or creates it on first use.
func (e *Engine) resolveSession(sessionID string) (*core.Session, error) {
	sess, err := e.sessionStore.Get(sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	sess, err = e.sessionStore.Create(sessionID)
	if err != nil {
		// A concurrent invocation may have created it between Get and Create.
		return e.sessionStore.Get(sessionID)
	}
	return sess, nil
}

// Invoke executes an agent asynchronously and returns channels for
// real-time event streaming.
//
// Returns the invocation id (for StopInvocation), a channel streaming
// events as they are generated (closed on completion), a terminal error
// channel (buffered size 1), and an immediate error when the invocation
// cannot start: unknown agent, session store failure, or the concurrency
// limit being reached.
//
// The session is created on first use; subsequent invocations with the
// same id continue the conversation.
func (e *Engine) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not found", agentName)
	}

	sess, err := e.resolveSession(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := e.acquireSlot(); err != nil {
		return "", nil, nil, err
	}

	invocationID := core.NewID()

	userEvent := core.NewUserContentEvent(invocationID, &userContent)
	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		e.releaseSlot()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	invocationCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	runCtx := core.NewRunContext(
		invocationCtx,
		sessionID,
		invocationID,
		core.AgentInfo{Name: agent.Name(), Type: "model"},
		userContent,
		e.config.MaxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		e.sessionStore,
		e.backend,
		e.logger,
	)

	e.logger.Debug("engine.invocation.started",
		"invocation_id", invocationID, "session_id", sessionID, "agent", agentName)

	agentDone := make(chan error, 1)

	go func() {
		err := e.runAgent(runCtx, agent)
		close(agentEmit)
		agentDone <- err
	}()

	// The pipeline goroutine owns cleanup and is the only sender on the
	// error channel, so no send can race a close.
	go func() {
		defer func() {
			e.invocationsMu.Lock()
			delete(e.activeInvocations, invocationID)
			e.invocationsMu.Unlock()
			e.releaseSlot()
			close(eventsCh)
			close(errorsCh)
		}()

		procErr := e.processEvents(invocationCtx, sessionID, agentEmit, resumeCh, eventsCh)
		cancelled := invocationCtx.Err() != nil

		// Unblock the producer if the pipeline stopped before it finished,
		// then wait for it so no emit is left behind.
		cancel()
		runErr := <-agentDone

		switch {
		case procErr != nil:
			errorsCh <- procErr
		case cancelled:
			// The client cancelled; it does not need an error report.
		case runErr != nil:
			errorsCh <- fmt.Errorf("agent execution failed: %w", runErr)
		}
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// InvokeSync executes an agent to completion, collecting all emitted events
// into a slice. Convenience wrapper around Invoke for request-response use;
// partial streaming events are included in the result in emission order.
func (e *Engine) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := e.Invoke(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return invocationID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return invocationID, events, err
				default:
					return invocationID, events, nil
				}
			}
			events = append(events, event)

		case err := <-errorsCh:
			if err != nil {
				return invocationID, events, err
			}
		}
	}
}

// StopInvocation cancels a running invocation by id. Stopping an unknown or
// already finished invocation returns an error.
func (e *Engine) StopInvocation(invocationID string) error {
	e.invocationsMu.Lock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.Unlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()
	return nil
}

// GetSession retrieves the current session snapshot by id.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

func (e *Engine) acquireSlot() error {
	if e.slots == nil {
		return nil
	}
	select {
	case e.slots <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("max concurrent invocations reached (%d)", e.config.MaxConcurrentInvocations)
	}
}

func (e *Engine) releaseSlot() {
	if e.slots == nil {
		return
	}
	<-e.slots
}

func (e *Engine) runAgent(runCtx *core.RunContext, agent core.Agent) error {
	if err := agent.Start(runCtx); err != nil {
		return err
	}
	defer func() {
		if err := agent.Stop(runCtx); err != nil {
			e.logger.Warn("engine.agent.stop_failed", "agent", agent.Name(), "error", err.Error())
		}
	}()

	return agent.Run(runCtx)
}

// processEvents consumes the agent's emit channel until it closes or the
// invocation context is cancelled. For every event it applies state deltas,
// persists non-partial events, forwards the event to the client, and only
// then signals resume. The resume send is non-blocking: producers that skip
// the handshake (error events) must not wedge the pipeline.
//
// A non-nil return reports a persistence failure; cancellation and normal
// completion both return nil.
func (e *Engine) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-agentEmit:
			if !ok {
				return nil
			}

			if err := e.applyEventActions(sessionID, ev); err != nil {
				return fmt.Errorf("failed to process event actions: %w", err)
			}

			if !ev.IsPartial() {
				if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
					return fmt.Errorf("failed to append event to session: %w", err)
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case eventsCh <- ev:
				e.logger.Debug("engine.event.delivered", "event_id", ev.ID, "session_id", sessionID)
			}

			if !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return nil
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// applyEventActions applies the side effects encoded in an event's Actions.
func (e *Engine) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine.event.escalate", "session_id", sessionID)
	}

	return nil
}
