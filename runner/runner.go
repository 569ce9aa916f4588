package runner

import (
	"context"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/engine"
	"github.com/lihan0705/lead-agent/logging"
)

// Options holds dependency and configuration overrides passed to New.
// Unset services fall back to the engine's in-memory defaults.
type Options struct {
	// Config tunes the underlying engine: concurrency limit, event buffer
	// size, and the per-run model-call cap.
	Config engine.Config

	// SessionStore persists conversations.
	SessionStore core.SessionStore

	// Backend executes file operations requested by tools.
	Backend core.Backend

	// Logger provides structured logging.
	Logger logging.Logger
}

// Runner executes one root agent. It owns a private engine with exactly
// that agent registered, so callers deal in sessions and content only.
// Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent
	eng   *engine.Engine
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner for the given root agent with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{Config: engine.DefaultConfig}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.Config
		if opts.SessionStore != nil {
			o.SessionStore = opts.SessionStore
		}
		if opts.Backend != nil {
			o.Backend = opts.Backend
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	})
	eng.Register(agent)

	return &Runner{agent: agent, eng: eng}
}

// Run starts an asynchronous invocation of the root agent. It returns the
// run id (usable with Cancel), the ordered event stream (closed on
// completion), and a terminal error channel of size one.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return r.eng.Invoke(ctx, sessionID, r.agent.Name(), userContent)
}

// RunSync executes the root agent to completion and returns all emitted
// events in order.
func (r *Runner) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	return r.eng.InvokeSync(ctx, sessionID, r.agent.Name(), userContent)
}

// Cancel requests cooperative termination of an in-flight run. Cancelling
// an unknown or finished run returns an error.
func (r *Runner) Cancel(runID string) error {
	return r.eng.StopInvocation(runID)
}

// Engine exposes the underlying engine for callers that need direct access,
// such as the facade's session inspection helpers.
func (r *Runner) Engine() *engine.Engine {
	return r.eng
}

// Session returns the current session snapshot by id.
func (r *Runner) Session(sessionID string) (*core.Session, error) {
	return r.eng.GetSession(sessionID)
}
