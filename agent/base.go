package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lihan0705/lead-agent/core"
)

// BaseAgent bundles the shared lifecycle (Start/Stop) and identity helpers.
// Embed it in a concrete agent implementation and supply a Run method to
// satisfy the core.Agent interface. All exported methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string
	mu          sync.Mutex
	cancel      context.CancelFunc
	running     bool
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// Start transitions the agent to running state. It is safe for concurrent
// calls but only the first successful invocation changes state; subsequent
// calls while running return an error.
func (b *BaseAgent) Start(runCtx *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("agent is already running")
	}

	_, cancel := context.WithCancel(runCtx.Context)
	b.cancel = cancel
	b.running = true

	return nil
}

// Stop cancels the agent's derived context and marks it as not running. It
// returns an error if the agent was not running.
func (b *BaseAgent) Stop(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return errors.New("agent is not running")
	}

	if b.cancel != nil {
		b.cancel()
	}
	b.running = false

	return nil
}
