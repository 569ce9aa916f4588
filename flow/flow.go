// Package flow implements the model interaction loop that drives an agent:
// request assembly through pluggable processors, streamed generation, tool
// execution with optional user approval, and the feedback of tool results
// into the next model turn.
//
// Flows are deliberately separated from agents. An agent supplies
// capabilities (model, instructions, tools) through the FlowAgent interface;
// the flow owns the turn-taking mechanics. This keeps orchestration concerns
// testable without a full agent implementation.
package flow

import (
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/tool"
)

// Flow defines the interface for agent execution flows.
//
// A flow orchestrates the complete execution pipeline of an agent, from
// processing the initial request to generating the final response.
type Flow interface {
	// Execute runs the flow with the given context and request.
	// It returns a channel of events that represent the execution progress.
	Execute(runCtx *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent defines the interface that agents must implement to work with
// flows. It exposes agent capabilities without exposing the full agent
// implementation.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions produces the system instructions for this run.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// IsFunctionCallingEnabled returns whether function calling is enabled.
	IsFunctionCallingEnabled() bool

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// MaxHistoryMessages returns the maximum number of conversation history
	// messages included in a request. Zero or negative means unlimited.
	MaxHistoryMessages() int
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the chat request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles the LLM response and may generate additional events.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
