package flow

// SingleAgentFlow implements the standard execution flow for one agent. It
// wires instruction resolution first, then any enrichers (processors that
// extend req.Instructions, such as persistent memory injection), and content
// assembly last so the enriched instructions land in the system message.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a new single-agent flow. Enrichers run between
// instruction resolution and content assembly, in the given order.
func NewSingleAgentFlow(agent FlowAgent, enrichers []RequestProcessor, optFns ...func(o *BaseFlowOptions)) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent, optFns...)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	for _, p := range enrichers {
		baseFlow.AddRequestProcessor(p)
	}
	baseFlow.AddRequestProcessor(NewContentsProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
