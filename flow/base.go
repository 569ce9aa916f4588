package flow

import (
	"fmt"
	"sort"

	"github.com/lihan0705/lead-agent/approval"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
)

// eventBufferSize is the capacity of the event channel returned by Execute.
const eventBufferSize = 100

// BaseFlowOptions configure a BaseFlow.
type BaseFlowOptions struct {
	// Executor runs approved function calls. Defaults to a parallel executor
	// that emits responses in call order.
	Executor FunctionExecutor

	// Interrupts gates function calls behind user approval. A nil gate
	// approves everything.
	Interrupts *approval.Gate
}

// BaseFlow is a single‑agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post
// processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
	interrupts         *approval.Gate
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent, optFns ...func(o *BaseFlowOptions)) *BaseFlow {
	opts := BaseFlowOptions{
		Executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           opts.Executor,
		interrupts:         opts.Interrupts,
	}
}

// AddRequestProcessor appends a request processor; order of registration
// defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each
// model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted or an unrecoverable
// error occurs. Callers should range over the returned channel.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, eventBufferSize)

	go func() {
		defer close(eventChan)

		for {
			last := f.runOnce(runCtx, eventChan)
			if last == nil {
				return
			}
			// A function response feeds the next model turn.
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				runCtx.LogWarn("flow.terminated.partial", "agent", f.agent.GetName())
				return
			}
			if last.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, nil
}

// emitError surfaces an internal failure as an in-band error event.
func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, err error) {
	runCtx.LogError("flow.error", "agent", f.agent.GetName(), "error", err.Error())

	ev := core.NewErrorEvent(runCtx.RunID, f.agent.GetName(), "FLOW_ERROR", err.Error())

	select {
	case <-runCtx.Context.Done():
	case eventChan <- ev:
	}
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event (final or intermediate). A nil return signals
// termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	// Refresh the session snapshot so request processors see the latest
	// conversation, including tool responses persisted by the engine.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			runCtx.LogWarn("flow.session.refresh_failed", "session_id", runCtx.SessionID, "error", err.Error())
		}
	}

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			f.emitError(runCtx, eventChan, fmt.Errorf("request processor %s: %w", processor.Name(), err))
			return nil
		}
	}

	if tools := f.agent.GetTools(); len(tools) > 0 && f.agent.IsFunctionCallingEnabled() {
		defs := make([]model.ToolDefinition, 0, len(tools))
		for _, t := range tools {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}

		// Stable ordering keeps requests reproducible across turns.
		sort.Slice(defs, func(i, j int) bool { return defs[i].Function.Name < defs[j].Function.Name })

		req.Tools = defs
	}

	req.Stream = f.agent.IsStreamingEnabled()

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			f.emitError(runCtx, eventChan, err)
			return nil
		}
	}

	// emit forwards an event and, for non-partial events, waits for the
	// engine to confirm persistence before the flow continues.
	emit := func(ev core.Event) error {
		select {
		case <-runCtx.Context.Done():
			return runCtx.Context.Err()
		case eventChan <- ev:
		}

		if !ev.IsPartial() && runCtx.Resume != nil {
			select {
			case <-runCtx.Context.Done():
				return runCtx.Context.Err()
			case <-runCtx.Resume:
			}
		}

		return nil
	}

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	// Drain both channels to completion; receiving from a closed channel
	// disables its case so buffered responses are never dropped.
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					f.emitError(runCtx, eventChan, fmt.Errorf("response processor %s: %w", processor.Name(), err))
					return nil
				}
			}

			if !resp.Partial && resp.Usage != nil {
				runCtx.LogDebug("flow.model.usage",
					"agent", f.agent.GetName(),
					"prompt_tokens", resp.Usage.PromptTokens,
					"completion_tokens", resp.Usage.CompletionTokens,
					"total_tokens", resp.Usage.TotalTokens)
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			// Mark turn complete for a final assistant response with no
			// pending tool calls.
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev
			if err := emit(ev); err != nil {
				return lastEvent
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				if last := f.dispatchFunctionCalls(runCtx, fnCalls, emit); last != nil {
					lastEvent = last
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				f.emitError(runCtx, eventChan, fmt.Errorf("model generation: %w", err))
				return nil
			}
		}
	}

	return lastEvent
}

// dispatchFunctionCalls gates each call through the approval flow, then hands
// the approved batch to the function executor. Rejected calls produce a
// function response carrying the rejection notice so the model can adjust.
func (f *BaseFlow) dispatchFunctionCalls(runCtx *core.RunContext, fnCalls []core.FunctionCall, emit func(core.Event) error) *core.Event {
	var lastEvent *core.Event

	approved := make([]core.FunctionCall, 0, len(fnCalls))

	for _, fc := range fnCalls {
		decision, err := f.interrupts.Check(runCtx.Context, fc)
		if err != nil {
			runCtx.LogWarn("flow.approval.failed", "function", fc.Name, "error", err.Error())
		}

		if decision != approval.DecisionApprove {
			respEv := core.NewFunctionResponseEvent(f.agent.GetName(), fc.ID, fc.Name, approval.RejectionMessage, nil)

			lastEvent = &respEv
			if emit(respEv) != nil {
				return lastEvent
			}

			continue
		}

		approved = append(approved, fc)
	}

	if len(approved) > 0 {
		f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), approved, func(ev core.Event) error {
			lastEvent = &ev
			return emit(ev)
		})
	}

	return lastEvent
}
