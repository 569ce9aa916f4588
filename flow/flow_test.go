package flow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lihan0705/lead-agent/approval"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/logging"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFlowAgent is a minimal FlowAgent for flow tests.
type mockFlowAgent struct {
	name         string
	llm          model.Model
	tools        map[string]tool.Tool
	instructions string
	resolveErr   error
	streaming    bool
	maxHist      int
}

func (m *mockFlowAgent) GetName() string { return m.name }

func (m *mockFlowAgent) GetLLM() model.Model { return m.llm }

func (m *mockFlowAgent) GetTools() map[string]tool.Tool { return m.tools }

func (m *mockFlowAgent) IsFunctionCallingEnabled() bool { return len(m.tools) > 0 }

func (m *mockFlowAgent) IsStreamingEnabled() bool { return m.streaming }

func (m *mockFlowAgent) MaxHistoryMessages() int { return m.maxHist }

func (m *mockFlowAgent) ResolveInstructions(_ *core.RunContext) (string, error) {
	return m.instructions, m.resolveErr
}

// scriptedModel plays back one canned response per Generate call and records
// the requests it received.
type scriptedModel struct {
	mu         sync.Mutex
	reqs       []model.Request
	turns      []func(req model.Request) model.Response
	repeatLast bool
}

func (m *scriptedModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	idx := len(m.reqs) - 1
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if idx >= len(m.turns) {
			if !m.repeatLast {
				errCh <- fmt.Errorf("no scripted turn %d", idx)
				return
			}
			idx = len(m.turns) - 1
		}

		respCh <- m.turns[idx](req)
	}()

	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

func (m *scriptedModel) requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.reqs...)
}

func textResponse(text string) func(model.Request) model.Response {
	return func(model.Request) model.Response {
		return model.Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
			FinishReason: "stop",
		}
	}
}

func callResponse(calls ...core.FunctionCall) func(model.Request) model.Response {
	return func(model.Request) model.Response {
		parts := make([]core.Part, 0, len(calls))
		for _, fc := range calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}
		return model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: "tool_calls",
		}
	}
}

func newFlowRunContext(t *testing.T, userMsg string, resume <-chan struct{}) *core.RunContext {
	t.Helper()

	store := session.NewInMemoryStore()
	_, err := store.Create("sess")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("sess", core.NewUserMessageEvent("run", userMsg)))

	sess, err := store.Get("sess")
	require.NoError(t, err)

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: userMsg}}}

	return core.NewRunContext(context.Background(), "sess", "run",
		core.AgentInfo{Name: "agent", Type: "model"}, userContent, 25,
		make(chan core.Event, eventBufferSize), resume, sess, store, nil, logging.NoOpLogger{})
}

func collectEvents(t *testing.T, evCh <-chan core.Event) []core.Event {
	t.Helper()

	var events []core.Event
	timeout := time.After(5 * time.Second)

	for {
		select {
		case ev, ok := <-evCh:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timeout waiting for flow events, got %d so far", len(events))
		}
	}
}

func TestSingleAgentFlow_FinalResponse(t *testing.T) {
	mockModel := model.NewMockModel("test-model", "mock")
	mockModel.AddResponse("test message", "Hello back.")

	agent := &mockFlowAgent{name: "test-agent", llm: mockModel, instructions: "You are a test assistant.", maxHist: 10}
	rc := newFlowRunContext(t, "test message", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 1)

	final := events[0]
	assert.Equal(t, "test-agent", final.Author)
	assert.Equal(t, "Hello back.", final.Content.Text())
	require.NotNil(t, final.TurnComplete)
	assert.True(t, *final.TurnComplete)
}

func TestSingleAgentFlow_Streaming(t *testing.T) {
	mockModel := model.NewMockModel("test-model", "mock")
	mockModel.AddResponse("hi", "Yo!")

	agent := &mockFlowAgent{name: "test-agent", llm: mockModel, streaming: true, maxHist: 10}
	rc := newFlowRunContext(t, "hi", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 4) // one partial per rune, then the final

	for _, ev := range events[:3] {
		assert.True(t, ev.IsPartial())
	}

	final := events[3]
	assert.False(t, final.IsPartial())
	assert.Equal(t, "Yo!", final.Content.Text())
}

func TestSingleAgentFlow_ToolLoop(t *testing.T) {
	lookup := &stubTool{name: "lookup", result: "result-42"}
	llm := &scriptedModel{turns: []func(model.Request) model.Response{
		callResponse(core.FunctionCall{ID: "fc1", Name: "lookup", Arguments: "{}"}),
		textResponse("done"),
	}}

	agent := &mockFlowAgent{name: "test-agent", llm: llm, tools: map[string]tool.Tool{"lookup": lookup}, maxHist: 10}
	rc := newFlowRunContext(t, "look it up", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 3)

	require.Len(t, events[0].GetFunctionCalls(), 1)
	assert.Nil(t, events[0].TurnComplete)

	frs := events[1].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "lookup", frs[0].Name)
	assert.Equal(t, "result-42", frs[0].Response)

	assert.Equal(t, "done", events[2].Content.Text())
	assert.Equal(t, int32(1), lookup.calls.Load())

	// The second request advertised the tool again.
	reqs := llm.requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Tools, 1)
	assert.Equal(t, "lookup", reqs[1].Tools[0].Function.Name)
}

func TestSingleAgentFlow_ParallelToolCalls(t *testing.T) {
	t1 := &stubTool{name: "t1", delay: 30 * time.Millisecond, result: 1, state: map[string]any{"a": 1}}
	t2 := &stubTool{name: "t2", delay: 5 * time.Millisecond, result: 2}
	llm := &scriptedModel{turns: []func(model.Request) model.Response{
		callResponse(
			core.FunctionCall{ID: "fc1", Name: "t1", Arguments: "{}"},
			core.FunctionCall{ID: "fc2", Name: "t2", Arguments: "{}"},
		),
		textResponse("both done"),
	}}

	agent := &mockFlowAgent{name: "test-agent", llm: llm, tools: map[string]tool.Tool{"t1": t1, "t2": t2}, maxHist: 10}
	rc := newFlowRunContext(t, "run both", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 4)

	// Responses arrive in call order despite t2 finishing first.
	first := events[1].GetFunctionResponses()
	second := events[2].GetFunctionResponses()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "t1", first[0].Name)
	assert.Equal(t, "t2", second[0].Name)

	assert.Equal(t, 1, events[1].Actions.StateDelta["a"])
	assert.Equal(t, "both done", events[3].Content.Text())
}

func TestSingleAgentFlow_RejectedToolCall(t *testing.T) {
	danger := &stubTool{name: "danger", result: "should never run"}
	llm := &scriptedModel{turns: []func(model.Request) model.Response{
		callResponse(core.FunctionCall{ID: "fc1", Name: "danger", Arguments: "{}"}),
		textResponse("understood"),
	}}

	gate := approval.NewGate(
		approval.Func(func(_ context.Context, _ approval.Request) (approval.Decision, error) {
			return approval.DecisionReject, nil
		}),
		map[string]approval.InterruptConfig{
			"danger": {AllowedDecisions: []approval.Decision{approval.DecisionApprove, approval.DecisionReject}},
		},
		"",
	)

	agent := &mockFlowAgent{name: "test-agent", llm: llm, tools: map[string]tool.Tool{"danger": danger}, maxHist: 10}
	rc := newFlowRunContext(t, "do something risky", nil)

	evCh, err := NewSingleAgentFlow(agent, nil, func(o *BaseFlowOptions) { o.Interrupts = gate }).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 3)

	frs := events[1].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, approval.RejectionMessage, frs[0].Response)
	assert.Equal(t, int32(0), danger.calls.Load())
}

func TestSingleAgentFlow_ModelError(t *testing.T) {
	llm := &scriptedModel{} // no scripted turns => generation error

	agent := &mockFlowAgent{name: "test-agent", llm: llm, maxHist: 10}
	rc := newFlowRunContext(t, "hello", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "no scripted turn")
}

func TestSingleAgentFlow_InstructionsError(t *testing.T) {
	agent := &mockFlowAgent{name: "test-agent", resolveErr: fmt.Errorf("prompt file unreadable"), maxHist: 10}
	rc := newFlowRunContext(t, "hello", nil)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "prompt file unreadable")
}

func TestSingleAgentFlow_MaxModelCallsEnforced(t *testing.T) {
	echo := &stubTool{name: "echo", result: "x"}
	llm := &scriptedModel{
		turns: []func(model.Request) model.Response{
			callResponse(core.FunctionCall{ID: "fc", Name: "echo", Arguments: "{}"}),
		},
		repeatLast: true, // the model never stops asking for tools
	}

	store := session.NewInMemoryStore()
	_, err := store.Create("sess")
	require.NoError(t, err)
	sess, err := store.Get("sess")
	require.NoError(t, err)

	rc := core.NewRunContext(context.Background(), "sess", "run",
		core.AgentInfo{Name: "agent", Type: "model"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "loop"}}},
		2, make(chan core.Event, eventBufferSize), nil, sess, store, nil, logging.NoOpLogger{})

	agent := &mockFlowAgent{name: "test-agent", llm: llm, tools: map[string]tool.Tool{"echo": echo}, maxHist: 10}

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	events := collectEvents(t, evCh)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.NotNil(t, last.ErrorMessage)
	assert.Contains(t, *last.ErrorMessage, "exceeded max model calls")
	assert.Equal(t, int32(2), echo.calls.Load())
}

func TestSingleAgentFlow_EnricherExtendsInstructions(t *testing.T) {
	llm := &scriptedModel{turns: []func(model.Request) model.Response{textResponse("ok")}}

	agent := &mockFlowAgent{name: "test-agent", llm: llm, instructions: "Base instructions.", maxHist: 10}
	rc := newFlowRunContext(t, "hello", nil)

	enricher := requestProcessorFunc{
		name: "suffix",
		fn: func(_ *core.RunContext, req *model.Request, _ FlowAgent) error {
			req.Instructions += "\n\nInjected context."
			return nil
		},
	}

	evCh, err := NewSingleAgentFlow(agent, []RequestProcessor{enricher}).Execute(rc)
	require.NoError(t, err)
	collectEvents(t, evCh)

	reqs := llm.requests()
	require.Len(t, reqs, 1)
	require.NotEmpty(t, reqs[0].Contents)

	system := reqs[0].Contents[0]
	assert.Equal(t, "system", system.Role)
	assert.Equal(t, "Base instructions.\n\nInjected context.", system.Text())
}

func TestBaseFlow_WaitsForResume(t *testing.T) {
	mockModel := model.NewMockModel("test-model", "mock")
	mockModel.AddResponse("hi", "done")

	agent := &mockFlowAgent{name: "test-agent", llm: mockModel, maxHist: 10}
	resume := make(chan struct{})
	rc := newFlowRunContext(t, "hi", resume)

	evCh, err := NewSingleAgentFlow(agent, nil).Execute(rc)
	require.NoError(t, err)

	ev := <-evCh
	require.NotNil(t, ev.Content)

	select {
	case _, open := <-evCh:
		if !open {
			t.Fatal("flow terminated before resume was signalled")
		}
		t.Fatal("unexpected extra event before resume")
	case <-time.After(50 * time.Millisecond):
	}

	resume <- struct{}{}

	_, open := <-evCh
	assert.False(t, open)
}

// requestProcessorFunc adapts a function to RequestProcessor for tests.
type requestProcessorFunc struct {
	name string
	fn   func(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

func (p requestProcessorFunc) Name() string { return p.name }
func (p requestProcessorFunc) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	return p.fn(runCtx, req, agent)
}
