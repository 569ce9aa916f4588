package flow

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a configurable tool double shared by the flow tests.
type stubTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
	state    map[string]any
	calls    atomic.Int32
}

func (st *stubTool) Name() string { return st.name }

func (st *stubTool) Description() string { return "stub tool" }

func (st *stubTool) Parameters() map[string]any { return map[string]any{} }

func (st *stubTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	st.calls.Add(1)

	if st.delay > 0 {
		select {
		case <-time.After(st.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if st.panicMsg != nil {
		panic(st.panicMsg)
	}
	for k, v := range st.state {
		tc.SetState(k, v)
	}

	return st.result, st.err
}

func registry(tools ...*stubTool) map[string]tool.Tool {
	m := make(map[string]tool.Tool, len(tools))
	for _, st := range tools {
		m[st.name] = st
	}
	return m
}

func TestFunctionExecutor_Single(t *testing.T) {
	tools := registry(&stubTool{name: "one", result: 42})
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "one", Arguments: "{}"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	frs := events[0].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "one", frs[0].Name)
	assert.Equal(t, 42, frs[0].Response)
}

func TestFunctionExecutor_ParallelUnordered(t *testing.T) {
	tools := registry(
		&stubTool{name: "slow", delay: 60 * time.Millisecond, result: "s"},
		&stubTool{name: "fast", delay: 5 * time.Millisecond, result: "f"},
	)
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := newFlowRunContext(t, "msg", nil)

	fnCalls := []core.FunctionCall{
		{ID: "1", Name: "slow", Arguments: "{}"},
		{ID: "2", Name: "fast", Arguments: "{}"},
	}

	var order []string
	start := time.Now()
	exec.Execute(rc, agent, tools, fnCalls,
		func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil })
	elapsed := time.Since(start)

	require.Len(t, order, 2)
	assert.Equal(t, "fast", order[0])
	assert.Less(t, elapsed, 90*time.Millisecond, "expected parallel speedup")
}

func TestFunctionExecutor_PreserveOrder(t *testing.T) {
	tools := registry(
		&stubTool{name: "t1", delay: 30 * time.Millisecond, result: 1},
		&stubTool{name: "t2", delay: 5 * time.Millisecond, result: 2},
	)
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: true})
	rc := newFlowRunContext(t, "msg", nil)

	fnCalls := []core.FunctionCall{
		{ID: "1", Name: "t1", Arguments: "{}"},
		{ID: "2", Name: "t2", Arguments: "{}"},
	}

	var order []string
	exec.Execute(rc, agent, tools, fnCalls,
		func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil })

	assert.Equal(t, []string{"t1", "t2"}, order)
}

func TestFunctionExecutor_ErrorIsolation(t *testing.T) {
	tools := registry(
		&stubTool{name: "ok", result: "fine"},
		&stubTool{name: "bad", err: errors.New("boom")},
	)
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: true})
	rc := newFlowRunContext(t, "msg", nil)

	fnCalls := []core.FunctionCall{
		{ID: "1", Name: "ok", Arguments: "{}"},
		{ID: "2", Name: "bad", Arguments: "{}"},
	}

	var events []core.Event
	exec.Execute(rc, agent, tools, fnCalls,
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 2)
	assert.Empty(t, events[0].GetFunctionResponses()[0].Error)
	assert.Equal(t, "boom", events[1].GetFunctionResponses()[0].Error)
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	tools := registry(&stubTool{name: "kaboom", panicMsg: "unexpected nil"})
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "kaboom", Arguments: "{}"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	frErr := events[0].GetFunctionResponses()[0].Error
	assert.Contains(t, frErr, "panic recovered")
	assert.Contains(t, frErr, "unexpected nil")
}

func TestFunctionExecutor_ToolTimeout(t *testing.T) {
	tools := registry(&stubTool{name: "sleepy", delay: 2 * time.Second, result: "never"})
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{ToolTimeout: 30 * time.Millisecond})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	start := time.Now()
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "sleepy", Arguments: "{}"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	assert.Contains(t, events[0].GetFunctionResponses()[0].Error, "context deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

func TestFunctionExecutor_ActionsApplied(t *testing.T) {
	tools := registry(&stubTool{name: "act", result: "done", state: map[string]any{"k": "v"}})
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "act", Arguments: "{}"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	assert.Equal(t, "v", events[0].Actions.StateDelta["k"])
}

func TestFunctionExecutor_UnknownTool(t *testing.T) {
	tools := registry()
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "ghost", Arguments: "{}"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	assert.Contains(t, events[0].GetFunctionResponses()[0].Error, "tool ghost not found")
}

func TestFunctionExecutor_MalformedArguments(t *testing.T) {
	tools := registry(&stubTool{name: "one", result: 1})
	agent := &mockFlowAgent{name: "A", tools: tools}
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t, "msg", nil)

	var events []core.Event
	exec.Execute(rc, agent, tools, []core.FunctionCall{{ID: "1", Name: "one", Arguments: "{not json"}},
		func(ev core.Event) error { events = append(events, ev); return nil })

	require.Len(t, events, 1)
	assert.Contains(t, events[0].GetFunctionResponses()[0].Error, "failed to unmarshal args")
}
