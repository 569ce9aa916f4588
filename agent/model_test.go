package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/logging"
	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/tool"
)

// newAgentRunContext builds a run context backed by a real in-memory session
// store seeded with one user message. It returns the receive side of the
// emit channel so tests can inspect forwarded events.
func newAgentRunContext(t *testing.T, userMsg string, maxCalls int) (*core.RunContext, chan core.Event) {
	t.Helper()

	store := session.NewInMemoryStore()
	sessionID := core.NewID()

	_, err := store.Create(sessionID)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(sessionID, core.NewUserMessageEvent("run-1", userMsg)))

	sess, err := store.Get(sessionID)
	require.NoError(t, err)

	emit := make(chan core.Event, 100)

	rc := core.NewRunContext(
		context.Background(),
		sessionID,
		"run-1",
		core.AgentInfo{Name: "helper", Type: "model"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: userMsg}}},
		maxCalls,
		emit,
		nil,
		sess,
		store,
		nil,
		logging.NoOpLogger{},
	)

	return rc, emit
}

func drainEvents(emit chan core.Event) []core.Event {
	var events []core.Event
	for len(emit) > 0 {
		events = append(events, <-emit)
	}
	return events
}

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echoes input", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return "ok", nil })
}

func TestModelAgent_Defaults(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	a := NewModelAgent("helper", llm)

	assert.Equal(t, "helper", a.Name())
	assert.Equal(t, llm, a.GetLLM())
	assert.True(t, a.IsStreamingEnabled())
	assert.True(t, a.IsFunctionCallingEnabled())
	assert.Equal(t, DefaultToolTimeout, a.toolTimeout)
	assert.Zero(t, a.MaxHistoryMessages())
	assert.Empty(t, a.ListTools())
	assert.Nil(t, a.Subagents())

	got, err := a.ResolveInstructions(newTestRunContext())
	require.NoError(t, err)
	assert.Equal(t, "You are helper, a helpful AI assistant.", got)
}

func TestModelAgent_RegisterTools(t *testing.T) {
	a := NewModelAgent("helper", model.NewMockModel("mock", "test"))
	a.RegisterTools(echoTool("zeta"), echoTool("alpha"))

	assert.Equal(t, []string{"alpha", "zeta"}, a.ListTools())

	_, ok := a.GetTool("alpha")
	assert.True(t, ok)
	_, ok = a.GetTool("ghost")
	assert.False(t, ok)

	// GetTools returns a copy, not the live registry.
	tools := a.GetTools()
	delete(tools, "alpha")
	_, ok = a.GetTool("alpha")
	assert.True(t, ok)
}

func TestModelAgent_Run_FinalResponse(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("hello", "Hi there!")

	a := NewModelAgent("helper", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
	})

	rc, emit := newAgentRunContext(t, "hello", 5)
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 1)

	assert.Equal(t, "helper", events[0].Author)
	assert.Equal(t, "Hi there!", events[0].Content.Text())
	require.NotNil(t, events[0].TurnComplete)
	assert.True(t, *events[0].TurnComplete)
}

func TestModelAgent_Run_Streaming(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("hello", "Hi!")

	a := NewModelAgent("helper", llm)

	rc, emit := newAgentRunContext(t, "hello", 5)
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 4) // three partial chunks plus the final event

	assert.True(t, events[0].IsPartial())
	assert.False(t, events[3].IsPartial())
	assert.Equal(t, "Hi!", events[3].Content.Text())
}

func TestModelAgent_Run_OutputKey(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("hello", "Hi there!")

	a := NewModelAgent("helper", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
		o.OutputKey = "answer"
	})

	rc, emit := newAgentRunContext(t, "hello", 5)
	require.NoError(t, a.Run(rc))

	events := drainEvents(emit)
	require.Len(t, events, 1)

	assert.Equal(t, "Hi there!", events[0].Actions.StateDelta["answer"])
}

func TestModelAgent_ApplyOutputKeySkipsPartials(t *testing.T) {
	a := NewModelAgent("helper", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.OutputKey = "answer"
	})

	partial := true
	ev := core.NewMessageEvent("helper", "chunk")
	ev.Partial = &partial
	a.applyOutputKey(&ev)

	assert.Nil(t, ev.Actions.StateDelta)
}
