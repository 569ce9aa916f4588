package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
)

func TestEnableSubagents_RegistersTaskTool(t *testing.T) {
	a := NewModelAgent("main", model.NewMockModel("mock", "test"))
	a.RegisterTool(echoTool("echo"))
	a.EnableSubagents()

	_, ok := a.GetTool("task")
	require.True(t, ok)
	assert.Contains(t, a.Subagents(), GeneralPurposeSubagent)

	// The general-purpose subagent inherits regular tools but never the task
	// tool, so delegation cannot nest.
	gp := a.subagents[GeneralPurposeSubagent]
	require.NotNil(t, gp)

	_, ok = gp.GetTool("echo")
	assert.True(t, ok)
	_, ok = gp.GetTool("task")
	assert.False(t, ok)
	assert.False(t, gp.IsStreamingEnabled())
}

func TestEnableSubagents_CustomConfig(t *testing.T) {
	a := NewModelAgent("main", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Main instructions.")
	})
	a.EnableSubagents(SubagentConfig{
		Name:        "researcher",
		Description: "Digs through sources.",
		Instruction: NewInstructionFromText("You research things."),
	})

	assert.ElementsMatch(t, []string{GeneralPurposeSubagent, "researcher"}, a.Subagents())

	got, err := a.subagents["researcher"].ResolveInstructions(newTestRunContext())
	require.NoError(t, err)
	assert.Equal(t, "You research things.", got)
}

func TestEnableSubagents_InstructionFallback(t *testing.T) {
	a := NewModelAgent("main", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Main instructions.")
	})
	a.EnableSubagents(SubagentConfig{Name: "helper-type", Description: "No own prompt."})

	got, err := a.subagents["helper-type"].ResolveInstructions(newTestRunContext())
	require.NoError(t, err)
	assert.Equal(t, "Main instructions.", got)
}

func TestRunSubagent_ReturnsFinalText(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("investigate the flaky test", "It is a timing issue.")

	a := NewModelAgent("main", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
	})
	a.EnableSubagents()

	rc, _ := newAgentRunContext(t, "hello", 10)
	toolCtx := core.NewToolContext(rc, "call-1")

	got, err := a.runSubagent(toolCtx, GeneralPurposeSubagent, "investigate the flaky test")
	require.NoError(t, err)
	assert.Equal(t, "It is a timing issue.", got)

	// The delegated run must not leak events into the parent session.
	parentSess, err := rc.SessionStore.Get(rc.SessionID)
	require.NoError(t, err)
	assert.Len(t, parentSess.GetEvents(), 1)
}

func TestRunSubagent_UnknownType(t *testing.T) {
	a := NewModelAgent("main", model.NewMockModel("mock", "test"))
	a.EnableSubagents()

	rc, _ := newAgentRunContext(t, "hello", 10)
	_, err := a.runSubagent(core.NewToolContext(rc, "call-1"), "ghost", "do something")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown subagent type")
}

func TestRunSubagent_SharesModelCallBudget(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("first task", "done")
	llm.AddResponse("second task", "done")

	a := NewModelAgent("main", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
	})
	a.EnableSubagents()

	rc, _ := newAgentRunContext(t, "hello", 1)

	_, err := a.runSubagent(core.NewToolContext(rc, "call-1"), GeneralPurposeSubagent, "first task")
	require.NoError(t, err)

	_, err = a.runSubagent(core.NewToolContext(rc, "call-2"), GeneralPurposeSubagent, "second task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max model calls")
}
