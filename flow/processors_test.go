package flow

import (
	"testing"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionsProcessor(t *testing.T) {
	p := NewInstructionsProcessor()
	assert.Equal(t, "instructions", p.Name())

	t.Run("Plain", func(t *testing.T) {
		rc := newFlowRunContext(t, "hi", nil)
		agent := &mockFlowAgent{name: "a", instructions: "You are concise."}

		req := &model.Request{}
		require.NoError(t, p.ProcessRequest(rc, req, agent))
		assert.Equal(t, "You are concise.", req.Instructions)
	})

	t.Run("TemplateFromSessionState", func(t *testing.T) {
		rc := newFlowRunContext(t, "hi", nil)
		rc.Session.SetState("persona", "pirate")
		agent := &mockFlowAgent{name: "a", instructions: "Answer as a {{.persona}}."}

		req := &model.Request{}
		require.NoError(t, p.ProcessRequest(rc, req, agent))
		assert.Equal(t, "Answer as a pirate.", req.Instructions)
	})

	t.Run("ResolveError", func(t *testing.T) {
		rc := newFlowRunContext(t, "hi", nil)
		agent := &mockFlowAgent{name: "a", resolveErr: assert.AnError}

		err := p.ProcessRequest(rc, &model.Request{}, agent)
		assert.ErrorContains(t, err, "resolve instructions")
	})
}

func TestContentsProcessor(t *testing.T) {
	p := NewContentsProcessor()
	assert.Equal(t, "contents", p.Name())

	t.Run("SystemFirstThenHistory", func(t *testing.T) {
		rc := newFlowRunContext(t, "first message", nil)
		rc.Session.AddEvent(core.NewMessageEvent("a", "assistant reply"))
		agent := &mockFlowAgent{name: "a", maxHist: 10}

		req := &model.Request{Instructions: "sys"}
		require.NoError(t, p.ProcessRequest(rc, req, agent))

		require.Len(t, req.Contents, 3)
		assert.Equal(t, "system", req.Contents[0].Role)
		assert.Equal(t, "sys", req.Contents[0].Text())
		assert.Equal(t, "first message", req.Contents[1].Text())
		assert.Equal(t, "assistant reply", req.Contents[2].Text())
	})

	t.Run("HistoryWindowKeepsTail", func(t *testing.T) {
		rc := newFlowRunContext(t, "m1", nil)
		rc.Session.AddEvent(core.NewUserMessageEvent("run", "m2"))
		rc.Session.AddEvent(core.NewUserMessageEvent("run", "m3"))
		agent := &mockFlowAgent{name: "a", maxHist: 2}

		req := &model.Request{Instructions: "sys"}
		require.NoError(t, p.ProcessRequest(rc, req, agent))

		require.Len(t, req.Contents, 3) // system + last two messages
		assert.Equal(t, "m2", req.Contents[1].Text())
		assert.Equal(t, "m3", req.Contents[2].Text())
	})

	t.Run("ZeroWindowMeansUnlimited", func(t *testing.T) {
		rc := newFlowRunContext(t, "m1", nil)
		rc.Session.AddEvent(core.NewUserMessageEvent("run", "m2"))
		agent := &mockFlowAgent{name: "a", maxHist: 0}

		req := &model.Request{Instructions: "sys"}
		require.NoError(t, p.ProcessRequest(rc, req, agent))
		assert.Len(t, req.Contents, 3)
	})

	t.Run("PartialEventsExcluded", func(t *testing.T) {
		rc := newFlowRunContext(t, "m1", nil)

		partial := core.NewMessageEvent("a", "strea")
		isPartial := true
		partial.Partial = &isPartial
		rc.Session.AddEvent(partial)

		agent := &mockFlowAgent{name: "a", maxHist: 10}

		req := &model.Request{Instructions: "sys"}
		require.NoError(t, p.ProcessRequest(rc, req, agent))
		assert.Len(t, req.Contents, 2) // system + user message only
	})
}
