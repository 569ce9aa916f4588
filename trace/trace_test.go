package trace

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihan0705/lead-agent/core"
)

func TestPrint_FullLog(t *testing.T) {
	sess := core.NewSession("sess-1")

	mime := "text/csv"
	sess.AddEvent(core.NewUserContentEvent("inv-1", &core.Content{
		Role: "user",
		Parts: []core.Part{
			core.TextPart{Text: "Summarize the attached report."},
			core.FilePart{Path: "/tmp/report.csv", MimeType: &mime},
		},
	}))

	planCall := core.NewEvent("inv-1", "lead_agent")
	planCall.Content = &core.Content{
		Role: "assistant",
		Parts: []core.Part{
			core.TextPart{Text: "Let me plan this out."},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:   "call-1",
				Name: "write_todos",
				Arguments: `{
					"todos": [
						{"content": "Read the report", "status": "completed"},
						{"content": "Extract key figures", "status": "in_progress"},
						{"content": "Write the summary", "status": "pending"}
					]
				}`,
			}},
		},
	}
	sess.AddEvent(planCall)

	partial := true
	chunk := core.NewMessageEvent("lead_agent", "streaming fragment")
	chunk.Partial = &partial
	sess.AddEvent(chunk)

	sess.AddEvent(core.NewFunctionResponseEvent("lead_agent", "call-1", "write_todos", "Todo list updated.\nThree items tracked.", nil))
	sess.AddEvent(core.NewFunctionResponseEvent("lead_agent", "call-2", "read_file", nil, errors.New("file not found")))
	sess.AddEvent(core.NewMessageEvent("lead_agent", "The report shows revenue up 12%."))
	sess.AddEvent(core.NewErrorEvent("inv-1", "lead_agent", "rate_limited", "model call rejected"))

	var buf strings.Builder
	Print(&buf, sess)
	out := buf.String()

	assert.Contains(t, out, "🚀 EXECUTION FLOW LOG")
	assert.Contains(t, out, strings.Repeat("=", 50))
	assert.Contains(t, out, "👤 [User]: Summarize the attached report.")
	assert.Contains(t, out, "📎 [Attachment]: /tmp/report.csv")
	assert.Contains(t, out, "🤖 [AI Says]: Let me plan this out.")
	assert.Contains(t, out, "🛠️  [AI Calls Tool]: write_todos,")
	assert.Contains(t, out, "    📋 Current Plan:")
	assert.Contains(t, out, "       1. ✅ Read the report")
	assert.Contains(t, out, "       2. 🔄 Extract key figures")
	assert.Contains(t, out, "       3. ⏳ Write the summary")
	assert.Contains(t, out, "📦 [Tool Output]: Todo list updated. Three items tracked.")
	assert.Contains(t, out, "📦 [Tool Output]: ERROR: file not found")
	assert.Contains(t, out, "🤖 [AI Says]: The report shows revenue up 12%.")
	assert.Contains(t, out, "❌ [Error rate_limited]: model call rejected")
	assert.Contains(t, out, "✅ Execution Finished.")

	assert.NotContains(t, out, "streaming fragment")
	assert.NotContains(t, out, "\n\t")

	userIdx := strings.Index(out, "👤 [User]")
	planIdx := strings.Index(out, "📋 Current Plan")
	outputIdx := strings.Index(out, "📦 [Tool Output]")
	finalIdx := strings.Index(out, "revenue up 12%")
	require.True(t, userIdx >= 0 && planIdx > userIdx && outputIdx > planIdx && finalIdx > outputIdx)
}

func TestPrint_CompactsCallArguments(t *testing.T) {
	sess := core.NewSession("sess-2")

	ev := core.NewEvent("inv-1", "lead_agent")
	ev.Content = &core.Content{
		Role: "assistant",
		Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{
				Name: "write_file",
				Arguments: `{
					"file_path": "notes.txt",
					"content": "hello"
				}`,
			}},
		},
	}
	sess.AddEvent(ev)

	var buf strings.Builder
	Print(&buf, sess)

	assert.Contains(t, buf.String(), `🛠️  [AI Calls Tool]: write_file, {"file_path":"notes.txt","content":"hello"}`)
}

func TestPrint_StructuredToolOutput(t *testing.T) {
	sess := core.NewSession("sess-3")
	sess.AddEvent(core.NewFunctionResponseEvent("lead_agent", "call-9", "list_files", map[string]any{"count": 2}, nil))

	var buf strings.Builder
	Print(&buf, sess)

	assert.Contains(t, buf.String(), `📦 [Tool Output]: {"count":2}`)
}

func TestPrint_EmptySession(t *testing.T) {
	var buf strings.Builder
	Print(&buf, core.NewSession("empty"))
	out := buf.String()

	assert.Contains(t, out, "🚀 EXECUTION FLOW LOG")
	assert.Contains(t, out, "✅ Execution Finished.")
	assert.NotContains(t, out, strings.Repeat("-", 50))
}

func TestPrint_NilSession(t *testing.T) {
	var buf strings.Builder
	Print(&buf, nil)

	assert.Contains(t, buf.String(), "✅ Execution Finished.")
}
