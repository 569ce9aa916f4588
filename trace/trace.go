// Package trace renders a session's event history as a human-readable
// execution log: user turns, assistant replies, tool calls with compacted
// arguments, tool output previews, and the todo plan as it evolves.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/tool"
)

var (
	banner = strings.Repeat("=", 50)
	rule   = strings.Repeat("-", 50)
)

// Print writes the execution flow log for a session. Partial streaming
// fragments are skipped; every rendered block ends with a separator rule.
func Print(w io.Writer, sess *core.Session) {
	fmt.Fprintf(w, "\n%s\n🚀 EXECUTION FLOW LOG\n%s\n\n", banner, banner)

	if sess != nil {
		for _, ev := range sess.GetEvents() {
			if ev.IsPartial() {
				continue
			}
			if printEvent(w, ev) {
				fmt.Fprintln(w, rule)
			}
		}
	}

	fmt.Fprintln(w, "\n✅ Execution Finished.")
}

// printEvent renders one event and reports whether anything was written.
func printEvent(w io.Writer, ev core.Event) bool {
	if ev.ErrorMessage != nil {
		if ev.ErrorCode != nil && *ev.ErrorCode != "" {
			fmt.Fprintf(w, "❌ [Error %s]: %s\n", *ev.ErrorCode, *ev.ErrorMessage)
		} else {
			fmt.Fprintf(w, "❌ [Error]: %s\n", *ev.ErrorMessage)
		}
		return true
	}

	if ev.Content == nil {
		return false
	}

	switch ev.Content.Role {
	case "user":
		fmt.Fprintf(w, "👤 [User]: %s\n", ev.Content.Text())
		for _, p := range ev.Content.Parts {
			if fp, ok := p.(core.FilePart); ok {
				fmt.Fprintf(w, "📎 [Attachment]: %s\n", fp.Path)
			}
		}
		return true

	case "assistant":
		printed := false
		if text := ev.Content.Text(); text != "" {
			fmt.Fprintf(w, "🤖 [AI Says]: %s\n", text)
			printed = true
		}
		for _, fc := range ev.GetFunctionCalls() {
			fmt.Fprintf(w, "🛠️  [AI Calls Tool]: %s, %s\n", fc.Name, compactArgs(fc.Arguments))
			if fc.Name == "write_todos" {
				printPlan(w, fc.Arguments)
			}
			printed = true
		}
		return printed

	case "tool":
		printed := false
		for _, fr := range ev.GetFunctionResponses() {
			fmt.Fprintf(w, "📦 [Tool Output]: %s\n", preview(fr))
			printed = true
		}
		return printed
	}

	return false
}

// compactArgs collapses a JSON argument payload to one line. Non-JSON
// payloads fall back to newline stripping.
func compactArgs(args string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(args)); err != nil {
		return strings.ReplaceAll(args, "\n", " ")
	}
	return buf.String()
}

// preview renders a tool result on a single line.
func preview(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "ERROR: " + fr.Error
	}

	var out string
	switch v := fr.Response.(type) {
	case string:
		out = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			out = fmt.Sprintf("%v", v)
		} else {
			out = string(data)
		}
	}

	return strings.ReplaceAll(out, "\n", " ")
}

// printPlan renders the todo list carried by a write_todos call as a
// numbered checkbox list.
func printPlan(w io.Writer, args string) {
	var payload struct {
		Todos []tool.TodoItem `json:"todos"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err != nil || len(payload.Todos) == 0 {
		return
	}

	fmt.Fprintln(w, "    📋 Current Plan:")
	for i, todo := range payload.Todos {
		fmt.Fprintf(w, "       %d. %s %s\n", i+1, statusIcon(todo.Status), todo.Content)
	}
}

func statusIcon(status string) string {
	switch status {
	case tool.TodoCompleted:
		return "✅"
	case tool.TodoInProgress:
		return "🔄"
	default:
		return "⏳"
	}
}
