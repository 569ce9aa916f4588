package tool

import (
	"encoding/json"
	"fmt"

	"github.com/lihan0705/lead-agent/core"
)

// StateKeyTodos is the session state key the todo list is stored under.
const StateKeyTodos = "todos"

// Todo statuses. The convention is at most one in_progress item at a time;
// the tool documents but does not enforce it.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// TodoItem is a single entry of the session plan.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

const writeTodosDescription = `Create and manage a structured task list for the current session. ` +
	`The list you pass replaces the previous one completely, so always include every item that is still relevant. ` +
	`Mark exactly one item as in_progress while you work on it, and mark items completed as soon as they are done.`

// NewWriteTodosTool creates the write_todos tool. It replaces the session
// todo list stored under StateKeyTodos.
func NewWriteTodosTool() *FunctionTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type":        "array",
				"description": "The complete todo list; replaces the previous list.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{
							"type":        "string",
							"description": "Short imperative description of the task.",
						},
						"status": map[string]any{
							"type": "string",
							"enum": []string{TodoPending, TodoInProgress, TodoCompleted},
						},
					},
					"required": []string{"content", "status"},
				},
			},
		},
		"required": []string{"todos"},
	}

	return NewFunctionTool("write_todos", writeTodosDescription, schema,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			todos, err := DecodeTodos(args["todos"])
			if err != nil {
				return nil, NewToolError("write_todos", err.Error(), "VALIDATION_ERROR")
			}

			toolCtx.SetState(StateKeyTodos, todos)

			return fmt.Sprintf("Updated todo list (%d items)", len(todos)), nil
		})
}

// DecodeTodos converts a todo list value into []TodoItem. It accepts the
// typed slice the tool stores as well as the []any shape JSON decoding
// produces after a session round-trips through a persistent store.
func DecodeTodos(v any) ([]TodoItem, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []TodoItem:
		return list, nil
	case []any:
		todos := make([]TodoItem, 0, len(list))
		for i, raw := range list {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("todo %d: expected an object, got %T", i, raw)
			}

			item := TodoItem{
				Content: stringArg(m, "content", ""),
				Status:  stringArg(m, "status", TodoPending),
			}
			if item.Content == "" {
				return nil, fmt.Errorf("todo %d: content must not be empty", i)
			}
			switch item.Status {
			case TodoPending, TodoInProgress, TodoCompleted:
			default:
				return nil, fmt.Errorf("todo %d: invalid status %q", i, item.Status)
			}

			todos = append(todos, item)
		}
		return todos, nil
	default:
		// Values loaded from a persistent store may arrive as raw JSON.
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("todos: unsupported value %T", v)
		}
		var todos []TodoItem
		if err := json.Unmarshal(data, &todos); err != nil {
			return nil, fmt.Errorf("todos: unsupported value %T", v)
		}
		return todos, nil
	}
}
