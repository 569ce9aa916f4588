package tool

import (
	"fmt"
	"strings"

	"github.com/lihan0705/lead-agent/core"
)

// SubagentInfo describes a launchable subagent for the task tool prompt.
type SubagentInfo struct {
	Name        string
	Description string
}

// SubagentRunner launches a delegated task on a named subagent and returns
// its final response text. The agent layer supplies the implementation; the
// tool package stays free of a dependency on it.
type SubagentRunner interface {
	RunSubagent(toolCtx *core.ToolContext, subagentType, description string) (string, error)
}

// SubagentRunnerFunc adapts a plain function to SubagentRunner.
type SubagentRunnerFunc func(toolCtx *core.ToolContext, subagentType, description string) (string, error)

// RunSubagent implements the SubagentRunner interface.
func (f SubagentRunnerFunc) RunSubagent(toolCtx *core.ToolContext, subagentType, description string) (string, error) {
	return f(toolCtx, subagentType, description)
}

// NewTaskTool creates the task tool, which delegates a described task to a
// subagent and returns its final text. The subagent list is rendered into the
// tool description so the model knows what it can launch.
func NewTaskTool(runner SubagentRunner, subagents []SubagentInfo) *FunctionTool {
	known := make(map[string]struct{}, len(subagents))
	names := make([]string, 0, len(subagents))

	var sb strings.Builder
	sb.WriteString("Delegate a task to a subagent that works autonomously in its own context window and reports back a single result. ")
	sb.WriteString("The subagent cannot ask follow-up questions, so the description must contain complete instructions and state exactly what the final report should include. ")
	sb.WriteString("Available subagent types:")
	for _, s := range subagents {
		known[s.Name] = struct{}{}
		names = append(names, s.Name)
		sb.WriteString(fmt.Sprintf("\n- %s: %s", s.Name, s.Description))
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "Complete instructions for the subagent, including what to report back.",
			},
			"subagent_type": map[string]any{
				"type":        "string",
				"description": "Type of subagent to launch.",
				"enum":        names,
			},
		},
		"required": []string{"description", "subagent_type"},
	}

	return NewFunctionTool("task", sb.String(), schema,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			if runner == nil {
				return nil, NewToolError("task", "subagents are not enabled", "SUBAGENTS_DISABLED")
			}

			subagentType := stringArg(args, "subagent_type", "")
			if _, ok := known[subagentType]; !ok {
				return nil, NewToolError("task",
					fmt.Sprintf("unknown subagent type %q; available: %s", subagentType, strings.Join(names, ", ")),
					"VALIDATION_ERROR")
			}

			return runner.RunSubagent(toolCtx, subagentType, stringArg(args, "description", ""))
		})
}
