package tool

import (
	"strings"

	"github.com/lihan0705/lead-agent/core"
)

type globArgs struct {
	Pattern string `json:"pattern" description:"Glob pattern relative to the workspace root; ** matches nested directories (e.g. **/*.go)"`
}

// NewGlobTool creates the glob tool. Matches are returned sorted, one path
// per line.
func NewGlobTool() *FunctionTool {
	return NewFunctionToolFromStruct("glob",
		"Find files matching a glob pattern in the workspace.",
		globArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "glob")
			if err != nil {
				return nil, err
			}

			paths, err := b.Glob(stringArg(args, "pattern", ""))
			if err != nil {
				return nil, wrapBackendErr("glob", err)
			}
			if len(paths) == 0 {
				return "No files found", nil
			}
			return strings.Join(paths, "\n"), nil
		})
}
