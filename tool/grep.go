package tool

import (
	"fmt"
	"strings"

	"github.com/lihan0705/lead-agent/core"
)

const grepDefaultLimit = 100

type grepArgs struct {
	Pattern string `json:"pattern" description:"Regular expression to search for"`
	Include string `json:"include,omitempty" description:"Optional glob filter for file paths (e.g. *.go)"`
	Limit   int    `json:"limit,omitempty" description:"Maximum number of matches to return (default 100)"`
}

// NewGrepTool creates the grep tool. Matches are reported as
// "path:line: text", capped at the requested limit.
func NewGrepTool() *FunctionTool {
	return NewFunctionToolFromStruct("grep",
		"Search file contents in the workspace with a regular expression. Optionally filter files with an include glob.",
		grepArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "grep")
			if err != nil {
				return nil, err
			}

			limit := intArg(args, "limit", grepDefaultLimit)
			if limit <= 0 {
				limit = grepDefaultLimit
			}

			matches, err := b.Grep(stringArg(args, "pattern", ""), stringArg(args, "include", ""), limit)
			if err != nil {
				return nil, wrapBackendErr("grep", err)
			}
			if len(matches) == 0 {
				return "No matches found", nil
			}

			out := make([]string, 0, len(matches))
			for _, m := range matches {
				out = append(out, fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text))
			}
			result := strings.Join(out, "\n")
			if len(matches) == limit {
				result += fmt.Sprintf("\n(result limit of %d reached; refine the pattern to see more)", limit)
			}
			return result, nil
		})
}
