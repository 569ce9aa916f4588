package tool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/internal/util"
)

const (
	// DefaultShellTimeout bounds a single shell command.
	DefaultShellTimeout = 120 * time.Second

	shellOutputLimit = 30000 // characters of combined output kept per command
)

// ShellToolOptions configure the shell tool.
type ShellToolOptions struct {
	// Timeout bounds a single command execution. Defaults to
	// DefaultShellTimeout.
	Timeout time.Duration
}

type shellArgs struct {
	Command string `json:"command" description:"Shell command to execute via sh -c"`
}

// NewShellTool creates the shell tool. Commands run through sh -c in
// workingDir; combined stdout/stderr is returned and a non-zero exit code is
// reported in the result rather than as a tool error.
func NewShellTool(workingDir string, optFns ...func(o *ShellToolOptions)) *FunctionTool {
	opts := ShellToolOptions{
		Timeout: DefaultShellTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct("shell",
		"Execute a shell command in the working directory and return its combined output.",
		shellArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			command := stringArg(args, "command", "")
			if strings.TrimSpace(command) == "" {
				return nil, NewToolError("shell", "command must not be empty", "VALIDATION_ERROR")
			}

			ctx, cancel := context.WithTimeout(toolCtx.Context(), opts.Timeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = workingDir

			out, err := cmd.CombinedOutput()
			output := util.Truncate(strings.TrimRight(string(out), "\n"), shellOutputLimit)

			if ctx.Err() == context.DeadlineExceeded {
				return nil, NewToolError("shell",
					fmt.Sprintf("command timed out after %s", opts.Timeout), "TIMEOUT")
			}

			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				if output == "" {
					return fmt.Sprintf("(no output, exit code %d)", exitErr.ExitCode()), nil
				}
				return fmt.Sprintf("%s\n(exit code %d)", output, exitErr.ExitCode()), nil
			}
			if err != nil {
				return nil, NewToolError("shell", err.Error(), "EXECUTION_ERROR")
			}

			if output == "" {
				return "(no output)", nil
			}
			return output, nil
		})
}
