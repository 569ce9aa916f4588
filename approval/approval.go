package approval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/internal/util"
)

// Decision is the outcome of a human review of a gated tool call.
type Decision string

const (
	// DecisionApprove lets the tool call execute.
	DecisionApprove Decision = "approve"

	// DecisionReject blocks the tool call; the flow emits a rejection
	// function response and the run continues.
	DecisionReject Decision = "reject"
)

// DescribeFunc renders a human-readable summary of a pending tool call for
// the approval prompt. args holds the decoded call arguments; workingDir is
// the directory file paths are resolved against.
type DescribeFunc func(fc core.FunctionCall, args map[string]any, workingDir string) string

// InterruptConfig gates a single tool name.
type InterruptConfig struct {
	// AllowedDecisions lists the decisions a prompter may return for this
	// tool.
	AllowedDecisions []Decision

	// Describe renders the approval prompt body for a pending call.
	Describe DescribeFunc
}

// Configs returns the default interrupt set: shell commands, file writes,
// file edits and subagent launches all require review.
func Configs(workingDir string) map[string]InterruptConfig {
	approveReject := []Decision{DecisionApprove, DecisionReject}

	return map[string]InterruptConfig{
		"shell": {
			AllowedDecisions: approveReject,
			Describe:         describeShell,
		},
		"write_file": {
			AllowedDecisions: approveReject,
			Describe:         describeWriteFile,
		},
		"edit_file": {
			AllowedDecisions: approveReject,
			Describe:         describeEditFile,
		},
		"task": {
			AllowedDecisions: approveReject,
			Describe:         describeTask,
		},
	}
}

func describeWriteFile(_ core.FunctionCall, args map[string]any, workingDir string) string {
	filePath := stringArg(args, "file_path", "unknown")
	content := stringArg(args, "content", "")

	action := "Create"
	if fileExists(workingDir, filePath) {
		action = "Overwrite"
	}

	return fmt.Sprintf("File: %s\nAction: %s file\nLines: %d", filePath, action, countLines(content))
}

func describeEditFile(_ core.FunctionCall, args map[string]any, _ string) string {
	filePath := stringArg(args, "file_path", "unknown")

	mode := "single occurrence"
	if boolArg(args, "replace_all") {
		mode = "all occurrences"
	}

	return fmt.Sprintf("File: %s\nAction: Replace text (%s)", filePath, mode)
}

func describeTask(_ core.FunctionCall, args map[string]any, _ string) string {
	description := stringArg(args, "description", "unknown")
	subagentType := stringArg(args, "subagent_type", "unknown")

	rule := strings.Repeat("─", 40)

	return fmt.Sprintf("Subagent Type: %s\n\nTask Instructions:\n%s\n%s\n%s\n\n⚠️  Subagent will have access to file operations and shell commands",
		subagentType, rule, util.Truncate(description, 500), rule)
}

func describeShell(_ core.FunctionCall, args map[string]any, workingDir string) string {
	command := stringArg(args, "command", "N/A")
	return fmt.Sprintf("Shell Command: %s\nWorking Directory: %s", command, workingDir)
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// fileExists resolves p the way the file tools do: virtual-absolute and
// relative paths both land under workingDir.
func fileExists(workingDir, p string) bool {
	full := filepath.Join(workingDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// countLines counts lines the way a text editor would: a trailing newline
// does not start a new line, and empty content has zero lines.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
