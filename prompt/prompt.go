// Package prompt holds the standing instruction texts the agent runs with.
// The instruction lives in an embedded markdown file so prompt edits do not
// touch Go source.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed instruction.md
var defaultInstructionRaw string

// DefaultInstruction is the base system instruction: memory-first protocol,
// todo-driven execution and tone guidance.
var DefaultInstruction = defaultInstructionRaw

// QwenInstruction is the Qwen-tuned variant. Both deployments currently share
// one text; kept as a separate name so they can diverge without call-site
// changes.
var QwenInstruction = DefaultInstruction

// SystemPrompt composes the default instruction with a workspace context
// block for the given working directory.
func SystemPrompt(workingDir string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(DefaultInstruction, "\n"))
	b.WriteString("\n\n# Workspace\n\n")
	fmt.Fprintf(&b, "Working directory: %s\n\n", workingDir)
	b.WriteString("File tools (ls, read_file, write_file, edit_file, glob, grep) resolve relative paths against this directory. ")
	b.WriteString("Shell commands execute with it as their working directory.\n")
	return b.String()
}
