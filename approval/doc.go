// Package approval implements human-in-the-loop review of destructive tool
// calls. Tools are gated by name through InterruptConfig entries; before the
// flow executes a gated call it asks a Prompter for a Decision, and rejected
// calls are answered with a rejection function response instead of running.
//
// Configs returns the default gate set (shell, write_file, edit_file, task)
// with human-readable call descriptions. ConsolePrompter asks on a terminal,
// AutoApprove waves everything through for non-interactive runs.
package approval
