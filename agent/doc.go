// Package agent contains the model-backed agent implementation and its
// supporting pieces: instruction resolution, the tool registry and the
// subagent registry behind the task tool.
//
// ModelAgent integrates the model, tool and flow packages to stream events
// through a core.RunContext; BaseAgent supplies the shared Start/Stop
// lifecycle. Delegation runs through the task tool: a subagent executes in
// an isolated child context with a private session and reports a single
// result back to its caller, sharing only the file backend and the
// model-call budget with the parent run.
//
// Persistence, model specifics and tool implementations live in their own
// packages to avoid cyclic dependencies.
package agent
