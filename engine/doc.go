// Package engine implements the orchestration layer between callers and
// agents.
//
// An Engine owns the agent registry and the per-invocation pipeline: it
// resolves (or creates) the session, persists the user's input, runs the
// agent, applies state deltas, appends non-partial events to history, and
// streams events to the caller. Producers are resumed only after their
// event is durable, which keeps approval interrupts and subagent reports
// consistent with stored history.
//
// Invocations run concurrently up to a configurable limit, each with its
// own cancellable context; StopInvocation cancels one by id. Invoke streams
// events, InvokeSync collects them.
package engine
