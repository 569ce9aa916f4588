// Package runner wraps a single root agent and an engine behind a minimal
// run interface.
//
// Most programs have exactly one root agent; the Runner removes the agent
// registry and name plumbing from that common case. Run starts a streaming
// invocation, RunSync collects it, and Cancel stops one by id. The CLI and
// the evaluation harness are the primary consumers.
package runner
