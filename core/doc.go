// Package core provides the foundational domain types, interfaces and
// execution contexts used by the agent runtime. It defines the abstractions
// for:
//
//   - Agents (units of autonomous work driven by a model)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable stores for session state and the file backend tools operate on
//
// The package intentionally keeps implementation concerns (persistence,
// engine orchestration, concrete agents) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
