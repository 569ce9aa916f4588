// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, engine) from depending on concrete storage.
//
// The in-memory store covers tests and throwaway runs; the sqlite sub-package
// persists conversations across process restarts. Additional backends go in
// further sub‑packages without changing any calling code – only the wiring
// layer decides which implementation to instantiate.
package session
