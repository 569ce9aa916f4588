// Package logging provides a minimal logging interface and adapters for the
// agent runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine, flows and tools use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - NewFileConsoleLogger fanning records out to stderr and a log file
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
