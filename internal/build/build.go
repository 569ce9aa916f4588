// Package build holds the binary identity stamped at link time.
package build

// Slug names the binary, the config and data directories and the
// environment variable prefix.
const Slug = "superagent"

// Version and Commit are injected via
// -ldflags "-X github.com/lihan0705/lead-agent/internal/build.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)
