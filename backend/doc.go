// Package backend provides the file storage implementations behind the
// agent's file tools: a root-scoped local filesystem, an in-memory store, an
// S3 object store and a composite that routes path prefixes to different
// backends (e.g. /memories/ to a persistent store while everything else hits
// the working directory).
//
// All implementations speak the core.Backend interface and use a shared
// virtual path convention: forward slashes, rooted at "/", where "/" is the
// backend root. Relative paths are interpreted against that root; paths that
// would climb above it are rejected.
package backend
