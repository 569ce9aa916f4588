package backend

import "fmt"

var (
	// ErrNotFound is returned when the requested path does not exist in the
	// underlying store.
	ErrNotFound = fmt.Errorf("path not found")

	// ErrOutsideRoot is returned for paths that would escape the backend root.
	ErrOutsideRoot = fmt.Errorf("path escapes backend root")
)
