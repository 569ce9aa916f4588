package core

// Entry describes a single directory listing result.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// GrepMatch is a single line-level match produced by Backend.Grep.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Backend abstracts the file surface the built-in filesystem tools operate
// on. Implementations must be safe for concurrent use and scope all paths
// beneath their configured root. Paths are forward-slash separated and may
// be absolute (interpreted against the root) or relative.
type Backend interface {
	// Ls lists the entries of a directory.
	Ls(path string) ([]Entry, error)

	// Read returns the full contents of a file.
	Read(path string) (string, error)

	// Write creates or overwrites a file with the given contents.
	Write(path string, content string) error

	// Edit replaces occurrences of oldText with newText in a file and
	// returns the number of replacements made. When replaceAll is false the
	// match must be unique; zero matches is always an error.
	Edit(path, oldText, newText string, replaceAll bool) (int, error)

	// Glob returns paths matching a doublestar pattern, sorted.
	Glob(pattern string) ([]string, error)

	// Grep searches file contents for a regular expression. The include
	// glob (optional) restricts which files are searched; limit caps the
	// number of matches returned (0 means implementation default).
	Grep(pattern, include string, limit int) ([]GrepMatch, error)
}
