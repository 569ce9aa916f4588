package backend

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lihan0705/lead-agent/core"
)

// Compile-time interface check.
var _ core.Backend = (*Filesystem)(nil)

// Filesystem is a core.Backend over a local directory. Every path is resolved
// inside the root; the tools can therefore hand model-provided paths straight
// to the backend without their own escape checks.
type Filesystem struct {
	root string
}

// NewFilesystem creates a filesystem backend rooted at root. The directory
// must exist.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve backend root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("backend root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backend root %q: not a directory", root)
	}
	return &Filesystem{root: abs}, nil
}

// Root returns the absolute directory this backend operates in.
func (f *Filesystem) Root() string { return f.root }

// resolve maps a virtual path onto the local filesystem.
func (f *Filesystem) resolve(p string) (string, error) {
	vp, err := normalizePath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(vp, "/"))), nil
}

// Ls implements core.Backend.
func (f *Filesystem) Ls(p string) ([]core.Entry, error) {
	dir, err := f.resolve(p)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ls %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("ls %s: %w", p, err)
	}

	entries := make([]core.Entry, 0, len(dirents))
	for _, de := range dirents {
		entry := core.Entry{Name: de.Name(), IsDir: de.IsDir()}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Read implements core.Backend.
func (f *Filesystem) Read(p string) (string, error) {
	file, err := f.resolve(p)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("read %s: %w", p, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}

// Write implements core.Backend. Parent directories are created as needed.
func (f *Filesystem) Write(p, content string) error {
	file, err := f.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Edit implements core.Backend.
func (f *Filesystem) Edit(p, oldText, newText string, replaceAll bool) (int, error) {
	content, err := f.Read(p)
	if err != nil {
		return 0, err
	}
	updated, count, err := editContent(p, content, oldText, newText, replaceAll)
	if err != nil {
		return 0, err
	}
	if err := f.Write(p, updated); err != nil {
		return 0, err
	}
	return count, nil
}

// Glob implements core.Backend. Patterns support doublestar (**) matching;
// only files are returned, as virtual-absolute paths in sorted order.
func (f *Filesystem) Glob(pattern string) ([]string, error) {
	vp, err := normalizePath(pattern)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(f.root), strings.TrimPrefix(vp, "/"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = "/" + m
	}
	sort.Strings(paths)
	return paths, nil
}

// Grep implements core.Backend. The include glob filters candidate files by
// virtual path (or base name); limit caps the number of returned matches,
// with zero or less meaning no cap. Files containing NUL bytes are skipped.
func (f *Filesystem) Grep(pattern, include string, limit int) ([]core.GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("grep: invalid pattern: %w", err)
	}

	var matches []core.GrepMatch
	fsys := os.DirFS(f.root)

	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		vp := "/" + p
		if include != "" && !matchesInclude(include, vp) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil || bytes.IndexByte(data, 0) >= 0 {
			return nil
		}

		for i, line := range strings.Split(string(data), "\n") {
			if !re.MatchString(line) {
				continue
			}
			matches = append(matches, core.GrepMatch{Path: vp, Line: i + 1, Text: line})
			if limit > 0 && len(matches) >= limit {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grep: %w", err)
	}
	return matches, nil
}

// matchesInclude tests an include glob against the virtual path and, as a
// convenience, the base name (so "*.go" filters by extension anywhere).
func matchesInclude(include, vp string) bool {
	if ok, err := doublestar.Match(strings.TrimPrefix(include, "/"), strings.TrimPrefix(vp, "/")); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(include, filepath.Base(vp))
	return err == nil && ok
}
