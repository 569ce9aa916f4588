package backend

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lihan0705/lead-agent/core"
)

// Compile-time interface check.
var _ core.Backend = (*State)(nil)

// State is a trivial in-process core.Backend keeping file contents in a map
// guarded by an RWMutex. Useful for tests, scratch routes and prototypes; it
// does not enforce retention limits or quotas.
type State struct {
	mu    sync.RWMutex
	files map[string]string // virtual path -> content
}

// NewState returns an empty in-memory backend.
func NewState() *State {
	return &State{files: make(map[string]string)}
}

// Ls implements core.Backend. Directories exist implicitly: a path is a
// directory when at least one stored file lives beneath it.
func (s *State) Ls(p string) ([]core.Entry, error) {
	dir, err := normalizePath(p)
	if err != nil {
		return nil, err
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]core.Entry{}
	for vp, content := range s.files {
		if !strings.HasPrefix(vp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(vp, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if name == "" {
			continue
		}
		if nested {
			seen[name] = core.Entry{Name: name, IsDir: true}
			continue
		}
		seen[name] = core.Entry{Name: name, Size: int64(len(content))}
	}

	if len(seen) == 0 && dir != "/" {
		return nil, fmt.Errorf("ls %s: %w", p, ErrNotFound)
	}

	entries := make([]core.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read implements core.Backend.
func (s *State) Read(p string) (string, error) {
	vp, err := normalizePath(p)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[vp]
	if !ok {
		return "", fmt.Errorf("read %s: %w", p, ErrNotFound)
	}
	return content, nil
}

// Write implements core.Backend.
func (s *State) Write(p, content string) error {
	vp, err := normalizePath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[vp] = content
	return nil
}

// Edit implements core.Backend.
func (s *State) Edit(p, oldText, newText string, replaceAll bool) (int, error) {
	vp, err := normalizePath(p)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.files[vp]
	if !ok {
		return 0, fmt.Errorf("edit %s: %w", p, ErrNotFound)
	}
	updated, count, err := editContent(p, content, oldText, newText, replaceAll)
	if err != nil {
		return 0, err
	}
	s.files[vp] = updated
	return count, nil
}

// Glob implements core.Backend.
func (s *State) Glob(pattern string) ([]string, error) {
	vp, err := normalizePath(pattern)
	if err != nil {
		return nil, err
	}
	pat := strings.TrimPrefix(vp, "/")
	if !doublestar.ValidatePattern(pat) {
		return nil, fmt.Errorf("glob %s: invalid pattern", pattern)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var paths []string
	for stored := range s.files {
		if ok, _ := doublestar.Match(pat, strings.TrimPrefix(stored, "/")); ok {
			paths = append(paths, stored)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Grep implements core.Backend.
func (s *State) Grep(pattern, include string, limit int) ([]core.GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("grep: invalid pattern: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for vp := range s.files {
		paths = append(paths, vp)
	}
	sort.Strings(paths)

	var matches []core.GrepMatch
	for _, vp := range paths {
		if include != "" && !matchesInclude(include, vp) {
			continue
		}
		for i, line := range strings.Split(s.files[vp], "\n") {
			if !re.MatchString(line) {
				continue
			}
			matches = append(matches, core.GrepMatch{Path: vp, Line: i + 1, Text: line})
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

// Snapshot returns a copy of all stored files keyed by virtual path.
func (s *State) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make(map[string]string, len(s.files))
	for k, v := range s.files {
		cp[k] = v
	}
	return cp
}
