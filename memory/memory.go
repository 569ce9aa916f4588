// Package memory loads persistent agent memory files and splices them into
// the system instructions of a run.
//
// Memory lives in plain markdown files the user edits by hand or lets the
// agent maintain. Two scopes exist: user memory, stored under the home
// directory and applied to every project, and project memory, stored inside
// the project working tree. Project memory is injected after user memory so
// its guidance overrides user guidance on conflict. Within a project the
// .superagent/agent.md file wins over a root-level agent.md; the root file
// is a fallback, never concatenated with it.
package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigDirName is the dot directory that holds agent configuration in
	// both scopes.
	ConfigDirName = ".superagent"

	// FileName is the memory file name in both scopes.
	FileName = "agent.md"

	// DefaultAssistantID separates user-scope memory of different assistants.
	DefaultAssistantID = "superagent"
)

// Scope identifies where a memory file came from.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// Source is a resolved memory file.
type Source struct {
	Scope   Scope
	Path    string
	Content string
}

// Config controls where memory is looked up.
type Config struct {
	// AssistantID namespaces user-scope memory. Defaults to
	// DefaultAssistantID.
	AssistantID string

	// ProjectRoot is the directory searched for project memory. Empty skips
	// the project scope.
	ProjectRoot string

	// UserHome overrides the home directory used for user memory. Empty
	// resolves os.UserHomeDir.
	UserHome string
}

// LoadProject resolves project memory under root. It reads
// <root>/.superagent/agent.md first and falls back to <root>/agent.md. The
// boolean reports whether a non-empty memory file was found; absent files
// are not an error.
func LoadProject(root string) (*Source, bool, error) {
	if root == "" {
		return nil, false, nil
	}

	candidates := []string{
		filepath.Join(root, ConfigDirName, FileName),
		filepath.Join(root, FileName),
	}

	for _, p := range candidates {
		src, ok, err := readSource(ScopeProject, p)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return src, true, nil
		}
	}

	return nil, false, nil
}

// LoadUser resolves user memory at <home>/.superagent/<assistantID>/agent.md.
func LoadUser(home, assistantID string) (*Source, bool, error) {
	if home == "" {
		return nil, false, nil
	}
	if assistantID == "" {
		assistantID = DefaultAssistantID
	}

	return readSource(ScopeUser, filepath.Join(home, ConfigDirName, assistantID, FileName))
}

// Load resolves all memory for cfg, user scope first so project guidance
// overrides it downstream. Missing files are skipped. A scope that fails to
// load does not block the others: Load returns every readable source
// together with the joined errors.
func Load(cfg Config) ([]Source, error) {
	var (
		sources []Source
		errs    []error
	)

	home := cfg.UserHome
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve user home: %w", err))
		} else {
			home = h
		}
	}

	if home != "" {
		src, ok, err := LoadUser(home, cfg.AssistantID)
		switch {
		case err != nil:
			errs = append(errs, err)
		case ok:
			sources = append(sources, *src)
		}
	}

	if src, ok, err := LoadProject(cfg.ProjectRoot); err != nil {
		errs = append(errs, err)
	} else if ok {
		sources = append(sources, *src)
	}

	return sources, errors.Join(errs...)
}

// readSource reads one candidate memory file. Whitespace-only files count as
// absent so that a stub file does not shadow a fallback location.
func readSource(scope Scope, path string) (*Source, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s memory %s: %w", scope, path, err)
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, false, nil
	}

	return &Source{Scope: scope, Path: path, Content: content}, true, nil
}
