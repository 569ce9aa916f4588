package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}
func (l testLogger) Fatal(string, ...interface{}) {}

type mockSessionStore struct {
	sessions map[string]*Session
	applied  map[string]map[string]interface{}
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}}
}

func (s *mockSessionStore) Get(id string) (*Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return s.Create(id)
}

func (s *mockSessionStore) Create(id string) (*Session, error) {
	sess := NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *mockSessionStore) AppendEvent(id string, ev Event) error {
	if sess, ok := s.sessions[id]; ok {
		sess.AddEvent(ev)
	}
	return nil
}

func (s *mockSessionStore) ApplyDelta(id string, delta map[string]interface{}) error {
	if s.applied == nil {
		s.applied = map[string]map[string]interface{}{}
	}
	cp := map[string]interface{}{}
	for k, v := range delta {
		cp[k] = v
	}
	s.applied[id] = cp
	if sess, ok := s.sessions[id]; ok {
		sess.ApplyStateDelta(delta)
	}
	return nil
}

// mockBackend is a minimal in-memory Backend used by context tests.
type mockBackend struct{ files map[string]string }

func newMockBackend() *mockBackend { return &mockBackend{files: map[string]string{}} }

func (b *mockBackend) Ls(path string) ([]Entry, error) {
	var entries []Entry
	for name := range b.files {
		entries = append(entries, Entry{Name: name, Size: int64(len(b.files[name]))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (b *mockBackend) Read(path string) (string, error) {
	content, ok := b.files[path]
	if !ok {
		return "", fmt.Errorf("file not found: %s", path)
	}
	return content, nil
}

func (b *mockBackend) Write(path, content string) error {
	b.files[path] = content
	return nil
}

func (b *mockBackend) Edit(path, oldText, newText string, replaceAll bool) (int, error) {
	content, ok := b.files[path]
	if !ok {
		return 0, fmt.Errorf("file not found: %s", path)
	}
	n := strings.Count(content, oldText)
	if n == 0 {
		return 0, fmt.Errorf("text not found in %s", path)
	}
	if n > 1 && !replaceAll {
		return 0, fmt.Errorf("text occurs %d times in %s", n, path)
	}
	b.files[path] = strings.ReplaceAll(content, oldText, newText)
	return n, nil
}

func (b *mockBackend) Glob(pattern string) ([]string, error) {
	var out []string
	for name := range b.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (b *mockBackend) Grep(pattern, include string, limit int) ([]GrepMatch, error) {
	return nil, nil
}

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	store := newMockSessionStore()
	sess, _ := store.Create("sess-x")
	rc := NewRunContext(
		context.Background(), "sess-x", "run-x",
		AgentInfo{Name: "Agent1", Type: "test"},
		Content{Role: "user", Parts: []Part{TextPart{Text: "Test input"}}},
		0, emit, resume, sess, store, newMockBackend(), testLogger{},
	)
	return rc, emit
}
