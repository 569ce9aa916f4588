package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lihan0705/lead-agent/core"
)

// ErrNotFound is returned when a session id has no stored session.
var ErrNotFound = errors.New("session not found")

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or single-process interactive runs. Each returned session
// is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create stores a new empty session with the given id. Creating an id that
// already exists is an error; callers that want get-or-create semantics
// should Get first.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return nil, fmt.Errorf("session %s already exists", sessionID)
	}

	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess

	return sess.Clone(), nil
}

// Get returns a clone of the stored session or ErrNotFound.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session's history.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.ApplyStateDelta(delta)

	return nil
}
