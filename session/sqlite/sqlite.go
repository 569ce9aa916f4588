// Package sqlite provides a SessionStore backed by a local SQLite database,
// giving conversations durability across process restarts. Session state and
// events are stored as JSON, so state values must be JSON-serializable.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL DEFAULT '{}',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	payload    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
`

// Store is a durable SessionStore persisting sessions and their event
// history in a single SQLite file. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at path and prepares
// the schema. The returned store must be closed with Close when done.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	// SQLite allows a single writer; funneling all statements through one
	// connection avoids SQLITE_BUSY under concurrent invocations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new empty session with the given id. Creating an id that
// already exists is an error; callers that want get-or-create semantics
// should Get first.
func (s *Store) Create(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)

	state, err := json.Marshal(sess.State)
	if err != nil {
		return nil, fmt.Errorf("encode session %s state: %w", sessionID, err)
	}
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode session %s metadata: %w", sessionID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, state, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(state), string(meta), sess.Created, sess.Updated,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("session %s already exists", sessionID)
		}
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	return sess, nil
}

// Get loads the session with its full event history, or ErrNotFound.
func (s *Store) Get(sessionID string) (*core.Session, error) {
	var (
		stateJSON string
		metaJSON  string
		created   time.Time
		updated   time.Time
	)
	err := s.db.QueryRow(
		`SELECT state, metadata, created_at, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&stateJSON, &metaJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	sess.Created = created
	sess.Updated = updated
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("decode session %s state: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode session %s metadata: %w", sessionID, err)
	}

	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s events: %w", sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event for session %s: %w", sessionID, err)
		}
		var ev core.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event for session %s: %w", sessionID, err)
		}
		sess.Events = append(sess.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session %s events: %w", sessionID, err)
	}

	return sess, nil
}

// AppendEvent adds an event to an existing session's history.
func (s *Store) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event for session %s: %w", sessionID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append event for session %s: %w", sessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("append event for session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("append event for session %s: %w", sessionID, err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
	}

	if _, err := tx.Exec(`INSERT INTO events (session_id, payload) VALUES (?, ?)`, sessionID, string(payload)); err != nil {
		return fmt.Errorf("append event for session %s: %w", sessionID, err)
	}

	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the session state.
func (s *Store) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("apply delta for session %s: %w", sessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var stateJSON string
	err = tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("load session %s state: %w", sessionID, err)
	}

	state := map[string]interface{}{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("decode session %s state: %w", sessionID, err)
	}
	for k, v := range delta {
		state[k] = v
	}

	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s state: %w", sessionID, err)
	}
	if _, err := tx.Exec(`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`, string(merged), time.Now(), sessionID); err != nil {
		return fmt.Errorf("store session %s state: %w", sessionID, err)
	}

	return tx.Commit()
}
