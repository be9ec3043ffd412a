// Package store implements the SQLite persistence layer: session contexts
// as JSON rows and the append-only interaction log used to rebuild
// transcripts on resume.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mindshift/internal/logging"
	"mindshift/internal/protocol"
)

// LocalStore owns the SQLite database and exposes the two repositories the
// engine needs. Safe for concurrent use; writes are serialized.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_contexts (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		context TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS interaction_log (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		step TEXT NOT NULL,
		user_input TEXT NOT NULL,
		response TEXT NOT NULL,
		used_ai INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_interaction_session ON interaction_log(session_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// WAL keeps a reading resume from blocking the async context writes.
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		logging.StoreDebug("Could not set pragmas: %v", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LocalStore) Path() string { return s.dbPath }

// Timestamps are stored explicitly rather than via the column default so
// values survive SQLite's UTC/localtime ambiguity round trips.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func stepID(s string) protocol.StepID { return protocol.StepID(s) }
