package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"mindshift/internal/logging"
	"mindshift/internal/session"
)

// SessionRepository persists full session contexts as JSON rows, one per
// session id. It implements session.Repository.
type SessionRepository struct {
	store *LocalStore
}

// Sessions returns the session-context repository.
func (s *LocalStore) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

// Load reads the persisted context for a session. The second return value
// reports whether a row existed.
func (r *SessionRepository) Load(sessionID string) (*session.Context, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var blob string
	err := r.store.db.QueryRow(
		"SELECT context FROM session_contexts WHERE session_id = ?", sessionID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load context: %w", err)
	}

	var ctx session.Context
	if err := json.Unmarshal([]byte(blob), &ctx); err != nil {
		// A corrupted row must not wedge the session forever; treat it as
		// absent so the store creates fresh.
		logging.StoreError("Corrupted context row for %s: %v", sessionID, err)
		return nil, false, nil
	}

	logging.StoreDebug("Loaded context: session=%s step=%s", sessionID, ctx.CurrentStep)
	return &ctx, true, nil
}

// Save upserts the context row.
func (r *SessionRepository) Save(ctx *session.Context) error {
	blob, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err = r.store.db.Exec(`
		INSERT INTO session_contexts (session_id, user_id, context, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			context = excluded.context,
			updated_at = excluded.updated_at`,
		ctx.SessionID, ctx.UserID, string(blob), now())
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}

// Delete removes the context row and the session's transcript.
func (r *SessionRepository) Delete(sessionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.Exec("DELETE FROM session_contexts WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	if _, err := r.store.db.Exec("DELETE FROM interaction_log WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
