package store

import (
	"fmt"
	"time"

	"mindshift/internal/engine"
	"mindshift/internal/logging"
)

// TranscriptRepository is the append-only interaction log. It implements
// engine.InteractionLog.
type TranscriptRepository struct {
	store *LocalStore
}

// Transcripts returns the interaction-log repository.
func (s *LocalStore) Transcripts() *TranscriptRepository {
	return &TranscriptRepository{store: s}
}

// Append records one turn. Duplicate turn ids are ignored so a retried
// append cannot double a transcript entry.
func (r *TranscriptRepository) Append(sessionID string, turn engine.Turn) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.Exec(`
		INSERT OR IGNORE INTO interaction_log
			(id, session_id, step, user_input, response, used_ai, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, sessionID, string(turn.Step), turn.UserInput, turn.Response,
		boolToInt(turn.UsedAI), turn.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// List returns a session's transcript in recording order.
func (r *TranscriptRepository) List(sessionID string) ([]engine.Turn, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.Query(`
		SELECT id, step, user_input, response, used_ai, created_at
		FROM interaction_log
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []engine.Turn
	for rows.Next() {
		var t engine.Turn
		var step, created string
		var usedAI int
		if err := rows.Scan(&t.ID, &step, &t.UserInput, &t.Response, &usedAI, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Step = stepID(step)
		t.UsedAI = usedAI != 0
		t.Timestamp = parseTime(created)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.StoreDebug("Listed %d turns for session %s", len(turns), sessionID)
	return turns, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
