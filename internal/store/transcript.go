package store

import (
	"database/sql"
	"encoding/json"
)

// TranscriptLine is the set of pressed keys at one sampled frame.
type TranscriptLine struct {
	Frame int      `json:"frame"`
	Keys  []string `json:"keys"`
}

// TranscriptRepository provides operations on transcript lines.
type TranscriptRepository struct {
	db *sql.DB
}

// Transcripts returns the transcript repository for this store.
func (s *Store) Transcripts() *TranscriptRepository {
	return &TranscriptRepository{db: s.db}
}

// Append stores the pressed keys for one frame of a session. Appending the
// same frame twice replaces the earlier line.
func (r *TranscriptRepository) Append(sessionID string, frame int, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO transcript_lines (session_id, frame_index, keys) VALUES (?, ?, ?)`,
		sessionID, frame, string(data),
	)
	return err
}

// List retrieves a session's transcript in frame order.
func (r *TranscriptRepository) List(sessionID string) ([]TranscriptLine, error) {
	rows, err := r.db.Query(
		`SELECT frame_index, keys FROM transcript_lines WHERE session_id = ? ORDER BY frame_index`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []TranscriptLine{}
	for rows.Next() {
		var line TranscriptLine
		var data string
		if err := rows.Scan(&line.Frame, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &line.Keys); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Count returns the number of lines stored for a session.
func (r *TranscriptRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transcript_lines WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
