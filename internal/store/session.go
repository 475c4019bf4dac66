package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SessionStatus is the lifecycle state of a transcription session.
type SessionStatus string

const (
	SessionRunning  SessionStatus = "running"
	SessionFinished SessionStatus = "finished"
	SessionFailed   SessionStatus = "failed"
)

// Session is one transcription run over a video or camera.
type Session struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Status      SessionStatus `json:"status"`
	SampleEvery int           `json:"sample_every"`
	Frames      int           `json:"frames"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// SessionRepository provides operations on sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a running session, assigning an ID when it has none.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.SampleEvery <= 0 {
		sess.SampleEvery = 1
	}
	sess.Status = SessionRunning
	sess.StartedAt = time.Now()
	sess.FinishedAt = nil

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, status, sample_every, frames, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Source, string(sess.Status), sess.SampleEvery, sess.Frames, sess.StartedAt,
	)
	return err
}

// Finish marks a session finished or failed after frames were read.
func (r *SessionRepository) Finish(id string, status SessionStatus, frames int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, frames = ?, finished_at = ? WHERE id = ?`,
		string(status), frames, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT id, source, status, sample_every, frames, started_at, finished_at
		 FROM sessions WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, source, status, sample_every, frames, started_at, finished_at
		 FROM sessions ORDER BY started_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes a session together with its calibrations and transcript.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var status string
	var finished sql.NullTime

	if err := row.Scan(&sess.ID, &sess.Source, &status, &sess.SampleEvery, &sess.Frames, &sess.StartedAt, &finished); err != nil {
		return nil, err
	}

	sess.Status = SessionStatus(status)
	if finished.Valid {
		t := finished.Time
		sess.FinishedAt = &t
	}
	return sess, nil
}
