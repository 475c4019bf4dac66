package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alextompkins/piano-vision/internal/keyboard"
)

// Calibration records the keyboard geometry found at a (re)calibration.
type Calibration struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Frame     int             `json:"frame"`
	Angle     float64         `json:"angle"`
	Bounds    keyboard.Bounds `json:"bounds"`
	WhiteKeys int             `json:"white_keys"`
	BlackKeys int             `json:"black_keys"`
	Labeled   int             `json:"labeled"`
	CreatedAt time.Time       `json:"created_at"`
}

// CalibrationRepository provides operations on calibrations.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Record inserts c and sets its ID.
func (r *CalibrationRepository) Record(c *Calibration) error {
	bounds, err := json.Marshal(c.Bounds)
	if err != nil {
		return err
	}
	c.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO calibrations (session_id, frame_index, angle, bounds, white_keys, black_keys, labeled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.Frame, c.Angle, string(bounds), c.WhiteKeys, c.BlackKeys, c.Labeled, c.CreatedAt,
	)
	if err != nil {
		return err
	}

	c.ID, err = result.LastInsertId()
	return err
}

// ListBySession retrieves a session's calibrations in the order recorded.
func (r *CalibrationRepository) ListBySession(sessionID string) ([]*Calibration, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, frame_index, angle, bounds, white_keys, black_keys, labeled, created_at
		 FROM calibrations WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calibrations []*Calibration
	for rows.Next() {
		c := &Calibration{}
		var bounds string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Frame, &c.Angle, &bounds, &c.WhiteKeys, &c.BlackKeys, &c.Labeled, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(bounds), &c.Bounds); err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return calibrations, nil
}
