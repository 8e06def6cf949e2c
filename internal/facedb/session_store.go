package facedb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// Session represents one gameplay session.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	DemoMode  bool       `json:"demo_mode"`
}

// BlinkRow is one persisted blink event.
type BlinkRow struct {
	SessionID    string    `json:"session_id"`
	At           time.Time `json:"at"`
	ClosedFrames int       `json:"closed_frames"`
}

// DirectionRow is one persisted direction change.
type DirectionRow struct {
	SessionID           string    `json:"session_id"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	StabilityConfidence float64   `json:"stability_confidence"`
	At                  time.Time `json:"at"`
}

// GazeRow is one persisted gaze trace point.
type GazeRow struct {
	SessionID  string    `json:"session_id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	ScreenX    float64   `json:"screen_x"`
	ScreenY    float64   `json:"screen_y"`
	At         time.Time `json:"at"`
}

// CalibrationRow is one persisted calibration result.
type CalibrationRow struct {
	SessionID     string               `json:"session_id"`
	CalibrationID string               `json:"calibration_id"`
	Transform     face.ScreenTransform `json:"transform"`
	SampleCount   int                  `json:"sample_count"`
	At            time.Time            `json:"at"`
}

// SessionSummary aggregates per-session event counts for the report surface.
type SessionSummary struct {
	SessionID        string `json:"session_id"`
	Blinks           int    `json:"blinks"`
	DirectionChanges int    `json:"direction_changes"`
	GazeSamples      int    `json:"gaze_samples"`
	Calibrations     int    `json:"calibrations"`
}

// CreateSession inserts a new session row.
func (db *DB) CreateSession(id string, startedAt time.Time, demoMode bool) error {
	demoInt := 0
	if demoMode {
		demoInt = 1
	}
	_, err := db.Exec(
		`INSERT INTO sessions (id, started_at, demo_mode) VALUES (?, ?, ?)`,
		id, startedAt.UnixMilli(), demoInt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession marks a session as finished.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		endedAt.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	var startedAt int64
	var endedAt sql.NullInt64
	var demoInt int

	err := db.QueryRow(
		`SELECT id, started_at, ended_at, demo_mode FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &startedAt, &endedAt, &demoInt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.StartedAt = time.UnixMilli(startedAt)
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64)
		s.EndedAt = &t
	}
	s.DemoMode = demoInt != 0
	return &s, nil
}

// RecordBlink persists one blink event.
func (db *DB) RecordBlink(sessionID string, ev face.BlinkEvent) error {
	_, err := db.Exec(
		`INSERT INTO blink_events (session_id, at, closed_frames) VALUES (?, ?, ?)`,
		sessionID, ev.At.UnixMilli(), ev.ClosedFrames,
	)
	if err != nil {
		return fmt.Errorf("failed to record blink: %w", err)
	}
	return nil
}

// RecordDirectionChange persists one direction change event.
func (db *DB) RecordDirectionChange(sessionID string, ev face.DirectionChangedEvent) error {
	_, err := db.Exec(
		`INSERT INTO direction_events (
			session_id, from_direction, to_direction, stability_confidence, at
		) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(ev.From), string(ev.To), ev.StabilityConfidence, ev.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record direction change: %w", err)
	}
	return nil
}

// RecordGaze persists one gaze trace point.
func (db *DB) RecordGaze(sessionID string, ev face.GazeUpdate) error {
	_, err := db.Exec(
		`INSERT INTO gaze_trace (
			session_id, x, y, confidence, screen_x, screen_y, at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, ev.X, ev.Y, ev.Confidence, ev.ScreenX, ev.ScreenY, ev.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record gaze: %w", err)
	}
	return nil
}

// RecordCalibration persists one completed calibration.
func (db *DB) RecordCalibration(sessionID, calibrationID string, transform face.ScreenTransform, sampleCount int, at time.Time) error {
	validInt := 0
	if transform.IsValid {
		validInt = 1
	}
	_, err := db.Exec(
		`INSERT INTO calibrations (
			session_id, calibration_id,
			scale_x, scale_y, offset_x, offset_y,
			gaze_min_x, gaze_max_x, gaze_min_y, gaze_max_y,
			valid, sample_count, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, calibrationID,
		transform.ScaleX, transform.ScaleY, transform.OffsetX, transform.OffsetY,
		transform.GazeMinX, transform.GazeMaxX, transform.GazeMinY, transform.GazeMaxY,
		validInt, sampleCount, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

// RecentBlinks returns the most recent blink events for a session, newest
// first.
func (db *DB) RecentBlinks(sessionID string, limit int) ([]BlinkRow, error) {
	rows, err := db.Query(
		`SELECT session_id, at, closed_frames FROM blink_events
		 WHERE session_id = ? ORDER BY at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query blinks: %w", err)
	}
	defer rows.Close()

	var out []BlinkRow
	for rows.Next() {
		var r BlinkRow
		var at int64
		if err := rows.Scan(&r.SessionID, &at, &r.ClosedFrames); err != nil {
			return nil, fmt.Errorf("failed to scan blink row: %w", err)
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentDirectionChanges returns the most recent direction changes for a
// session, newest first.
func (db *DB) RecentDirectionChanges(sessionID string, limit int) ([]DirectionRow, error) {
	rows, err := db.Query(
		`SELECT session_id, from_direction, to_direction, stability_confidence, at
		 FROM direction_events
		 WHERE session_id = ? ORDER BY at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query direction changes: %w", err)
	}
	defer rows.Close()

	var out []DirectionRow
	for rows.Next() {
		var r DirectionRow
		var at int64
		if err := rows.Scan(&r.SessionID, &r.From, &r.To, &r.StabilityConfidence, &at); err != nil {
			return nil, fmt.Errorf("failed to scan direction row: %w", err)
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GazeTrace returns the gaze trace for a session in chronological order,
// capped at limit points.
func (db *DB) GazeTrace(sessionID string, limit int) ([]GazeRow, error) {
	rows, err := db.Query(
		`SELECT session_id, x, y, confidence, screen_x, screen_y, at
		 FROM gaze_trace
		 WHERE session_id = ? ORDER BY at ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query gaze trace: %w", err)
	}
	defer rows.Close()

	var out []GazeRow
	for rows.Next() {
		var r GazeRow
		var at int64
		if err := rows.Scan(&r.SessionID, &r.X, &r.Y, &r.Confidence, &r.ScreenX, &r.ScreenY, &at); err != nil {
			return nil, fmt.Errorf("failed to scan gaze row: %w", err)
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Calibrations returns all persisted calibrations for a session, newest
// first.
func (db *DB) Calibrations(sessionID string) ([]CalibrationRow, error) {
	rows, err := db.Query(
		`SELECT session_id, calibration_id,
		        scale_x, scale_y, offset_x, offset_y,
		        gaze_min_x, gaze_max_x, gaze_min_y, gaze_max_y,
		        valid, sample_count, at
		 FROM calibrations
		 WHERE session_id = ? ORDER BY at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibrations: %w", err)
	}
	defer rows.Close()

	var out []CalibrationRow
	for rows.Next() {
		var r CalibrationRow
		var validInt int
		var at int64
		if err := rows.Scan(
			&r.SessionID, &r.CalibrationID,
			&r.Transform.ScaleX, &r.Transform.ScaleY, &r.Transform.OffsetX, &r.Transform.OffsetY,
			&r.Transform.GazeMinX, &r.Transform.GazeMaxX, &r.Transform.GazeMinY, &r.Transform.GazeMaxY,
			&validInt, &r.SampleCount, &at,
		); err != nil {
			return nil, fmt.Errorf("failed to scan calibration row: %w", err)
		}
		r.Transform.IsValid = validInt != 0
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary returns per-session event counts.
func (db *DB) Summary(sessionID string) (*SessionSummary, error) {
	s := SessionSummary{SessionID: sessionID}
	err := db.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM blink_events WHERE session_id = ?),
			(SELECT COUNT(*) FROM direction_events WHERE session_id = ?),
			(SELECT COUNT(*) FROM gaze_trace WHERE session_id = ?),
			(SELECT COUNT(*) FROM calibrations WHERE session_id = ?)`,
		sessionID, sessionID, sessionID, sessionID,
	).Scan(&s.Blinks, &s.DirectionChanges, &s.GazeSamples, &s.Calibrations)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session: %w", err)
	}
	return &s, nil
}
