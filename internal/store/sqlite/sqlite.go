// Package sqlite is the default attendance store. A single file on
// disk, no server, good enough for one camera per classroom.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/classmark/classmark/internal/store"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg.SQLitePath)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS attendance_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	student_id  TEXT NOT NULL,
	taken_at    TIMESTAMP NOT NULL,
	confidence  REAL NOT NULL,
	UNIQUE(session_id, student_id)
);

CREATE INDEX IF NOT EXISTS attendance_events_taken_at_idx ON attendance_events(taken_at);
CREATE INDEX IF NOT EXISTS attendance_events_session_idx ON attendance_events(session_id);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL,
	present     INTEGER NOT NULL,
	absent      INTEGER NOT NULL
);
`

// DB is the SQLite-backed attendance store.
type DB struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the attendance database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; extra connections only add lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) AppendEvent(ctx context.Context, ev store.Event) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO attendance_events (session_id, student_id, taken_at, confidence)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, student_id) DO NOTHING
	`, ev.SessionID, ev.StudentID, ev.Timestamp.UTC(), ev.Confidence)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

func (d *DB) SaveSession(ctx context.Context, s store.Session) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, present, absent)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at   = excluded.ended_at,
			present    = excluded.present,
			absent     = excluded.absent
	`, s.ID, s.StartedAt.UTC(), s.EndedAt.UTC(), s.Present, s.Absent)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (d *DB) EventsBySession(ctx context.Context, sessionID string) ([]store.Event, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id, student_id, taken_at, confidence
		FROM attendance_events
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (d *DB) EventsByDate(ctx context.Context, day time.Time) ([]store.Event, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id, student_id, taken_at, confidence
		FROM attendance_events
		WHERE date(taken_at) = date(?)
		ORDER BY id
	`, day.UTC())
	if err != nil {
		return nil, fmt.Errorf("query events by date: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (d *DB) Sessions(ctx context.Context, limit int) ([]store.Session, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, present, absent
		FROM sessions
		ORDER BY ended_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []store.Session
	for rows.Next() {
		var s store.Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &s.Present, &s.Absent); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (d *DB) Cleanup(ctx context.Context, retainDays int) (int64, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retainDays)

	res, err := d.db.ExecContext(ctx,
		"DELETE FROM attendance_events WHERE taken_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}

	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE ended_at < ?", cutoff); err != nil {
		return deleted, fmt.Errorf("cleanup sessions: %w", err)
	}
	return deleted, nil
}

func (d *DB) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions").Scan(&st.Sessions); err != nil {
		return st, fmt.Errorf("count sessions: %w", err)
	}
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_events").Scan(&st.Events); err != nil {
		return st, fmt.Errorf("count events: %w", err)
	}
	return st, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite database: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]store.Event, error) {
	var events []store.Event
	for rows.Next() {
		var ev store.Event
		if err := rows.Scan(&ev.SessionID, &ev.StudentID, &ev.Timestamp, &ev.Confidence); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance events: %w", err)
	}
	return events, nil
}
