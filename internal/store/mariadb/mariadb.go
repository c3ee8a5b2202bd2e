// Package mariadb backs the attendance store with MariaDB/MySQL, for
// schools that already run one.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/classmark/classmark/internal/store"
)

func init() {
	store.Register("mariadb", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg)
	})
}

// DB is the MariaDB-backed attendance store.
type DB struct {
	db *sql.DB
}

// Open connects to MariaDB using a go-sql-driver DSN and applies the
// schema. The DSN must carry parseTime=true so TIMESTAMP columns scan
// into time.Time.
func Open(ctx context.Context, cfg store.Config) (*DB, error) {
	if cfg.MariaDBURL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", cfg.MariaDBURL)
	if err != nil {
		return nil, fmt.Errorf("open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping MariaDB: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id  VARCHAR(64) NOT NULL,
			student_id  VARCHAR(255) NOT NULL,
			taken_at    TIMESTAMP(6) NOT NULL,
			confidence  DOUBLE NOT NULL,
			UNIQUE KEY attendance_session_student (session_id, student_id),
			KEY attendance_taken_at (taken_at)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id          VARCHAR(64) PRIMARY KEY,
			started_at  TIMESTAMP(6) NOT NULL,
			ended_at    TIMESTAMP(6) NOT NULL,
			present     INT NOT NULL,
			absent      INT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply MariaDB schema: %w", err)
		}
	}
	return nil
}

func (d *DB) AppendEvent(ctx context.Context, ev store.Event) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT IGNORE INTO attendance_events (session_id, student_id, taken_at, confidence)
		VALUES (?, ?, ?, ?)
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
		ON DUPLICATE KEY UPDATE
			started_at = VALUES(started_at),
			ended_at   = VALUES(ended_at),
			present    = VALUES(present),
			absent     = VALUES(absent)
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
		WHERE DATE(taken_at) = DATE(?)
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
		return fmt.Errorf("closing MariaDB connection: %w", err)
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
