// Package postgres is the shared-deployment attendance store. Besides
// the event and session tables it keeps a copy of the roster encodings
// in a pgvector column, so an operator can run similarity queries
// against the database directly.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/classmark/classmark/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg)
	})
}

// encodingDim is the face encoding width produced by the embedding
// service. The vector column is sized to match.
const encodingDim = 512

// DB is the PostgreSQL-backed attendance store.
type DB struct {
	db *sql.DB
}

// Open connects, configures the pool and applies the schema.
func Open(ctx context.Context, cfg store.Config) (*DB, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("postgres URL is required")
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id          BIGSERIAL PRIMARY KEY,
			session_id  VARCHAR(64) NOT NULL,
			student_id  VARCHAR(255) NOT NULL,
			taken_at    TIMESTAMP WITH TIME ZONE NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL,
			UNIQUE(session_id, student_id)
		)`,
		"CREATE INDEX IF NOT EXISTS attendance_events_taken_at_idx ON attendance_events(taken_at)",
		"CREATE INDEX IF NOT EXISTS attendance_events_session_idx ON attendance_events(session_id)",
		`CREATE TABLE IF NOT EXISTS sessions (
			id          VARCHAR(64) PRIMARY KEY,
			started_at  TIMESTAMP WITH TIME ZONE NOT NULL,
			ended_at    TIMESTAMP WITH TIME ZONE NOT NULL,
			present     INTEGER NOT NULL,
			absent      INTEGER NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS roster_encodings (
			student_id  VARCHAR(255) PRIMARY KEY,
			encoding    vector(%d) NOT NULL,
			updated_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, encodingDim),
	}
	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return nil
}

func (d *DB) AppendEvent(ctx context.Context, ev store.Event) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO attendance_events (session_id, student_id, taken_at, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, ev.SessionID, ev.StudentID, ev.Timestamp.UTC(), ev.Confidence)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

func (d *DB) SaveSession(ctx context.Context, s store.Session) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, present, absent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			ended_at   = EXCLUDED.ended_at,
			present    = EXCLUDED.present,
			absent     = EXCLUDED.absent
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
		WHERE session_id = $1
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
		WHERE taken_at::date = $1::date
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
		LIMIT $1
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
		"DELETE FROM attendance_events WHERE taken_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}

	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE ended_at < $1", cutoff); err != nil {
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

// PushEncodings replaces the stored roster encodings inside one
// transaction, so similarity queries never see a half-pushed roster.
func (d *DB) PushEncodings(ctx context.Context, encodings map[string][]float32) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster push: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM roster_encodings"); err != nil {
		return fmt.Errorf("clear roster encodings: %w", err)
	}

	for id, enc := range encodings {
		if len(enc) != encodingDim {
			return fmt.Errorf("encoding for %s has dim %d, expected %d", id, len(enc), encodingDim)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO roster_encodings (student_id, encoding, updated_at)
			VALUES ($1, $2, NOW())
		`, id, pgvector.NewVector(enc))
		if err != nil {
			return fmt.Errorf("push encoding for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster push: %w", err)
	}
	return nil
}

// SimilarIdentities returns the stored identities closest to the given
// encoding by Euclidean distance, nearest first.
func (d *DB) SimilarIdentities(ctx context.Context, encoding []float32, limit int) ([]store.Neighbor, error) {
	if len(encoding) != encodingDim {
		return nil, fmt.Errorf("encoding has dim %d, expected %d", len(encoding), encodingDim)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT student_id, encoding <-> $1 AS distance
		FROM roster_encodings
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(encoding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar identities: %w", err)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.StudentID, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return neighbors, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing postgres database: %w", err)
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
