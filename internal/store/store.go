// Package store persists attendance events and session summaries.
// Backends register themselves at init time, database/sql driver style;
// callers pick one by name through Open.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Event is one persisted attendance detection.
type Event struct {
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Session is the summary row written when a session closes.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Present   int       `json:"present"`
	Absent    int       `json:"absent"`
}

// Stats reports what the backend currently holds.
type Stats struct {
	Sessions int `json:"sessions"`
	Events   int `json:"events"`
}

// Store is the attendance persistence contract every backend satisfies.
type Store interface {
	// AppendEvent records one detection. Appending the same
	// (session, student) pair twice is a no-op, not an error.
	AppendEvent(ctx context.Context, ev Event) error
	// SaveSession upserts the summary row for a closed session.
	SaveSession(ctx context.Context, s Session) error
	// EventsBySession returns a session's events in detection order.
	EventsBySession(ctx context.Context, sessionID string) ([]Event, error)
	// EventsByDate returns all events recorded on the given calendar day.
	EventsByDate(ctx context.Context, day time.Time) ([]Event, error)
	// Sessions returns the most recent session summaries, newest first.
	Sessions(ctx context.Context, limit int) ([]Session, error)
	// Cleanup deletes events and sessions older than retainDays and
	// returns the number of events removed.
	Cleanup(ctx context.Context, retainDays int) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// RosterSyncer is implemented by backends that can hold roster
// encodings for server-side similarity queries.
type RosterSyncer interface {
	// PushEncodings replaces the stored roster encodings.
	PushEncodings(ctx context.Context, encodings map[string][]float32) error
	// SimilarIdentities returns the closest stored identities to the
	// given encoding, nearest first.
	SimilarIdentities(ctx context.Context, encoding []float32, limit int) ([]Neighbor, error)
}

// Neighbor is one result of a similarity query.
type Neighbor struct {
	StudentID string  `json:"student_id"`
	Distance  float64 `json:"distance"`
}

// Config carries everything a backend needs to open.
type Config struct {
	Backend      string
	SQLitePath   string
	PostgresURL  string
	MariaDBURL   string
	MaxOpenConns int
	MaxIdleConns int
}

// Factory opens a backend from its configuration.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Factory)
)

// Register makes a backend available under name. It panics when called
// twice with the same name, which points at a duplicated import.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic("store: Register called twice for backend " + name)
	}
	backends[name] = f
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backendsMu.RLock()
	factory, ok := backends[cfg.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (registered: %v)", cfg.Backend, Backends())
	}
	return factory(ctx, cfg)
}
