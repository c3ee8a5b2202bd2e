// Package mock provides an in-memory store implementation for tests.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/classmark/classmark/internal/store"
)

// Store is an in-memory implementation of store.Store with error
// injection hooks for failure-path tests.
type Store struct {
	mu       sync.RWMutex
	events   []store.Event
	seen     map[[2]string]bool
	sessions map[string]store.Session

	// Error injection
	AppendError  error
	SaveError    error
	QueryError   error
	CleanupError error
}

// New creates an empty mock store.
func New() *Store {
	return &Store{
		seen:     make(map[[2]string]bool),
		sessions: make(map[string]store.Session),
	}
}

func (m *Store) AppendEvent(_ context.Context, ev store.Event) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{ev.SessionID, ev.StudentID}
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	m.events = append(m.events, ev)
	return nil
}

func (m *Store) SaveSession(_ context.Context, s store.Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Store) EventsBySession(_ context.Context, sessionID string) ([]store.Event, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.Event
	for _, ev := range m.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Store) EventsByDate(_ context.Context, day time.Time) ([]store.Event, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	y, mo, d := day.UTC().Date()
	var out []store.Event
	for _, ev := range m.events {
		ey, emo, ed := ev.Timestamp.UTC().Date()
		if ey == y && emo == mo && ed == d {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Store) Sessions(_ context.Context, limit int) ([]store.Session, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) Cleanup(_ context.Context, retainDays int) (int64, error) {
	if m.CleanupError != nil {
		return 0, m.CleanupError
	}
	if retainDays <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -retainDays)

	var kept []store.Event
	var deleted int64
	for _, ev := range m.events {
		if ev.Timestamp.Before(cutoff) {
			deleted++
			delete(m.seen, [2]string{ev.SessionID, ev.StudentID})
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept

	for id, s := range m.sessions {
		if s.EndedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
	return deleted, nil
}

func (m *Store) Stats(_ context.Context) (store.Stats, error) {
	if m.QueryError != nil {
		return store.Stats{}, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return store.Stats{Sessions: len(m.sessions), Events: len(m.events)}, nil
}

func (m *Store) Close() error { return nil }

// Events returns a copy of everything appended, in order.
func (m *Store) Events() []store.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Session returns the saved summary for id, if any.
func (m *Store) Session(id string) (store.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// RosterSync is a mock store that also records pushed encodings and
// answers similarity queries with exact linear scans.
type RosterSync struct {
	Store

	encMu     sync.RWMutex
	encodings map[string][]float32

	PushError error
}

// NewRosterSync creates an empty roster-syncing mock store.
func NewRosterSync() *RosterSync {
	rs := &RosterSync{encodings: make(map[string][]float32)}
	rs.seen = make(map[[2]string]bool)
	rs.sessions = make(map[string]store.Session)
	return rs
}

func (m *RosterSync) PushEncodings(_ context.Context, encodings map[string][]float32) error {
	if m.PushError != nil {
		return m.PushError
	}
	m.encMu.Lock()
	defer m.encMu.Unlock()
	m.encodings = make(map[string][]float32, len(encodings))
	for id, enc := range encodings {
		cp := make([]float32, len(enc))
		copy(cp, enc)
		m.encodings[id] = cp
	}
	return nil
}

func (m *RosterSync) SimilarIdentities(_ context.Context, encoding []float32, limit int) ([]store.Neighbor, error) {
	m.encMu.RLock()
	defer m.encMu.RUnlock()

	var neighbors []store.Neighbor
	for id, enc := range m.encodings {
		if len(enc) != len(encoding) {
			continue
		}
		var sum float64
		for i := range enc {
			d := float64(enc[i]) - float64(encoding[i])
			sum += d * d
		}
		neighbors = append(neighbors, store.Neighbor{StudentID: id, Distance: math.Sqrt(sum)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].StudentID < neighbors[j].StudentID
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}
