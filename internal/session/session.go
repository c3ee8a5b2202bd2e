// Package session owns the attendance session lifecycle and the
// per-session dedup state. A session guarantees at most one attendance
// event per identity, no matter how often the same face is seen.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when a caller attempts to mutate a closed
// session. This is a contract violation and is never silently ignored.
var ErrClosed = errors.New("session closed")

// State is the session lifecycle state.
type State int

const (
	Active State = iota
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a single attendance mark. Events are append-only and ordered
// by detection time within a session.
type Event struct {
	SessionID  string    `json:"session_id"`
	IdentityID string    `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Sink receives each recorded event synchronously after the in-memory
// update. Appends are not assumed idempotent; duplicate prevention is
// solely the tracker's job.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Tracker is the attendance session state machine. All methods are safe
// for concurrent use; the seen-check and event append inside Record are
// atomic with respect to each other.
type Tracker struct {
	mu       sync.Mutex
	id       string
	openedAt time.Time
	closedAt time.Time
	limit    time.Duration
	state    State
	seen     map[string]struct{}
	events   []Event
	sink     Sink
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSink attaches a persistence sink invoked after each successful
// in-memory record.
func WithSink(s Sink) Option {
	return func(t *Tracker) { t.sink = s }
}

// WithClock overrides the time source, used by timeout tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Open starts a new Active session. A non-positive limit disables the
// timeout; the session then closes only explicitly.
func Open(limit time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		id:    uuid.NewString(),
		limit: limit,
		state: Active,
		seen:  make(map[string]struct{}),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.openedAt = t.now()
	return t
}

// RecordResult reports what Record did.
type RecordResult struct {
	Event         Event // the appended event, zero when AlreadyMarked
	AlreadyMarked bool  // identity was already present in this session
	SinkErr       error // persistence failure; the in-memory event is retained
}

// Record marks an identity present. It is a no-op for identities already
// marked in this session. Returns ErrClosed once the session is closed,
// including when the duration limit elapsed before this call.
func (t *Tracker) Record(ctx context.Context, identityID string, confidence float64) (RecordResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	if t.state == Closed {
		return RecordResult{}, ErrClosed
	}

	if _, ok := t.seen[identityID]; ok {
		return RecordResult{AlreadyMarked: true}, nil
	}

	ev := Event{
		SessionID:  t.id,
		IdentityID: identityID,
		Timestamp:  t.now(),
		Confidence: confidence,
	}
	t.seen[identityID] = struct{}{}
	t.events = append(t.events, ev)

	res := RecordResult{Event: ev}
	if t.sink != nil {
		// Synchronous so a crash loses at most this one unpersisted
		// event. The in-memory state stays authoritative on failure.
		res.SinkErr = t.sink.Append(ctx, ev)
	}
	return res, nil
}

// Reset clears the seen set and event list for a manual re-run within the
// same session window. Only valid while Active.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	if t.state == Closed {
		return ErrClosed
	}

	t.seen = make(map[string]struct{})
	t.events = nil
	return nil
}

// Close transitions the session to Closed and returns the final event
// list. Closing an already closed session is a no-op returning the same
// events.
func (t *Tracker) Close() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Closed {
		t.state = Closed
		t.closedAt = t.now()
	}
	return t.eventsCopyLocked()
}

// Expired reports whether the duration limit has elapsed. It also
// performs the Active -> Closed transition when due, so callers polling
// Expired observe closure promptly.
func (t *Tracker) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()
	return t.state == Closed && t.limit > 0 && !t.closedAt.Before(t.openedAt.Add(t.limit))
}

// expireLocked closes the session if the time box elapsed. Callers hold t.mu.
func (t *Tracker) expireLocked() {
	if t.state == Active && t.limit > 0 && t.now().Sub(t.openedAt) >= t.limit {
		t.state = Closed
		t.closedAt = t.now()
	}
}

// ID returns the unique session id.
func (t *Tracker) ID() string {
	return t.id
}

// OpenedAt returns when the session was opened.
func (t *Tracker) OpenedAt() time.Time {
	return t.openedAt
}

// ClosedAt returns when the session closed, zero while Active.
func (t *Tracker) ClosedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closedAt
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()
	return t.state
}

// Events returns a copy of the events recorded so far, in detection order.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventsCopyLocked()
}

// Marked reports whether the identity is already marked in this session.
func (t *Tracker) Marked(identityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[identityID]
	return ok
}

func (t *Tracker) eventsCopyLocked() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}
