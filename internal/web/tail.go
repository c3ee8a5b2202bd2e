package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/store"
)

// Tailer polls the store for today's attendance events and publishes
// ones it has not seen yet to the feed. Attendance sessions run in a
// separate process, so the store is the only channel between them and
// connected SSE clients.
type Tailer struct {
	db       store.Store
	feed     *Feed
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	seen map[string]struct{}
	day  string
}

// NewTailer creates a tailer polling db at the given interval.
func NewTailer(db store.Store, feed *Feed, interval time.Duration, logger zerolog.Logger) *Tailer {
	t := &Tailer{
		db:       db,
		feed:     feed,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		seen:     make(map[string]struct{}),
	}
	t.day = t.now().Format("2006-01-02")
	return t
}

// Run polls until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t.poll(ctx)
	}
}

// poll runs one tick: fetch today's events and publish the unseen ones.
// The dedup set only covers the current day, so it is reset when the
// date rolls over instead of growing for the life of the process.
func (t *Tailer) poll(ctx context.Context) {
	if today := t.now().Format("2006-01-02"); today != t.day {
		t.day = today
		t.seen = make(map[string]struct{})
	}

	events, err := t.db.EventsByDate(ctx, t.now())
	if err != nil {
		t.logger.Warn().Err(err).Msg("live feed poll failed")
		return
	}
	for _, ev := range events {
		key := ev.SessionID + "/" + ev.StudentID
		if _, ok := t.seen[key]; ok {
			continue
		}
		t.seen[key] = struct{}{}
		t.feed.Publish(session.Event{
			SessionID:  ev.SessionID,
			IdentityID: ev.StudentID,
			Timestamp:  ev.Timestamp,
			Confidence: ev.Confidence,
		})
	}
}
