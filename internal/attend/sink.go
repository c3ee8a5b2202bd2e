package attend

import (
	"context"

	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/store"
)

// storeSink forwards session events to the attendance store.
type storeSink struct {
	store store.Store
}

func (s *storeSink) Append(ctx context.Context, ev session.Event) error {
	return s.store.AppendEvent(ctx, store.Event{
		SessionID:  ev.SessionID,
		StudentID:  ev.IdentityID,
		Timestamp:  ev.Timestamp,
		Confidence: ev.Confidence,
	})
}
