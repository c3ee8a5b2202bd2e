package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmark/classmark/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppendAndQueryEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s1", StudentID: "alice", Timestamp: now, Confidence: 0.91,
	}))
	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s1", StudentID: "bob", Timestamp: now.Add(time.Minute), Confidence: 0.84,
	}))

	events, err := db.EventsBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].StudentID)
	assert.Equal(t, "bob", events[1].StudentID)
	assert.InDelta(t, 0.91, events[0].Confidence, 1e-9)
}

func TestAppendEvent_DuplicateIsNoOp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ev := store.Event{SessionID: "s1", StudentID: "alice", Timestamp: now, Confidence: 0.9}
	require.NoError(t, db.AppendEvent(ctx, ev))
	require.NoError(t, db.AppendEvent(ctx, ev))

	events, err := db.EventsBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventsByDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s1", StudentID: "alice", Timestamp: monday, Confidence: 0.9,
	}))
	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s2", StudentID: "bob", Timestamp: tuesday, Confidence: 0.8,
	}))

	events, err := db.EventsByDate(ctx, monday)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].StudentID)
}

func TestSaveSession_Upsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s := store.Session{ID: "s1", StartedAt: started, EndedAt: started.Add(5 * time.Minute), Present: 1, Absent: 2}
	require.NoError(t, db.SaveSession(ctx, s))

	s.Present = 3
	s.Absent = 0
	require.NoError(t, db.SaveSession(ctx, s))

	sessions, err := db.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Present)
	assert.Equal(t, 0, sessions[0].Absent)
}

func TestCleanup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	old := time.Now().UTC().AddDate(0, 0, -60)
	recent := time.Now().UTC()

	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s-old", StudentID: "alice", Timestamp: old, Confidence: 0.9,
	}))
	require.NoError(t, db.AppendEvent(ctx, store.Event{
		SessionID: "s-new", StudentID: "bob", Timestamp: recent, Confidence: 0.9,
	}))
	require.NoError(t, db.SaveSession(ctx, store.Session{
		ID: "s-old", StartedAt: old, EndedAt: old.Add(time.Minute),
	}))

	deleted, err := db.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Events)
	assert.Equal(t, 0, st.Sessions)
}

func TestCleanup_DisabledRetention(t *testing.T) {
	db := openTestDB(t)
	deleted, err := db.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
