//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/classmark/classmark/internal/store"
)

func setupTestContainer(t *testing.T) (*DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := store.Config{
		PostgresURL:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	return db, func() {
		db.Close()
		container.Terminate(ctx)
	}
}

func TestAttendanceRoundTrip(t *testing.T) {
	db, cleanup := setupTestContainer(t)
	if db == nil {
		return
	}
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	ev := store.Event{SessionID: "s1", StudentID: "alice", Timestamp: now, Confidence: 0.93}
	if err := db.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	// Duplicate append is a no-op.
	if err := db.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("duplicate AppendEvent: %v", err)
	}

	events, err := db.EventsBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("EventsBySession: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].StudentID != "alice" {
		t.Errorf("unexpected student %q", events[0].StudentID)
	}

	byDate, err := db.EventsByDate(ctx, now)
	if err != nil {
		t.Fatalf("EventsByDate: %v", err)
	}
	if len(byDate) != 1 {
		t.Errorf("expected 1 event for today, got %d", len(byDate))
	}

	s := store.Session{ID: "s1", StartedAt: now, EndedAt: now.Add(5 * time.Minute), Present: 1, Absent: 2}
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	sessions, err := db.Sessions(ctx, 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Present != 1 || sessions[0].Absent != 2 {
		t.Errorf("unexpected sessions %+v", sessions)
	}
}

func TestRosterSync(t *testing.T) {
	db, cleanup := setupTestContainer(t)
	if db == nil {
		return
	}
	defer cleanup()
	ctx := context.Background()

	mkEncoding := func(seed float32) []float32 {
		enc := make([]float32, encodingDim)
		enc[0] = seed
		return enc
	}

	encodings := map[string][]float32{
		"alice": mkEncoding(0.0),
		"bob":   mkEncoding(5.0),
	}
	if err := db.PushEncodings(ctx, encodings); err != nil {
		t.Fatalf("PushEncodings: %v", err)
	}

	neighbors, err := db.SimilarIdentities(ctx, mkEncoding(0.1), 1)
	if err != nil {
		t.Fatalf("SimilarIdentities: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].StudentID != "alice" {
		t.Fatalf("unexpected neighbors %+v", neighbors)
	}

	// A second push replaces the roster entirely.
	if err := db.PushEncodings(ctx, map[string][]float32{"carol": mkEncoding(1.0)}); err != nil {
		t.Fatalf("second PushEncodings: %v", err)
	}
	neighbors, err = db.SimilarIdentities(ctx, mkEncoding(0.0), 10)
	if err != nil {
		t.Fatalf("SimilarIdentities: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].StudentID != "carol" {
		t.Errorf("expected only carol after replace, got %+v", neighbors)
	}
}
