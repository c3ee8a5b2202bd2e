package report

import (
	"testing"
	"time"

	"github.com/classmark/classmark/internal/session"
)

var (
	start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end   = start.Add(5 * time.Minute)
)

func TestAssemble_PresentAndAbsent(t *testing.T) {
	events := []session.Event{
		{SessionID: "s1", IdentityID: "bob", Timestamp: start.Add(time.Minute), Confidence: 0.91},
	}

	set, err := Assemble("s1", start, end, events, []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	if set.Summary.TotalKnown != 3 || set.Summary.TotalPresent != 1 || set.Summary.TotalAbsent != 2 {
		t.Errorf("unexpected summary: %+v", set.Summary)
	}

	if len(set.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(set.Rows))
	}
	if set.Rows[0].StudentID != "bob" || set.Rows[0].Status != StatusPresent {
		t.Errorf("expected bob present first, got %+v", set.Rows[0])
	}
	// Absent rows follow in lexicographic order.
	if set.Rows[1].StudentID != "alice" || set.Rows[1].Status != StatusAbsent {
		t.Errorf("unexpected row: %+v", set.Rows[1])
	}
	if set.Rows[2].StudentID != "carol" || set.Rows[2].Status != StatusAbsent {
		t.Errorf("unexpected row: %+v", set.Rows[2])
	}
}

func TestAssemble_EmptySession(t *testing.T) {
	set, err := Assemble("s1", start, end, nil, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if set.Summary.TotalPresent != 0 || set.Summary.TotalAbsent != 2 {
		t.Errorf("unexpected summary: %+v", set.Summary)
	}
}

func TestAssemble_AbsentNeverNegative(t *testing.T) {
	// Identity recorded that is not in the roster: surfaced, not clipped.
	events := []session.Event{
		{SessionID: "s1", IdentityID: "alice", Timestamp: start, Confidence: 0.9},
		{SessionID: "s1", IdentityID: "ghost", Timestamp: start.Add(time.Second), Confidence: 0.8},
	}

	set, err := Assemble("s1", start, end, events, []string{"alice"})
	if err == nil {
		t.Fatal("expected inconsistency error")
	}
	incons, ok := err.(*InconsistencyError)
	if !ok {
		t.Fatalf("expected *InconsistencyError, got %T", err)
	}
	if len(incons.UnknownIDs) != 1 || incons.UnknownIDs[0] != "ghost" {
		t.Errorf("unexpected unknown ids: %v", incons.UnknownIDs)
	}

	// The report is still produced, best effort.
	if set == nil {
		t.Fatal("expected a report set despite inconsistency")
	}
	if set.Summary.TotalAbsent < 0 {
		t.Errorf("total absent went negative: %d", set.Summary.TotalAbsent)
	}
	if set.Summary.TotalPresent != 2 {
		t.Errorf("expected present=2, got %d", set.Summary.TotalPresent)
	}
}

func TestAssemble_RowPerEventInDetectionOrder(t *testing.T) {
	events := []session.Event{
		{IdentityID: "carol", Timestamp: start.Add(1 * time.Second), Confidence: 0.7},
		{IdentityID: "alice", Timestamp: start.Add(2 * time.Second), Confidence: 0.8},
	}

	set, err := Assemble("s1", start, end, events, []string{"alice", "carol"})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if set.Rows[0].StudentID != "carol" || set.Rows[1].StudentID != "alice" {
		t.Errorf("present rows not in detection order: %+v", set.Rows)
	}
}
