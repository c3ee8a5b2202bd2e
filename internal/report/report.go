// Package report turns a closed session's event list into the output
// record set and serializes it for the report writers.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/classmark/classmark/internal/session"
)

// Statuses used in report rows.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// Row is one report line for one student.
type Row struct {
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Summary is the session-level totals block.
type Summary struct {
	TotalKnown   int `json:"total_known"`
	TotalPresent int `json:"total_present"`
	TotalAbsent  int `json:"total_absent"`
}

// Set is the assembled report for one session.
type Set struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Rows      []Row     `json:"rows"`
	Summary   Summary   `json:"summary"`
}

// InconsistencyError reports recorded identities that are missing from
// the current roster. The report is still produced; the caller decides
// whether to treat this as fatal.
type InconsistencyError struct {
	UnknownIDs []string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("recorded identities not in roster: %s", strings.Join(e.UnknownIDs, ", "))
}

// Assemble builds the report set for a session: one Present row per
// event, in detection order, followed by Absent rows for every known
// identity without an event. TotalAbsent is counted over roster
// membership and can never go negative. Events whose identity is not in
// the roster are kept in the rows and surfaced via InconsistencyError.
func Assemble(sessionID string, startedAt, endedAt time.Time, events []session.Event, knownIDs []string) (*Set, error) {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	set := &Set{
		SessionID: sessionID,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Rows:      make([]Row, 0, len(knownIDs)),
	}

	present := make(map[string]bool, len(events))
	var unknown []string
	for _, ev := range events {
		set.Rows = append(set.Rows, Row{
			StudentID:  ev.IdentityID,
			Status:     StatusPresent,
			Timestamp:  ev.Timestamp,
			Confidence: ev.Confidence,
		})
		present[ev.IdentityID] = true
		if !known[ev.IdentityID] {
			unknown = append(unknown, ev.IdentityID)
		}
	}

	absent := make([]string, 0, len(knownIDs))
	for _, id := range knownIDs {
		if !present[id] {
			absent = append(absent, id)
		}
	}
	sort.Strings(absent)
	for _, id := range absent {
		set.Rows = append(set.Rows, Row{
			StudentID: id,
			Status:    StatusAbsent,
			Timestamp: endedAt,
		})
	}

	set.Summary = Summary{
		TotalKnown:   len(knownIDs),
		TotalPresent: len(events),
		TotalAbsent:  len(absent),
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return set, &InconsistencyError{UnknownIDs: unknown}
	}
	return set, nil
}
