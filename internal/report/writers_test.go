package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/classmark/classmark/internal/session"
)

func sampleSet(t *testing.T) *Set {
	t.Helper()
	events := []session.Event{
		{SessionID: "s1", IdentityID: "alice", Timestamp: start.Add(time.Minute), Confidence: 0.92},
	}
	set, err := Assemble("s1", start, end, events, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return set
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSet(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		// The summary block has ragged rows; parse line by line instead.
		r := csv.NewReader(strings.NewReader(buf.String()))
		r.FieldsPerRecord = -1
		records, err = r.ReadAll()
		if err != nil {
			t.Fatalf("parsing csv output: %v", err)
		}
	}

	if records[0][0] != "Student ID" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "alice" || records[1][1] != StatusPresent || records[1][3] != "0.92" {
		t.Errorf("unexpected present row: %v", records[1])
	}
	if records[2][0] != "bob" || records[2][1] != StatusAbsent {
		t.Errorf("unexpected absent row: %v", records[2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSet(t)); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded Set
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if decoded.SessionID != "s1" || decoded.Summary.TotalPresent != 1 {
		t.Errorf("unexpected decoded report: %+v", decoded)
	}
}

// A set carrying identities that dropped off the roster since the
// session ran must still be writable; the inconsistency is a warning
// for the caller, not a reason to lose the report.
func TestSave_InconsistentSetStillWritten(t *testing.T) {
	events := []session.Event{
		{SessionID: "s1", IdentityID: "alice", Timestamp: start, Confidence: 0.9},
		{SessionID: "s1", IdentityID: "ghost", Timestamp: start.Add(time.Second), Confidence: 0.8},
	}
	set, err := Assemble("s1", start, end, events, []string{"alice"})
	var inconsistency *InconsistencyError
	if !errors.As(err, &inconsistency) {
		t.Fatalf("expected *InconsistencyError, got %v", err)
	}

	dir := t.TempDir()
	paths, err := Save(dir, "json", set)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 file, got %v", paths)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got Set
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(got.Rows) != 2 || got.Summary.TotalPresent != 2 {
		t.Errorf("report lost rows: %+v", got)
	}
}

func TestSave_Formats(t *testing.T) {
	tests := []struct {
		format    string
		wantFiles int
		wantErr   bool
	}{
		{"csv", 1, false},
		{"json", 1, false},
		{"both", 2, false},
		{"xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			paths, err := Save(dir, tt.format, sampleSet(t))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown format")
				}
				return
			}
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if len(paths) != tt.wantFiles {
				t.Fatalf("expected %d files, got %v", tt.wantFiles, paths)
			}
			for _, p := range paths {
				if filepath.Dir(p) != dir {
					t.Errorf("file written outside dir: %s", p)
				}
				if _, err := os.Stat(p); err != nil {
					t.Errorf("missing report file: %v", err)
				}
			}
		})
	}
}
