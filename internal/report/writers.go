package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteCSV serializes the report set as CSV: one row per student plus a
// trailing summary block.
func WriteCSV(w io.Writer, set *Set) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Student ID", "Status", "Timestamp", "Confidence"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range set.Rows {
		confidence := ""
		if row.Status == StatusPresent {
			confidence = strconv.FormatFloat(row.Confidence, 'f', 2, 64)
		}
		record := []string{
			row.StudentID,
			row.Status,
			row.Timestamp.Format(time.RFC3339),
			confidence,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	summary := [][]string{
		{},
		{"Session", set.SessionID},
		{"Total Students", strconv.Itoa(set.Summary.TotalKnown)},
		{"Present", strconv.Itoa(set.Summary.TotalPresent)},
		{"Absent", strconv.Itoa(set.Summary.TotalAbsent)},
	}
	for _, record := range summary {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv summary: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON serializes the full report set as indented JSON.
func WriteJSON(w io.Writer, set *Set) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// Save writes the report to dir in the requested format (csv, json or
// both) and returns the paths written. Filenames carry the session end
// time so repeated saves never collide.
func Save(dir, format string, set *Set) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	base := filepath.Join(dir, "attendance_report_"+set.EndedAt.Format("20060102_150405"))
	var paths []string

	if format == "csv" || format == "both" {
		path := base + ".csv"
		if err := writeFile(path, set, WriteCSV); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if format == "json" || format == "both" {
		path := base + ".json"
		if err := writeFile(path, set, WriteJSON); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	return paths, nil
}

func writeFile(path string, set *Set, write func(io.Writer, *Set) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := write(f, set); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
