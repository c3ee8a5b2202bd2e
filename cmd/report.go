package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/report"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recorded attendance",
	Long: `Show recorded attendance. With --session a full report for that
session is rebuilt against the current roster and written to the report
directory; with --date the raw events of that calendar day are listed.
Without flags the most recent session summaries are printed.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("session", "", "Session id to rebuild a report for")
	reportCmd.Flags().String("date", "", "Calendar day to list events for (YYYY-MM-DD)")
	reportCmd.Flags().Int("limit", 20, "Number of session summaries to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	lg, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}
	defer func() { _ = lg.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
		return rebuildSessionReport(ctx, cfg, db, sessionID)
	}

	if date, _ := cmd.Flags().GetString("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
		events, err := db.EventsByDate(ctx, day)
		if err != nil {
			return fmt.Errorf("could not query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Printf("No attendance recorded on %s\n", date)
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %-20s session=%s confidence=%.2f\n",
				ev.Timestamp.Format(time.RFC3339), ev.StudentID, ev.SessionID, ev.Confidence)
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := db.Sessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  present=%d absent=%d\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.Present, s.Absent)
	}
	return nil
}

func rebuildSessionReport(ctx context.Context, cfg *config.Config, db store.Store, sessionID string) error {
	stored, err := db.EventsBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("could not query session events: %w", err)
	}
	if len(stored) == 0 {
		return fmt.Errorf("session %q has no recorded events", sessionID)
	}

	events := make([]session.Event, 0, len(stored))
	startedAt, endedAt := stored[0].Timestamp, stored[0].Timestamp
	for _, ev := range stored {
		if ev.Timestamp.Before(startedAt) {
			startedAt = ev.Timestamp
		}
		if ev.Timestamp.After(endedAt) {
			endedAt = ev.Timestamp
		}
		events = append(events, session.Event{
			SessionID:  ev.SessionID,
			IdentityID: ev.StudentID,
			Timestamp:  ev.Timestamp,
			Confidence: ev.Confidence,
		})
	}

	// Stored summary bounds are more accurate than event timestamps
	// when available.
	if summaries, err := db.Sessions(ctx, 1000); err == nil {
		for _, s := range summaries {
			if s.ID == sessionID {
				startedAt, endedAt = s.StartedAt, s.EndedAt
				break
			}
		}
	}

	r, err := newRosterStore(cfg, false).Get(ctx)
	if err != nil {
		return fmt.Errorf("could not load roster: %w", err)
	}

	set, err := report.Assemble(sessionID, startedAt, endedAt, events, r.IDs())
	if err != nil {
		// Students recorded back then may have left the roster since;
		// the report is still valid, the mismatch just gets called out.
		var inconsistency *report.InconsistencyError
		if !errors.As(err, &inconsistency) {
			return fmt.Errorf("could not assemble report: %w", err)
		}
		fmt.Printf("Warning: recorded students no longer on the roster: %s\n",
			strings.Join(inconsistency.UnknownIDs, ", "))
	}

	paths, err := report.Save(cfg.Reports.Directory, cfg.Reports.Format, set)
	if err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	for _, p := range paths {
		fmt.Printf("Report written to %s\n", p)
	}
	fmt.Printf("Present %d of %d known students\n", set.Summary.TotalPresent, set.Summary.TotalKnown)
	return nil
}
