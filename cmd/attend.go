package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/attend"
	"github.com/classmark/classmark/internal/capture"
	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/metrics"
	"github.com/classmark/classmark/internal/roster"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Run an attendance session",
	Long: `Run a single attendance session. Frames are pulled from the configured
camera (or a directory of snapshots with --dir), faces are matched against
the roster and every recognized student is marked present once. When the
session expires or the stream ends a report is written out.`,
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("dir", "", "Read frames from a directory of images instead of a camera")
	attendCmd.Flags().Int("camera", -1, "Camera index to use (overrides config)")
}

func runAttend(cmd *cobra.Command, args []string) error {
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

	src, err := openSource(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	rosterStore := newRosterStore(cfg, true)

	engine, err := attend.New(attend.Config{
		Source:          src,
		Stride:          cfg.Engine.FrameStride,
		Roster:          rosterStore,
		Encoder:         roster.NewClient(cfg.Encoder.URL),
		Model:           cfg.Engine.RecognitionModel,
		Threshold:       cfg.Engine.FaceThreshold,
		SessionDuration: cfg.Engine.SessionDuration,
		Store:           db,
		Metrics:         metrics.New(),
		ReportDir:       cfg.Reports.Directory,
		ReportFormat:    cfg.Reports.Format,
		Logger:          &lg.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not build attendance engine: %w", err)
	}

	set, runErr := engine.Run(ctx)
	if set != nil {
		fmt.Printf("Session %s\n", set.SessionID)
		fmt.Printf("  Present: %d\n", set.Summary.TotalPresent)
		fmt.Printf("  Absent:  %d\n", set.Summary.TotalAbsent)
		fmt.Printf("  Known:   %d\n", set.Summary.TotalKnown)
	}
	if runErr != nil {
		return fmt.Errorf("attendance run failed: %w", runErr)
	}

	return nil
}

// openSource picks the frame source: an image directory when --dir is
// given, otherwise the configured MJPEG camera stream.
func openSource(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (capture.Source, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("frame directory %q: %w", dir, err)
		}
		return capture.OpenDir(dir, cfg.Capture.PollInterval)
	}

	idx := cfg.Capture.CameraIndex
	if flagIdx, _ := cmd.Flags().GetInt("camera"); flagIdx >= 0 {
		idx = flagIdx
	}
	if idx < 0 || idx >= len(cfg.Capture.Cameras) {
		return nil, fmt.Errorf("camera index %d out of range, %d cameras configured", idx, len(cfg.Capture.Cameras))
	}

	return capture.OpenMJPEG(ctx, cfg.Capture.Cameras[idx])
}
