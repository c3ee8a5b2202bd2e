// Package attend runs the live attendance pipeline: sample frames from
// a capture source, encode faces, match them against the roster and
// record presence until the session ends.
package attend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/classmark/classmark/internal/capture"
	"github.com/classmark/classmark/internal/match"
	"github.com/classmark/classmark/internal/metrics"
	"github.com/classmark/classmark/internal/report"
	"github.com/classmark/classmark/internal/roster"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/store"
)

// RosterProvider supplies the current roster. *roster.Store satisfies
// this; tests substitute a fixed mapping.
type RosterProvider interface {
	Get(ctx context.Context) (*roster.Roster, error)
}

// Config wires an Engine.
type Config struct {
	Source  capture.Source
	Stride  int
	Roster  RosterProvider
	Encoder roster.Encoder
	Model   string

	Threshold       float64
	SessionDuration time.Duration

	// Store is optional; without one, events live only in the report.
	Store store.Store
	// Metrics is optional.
	Metrics *metrics.Metrics

	ReportDir    string
	ReportFormat string

	// OnEvent fires once per newly marked student. Used by the live
	// feed; never called for duplicates.
	OnEvent func(session.Event)

	// Logger overrides the package logger when set.
	Logger *zerolog.Logger
}

// Engine drives one attendance session over a capture source.
type Engine struct {
	cfg     Config
	sampler *capture.Sampler
	matcher *match.Engine
	logger  zerolog.Logger
}

// New creates an engine. The capture source is wrapped in a sampler so
// only every Stride-th frame is encoded.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("capture source is required")
	}
	if cfg.Roster == nil {
		return nil, errors.New("roster store is required")
	}
	if cfg.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if cfg.SessionDuration <= 0 {
		return nil, errors.New("session duration must be positive")
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	opts := []capture.SamplerOption{}
	if cfg.Metrics != nil {
		opts = append(opts, capture.WithSkipHook(func(capture.Frame) {
			cfg.Metrics.FramesSeen.Inc()
		}))
	}

	return &Engine{
		cfg:     cfg,
		sampler: capture.NewSampler(cfg.Source, cfg.Stride, opts...),
		matcher: match.New(cfg.Threshold),
		logger:  logger,
	}, nil
}

// Run processes frames until the session duration elapses, the stream
// ends or ctx is cancelled, then assembles the attendance report. When
// the capture device fails mid-session the report built from events so
// far is returned together with the device error.
func (e *Engine) Run(ctx context.Context) (*report.Set, error) {
	defer e.sampler.Close()

	r, err := e.cfg.Roster.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if r.Len() == 0 {
		e.logger.Warn().Msg("roster is empty, every detection will be unmatched")
	}

	trackerOpts := []session.Option{}
	if e.cfg.Store != nil {
		trackerOpts = append(trackerOpts, session.WithSink(&storeSink{store: e.cfg.Store}))
	}
	tracker := session.Open(e.cfg.SessionDuration, trackerOpts...)

	e.logger.Info().
		Str("session", tracker.ID()).
		Int("roster", r.Len()).
		Dur("duration", e.cfg.SessionDuration).
		Msg("attendance session opened")

	var deviceErr error

loop:
	for {
		frame, err := e.sampler.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrEndOfStream):
			e.logger.Info().Msg("capture stream ended")
			break loop
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			e.logger.Info().Msg("attendance interrupted")
			break loop
		default:
			var captureErr *capture.CaptureError
			if errors.As(err, &captureErr) {
				e.logger.Error().Err(err).Msg("capture device failed")
				deviceErr = err
				break loop
			}
			e.logger.Error().Err(err).Msg("capture read failed")
			deviceErr = err
			break loop
		}

		e.processFrame(ctx, tracker, r, frame)

		if tracker.Expired() {
			e.logger.Info().Str("session", tracker.ID()).Msg("session duration elapsed")
			break
		}
	}

	set, err := e.finalize(ctx, tracker, r)
	if err != nil {
		return set, err
	}
	return set, deviceErr
}

// processFrame encodes one frame and records every matched face. A
// failure here costs this frame only; the session keeps running.
func (e *Engine) processFrame(ctx context.Context, tracker *session.Tracker, r *roster.Roster, frame capture.Frame) {
	m := e.cfg.Metrics
	start := time.Now()
	if m != nil {
		m.FramesSeen.Inc()
		m.FramesProcessed.Inc()
		defer func() { m.FrameDuration.Observe(time.Since(start).Seconds()) }()
	}

	faces, err := e.cfg.Encoder.EncodeFaces(ctx, frame.Data, e.cfg.Model)
	if err != nil {
		if m != nil {
			m.FramesFailed.Inc()
		}
		e.logger.Warn().Err(err).Int("frame", frame.Seq).Msg("frame encoding failed")
		return
	}
	if m != nil {
		m.FacesDetected.Add(float64(len(faces)))
	}

	for _, face := range faces {
		result, ok := e.matcher.Match(face.Embedding, r)
		if !ok {
			if m != nil {
				m.Unmatched.Inc()
			}
			continue
		}
		if m != nil {
			m.Matches.Inc()
		}

		rec, err := tracker.Record(ctx, result.IdentityID, result.Confidence)
		if err != nil {
			// Session closed under us; the caller notices via Expired.
			return
		}
		if rec.AlreadyMarked {
			if m != nil {
				m.Duplicates.Inc()
			}
			continue
		}
		if rec.SinkErr != nil {
			e.logger.Error().Err(rec.SinkErr).
				Str("student", result.IdentityID).
				Msg("failed to persist attendance event")
		}
		if m != nil {
			m.MarkedStudents.Set(float64(len(tracker.Events())))
		}
		e.logger.Info().
			Str("student", result.IdentityID).
			Float64("confidence", result.Confidence).
			Float64("distance", result.Distance).
			Msg("student marked present")
		if e.cfg.OnEvent != nil {
			e.cfg.OnEvent(rec.Event)
		}
	}
}

// finalize closes the session, assembles the report and persists the
// session summary.
func (e *Engine) finalize(ctx context.Context, tracker *session.Tracker, r *roster.Roster) (*report.Set, error) {
	events := tracker.Close()
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SessionsClosed.Inc()
		e.cfg.Metrics.MarkedStudents.Set(0)
	}

	set, err := report.Assemble(tracker.ID(), tracker.OpenedAt(), tracker.ClosedAt(), events, r.IDs())
	if err != nil {
		var inconsistency *report.InconsistencyError
		if errors.As(err, &inconsistency) {
			e.logger.Warn().
				Strs("unknown", inconsistency.UnknownIDs).
				Msg("session events reference identities missing from the roster")
		} else {
			return nil, fmt.Errorf("assemble report: %w", err)
		}
	}

	if e.cfg.Store != nil {
		summary := store.Session{
			ID:        set.SessionID,
			StartedAt: set.StartedAt,
			EndedAt:   set.EndedAt,
			Present:   set.Summary.TotalPresent,
			Absent:    set.Summary.TotalAbsent,
		}
		if err := e.cfg.Store.SaveSession(ctx, summary); err != nil {
			e.logger.Error().Err(err).Msg("failed to persist session summary")
		}
	}

	if e.cfg.ReportDir != "" {
		paths, err := report.Save(e.cfg.ReportDir, e.cfg.ReportFormat, set)
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to write report file")
		} else {
			e.logger.Info().Strs("paths", paths).Msg("report written")
		}
	}

	e.logger.Info().
		Str("session", set.SessionID).
		Int("present", set.Summary.TotalPresent).
		Int("absent", set.Summary.TotalAbsent).
		Msg("attendance session closed")
	return set, nil
}
