// Package metrics exposes the attendance pipeline's Prometheus
// instrumentation. All metrics live on a dedicated registry so tests
// never trip over duplicate registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	FramesSeen      prometheus.Counter
	FramesProcessed prometheus.Counter
	FramesFailed    prometheus.Counter
	FacesDetected   prometheus.Counter
	Matches         prometheus.Counter
	Unmatched       prometheus.Counter
	Duplicates      prometheus.Counter
	SessionsClosed  prometheus.Counter
	MarkedStudents  prometheus.Gauge
	FrameDuration   prometheus.Histogram
}

// New creates and registers the pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_frames_seen_total",
			Help: "Frames received from the capture source, sampled or not.",
		}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_frames_processed_total",
			Help: "Frames that went through face encoding.",
		}),
		FramesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_frames_failed_total",
			Help: "Frames skipped because encoding or matching failed.",
		}),
		FacesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_faces_detected_total",
			Help: "Faces detected across processed frames.",
		}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_matches_total",
			Help: "Detections matched to a roster identity.",
		}),
		Unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_unmatched_total",
			Help: "Detections with no roster identity within threshold.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_duplicate_detections_total",
			Help: "Matches for identities already marked this session.",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classmark_sessions_closed_total",
			Help: "Attendance sessions finalized.",
		}),
		MarkedStudents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "classmark_marked_students",
			Help: "Students marked present in the current session.",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classmark_frame_duration_seconds",
			Help:    "Wall time to process one sampled frame.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.FramesSeen,
		m.FramesProcessed,
		m.FramesFailed,
		m.FacesDetected,
		m.Matches,
		m.Unmatched,
		m.Duplicates,
		m.SessionsClosed,
		m.MarkedStudents,
		m.FrameDuration,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
