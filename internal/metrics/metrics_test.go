package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.FramesSeen.Inc()
	m.Matches.Add(3)
	m.MarkedStudents.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"classmark_frames_seen_total 1",
		"classmark_matches_total 3",
		"classmark_marked_students 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not collide.
	a := New()
	b := New()
	a.FramesSeen.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "classmark_frames_seen_total 1") {
		t.Error("registries are shared between instances")
	}
}
