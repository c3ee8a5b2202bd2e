package match

import (
	"testing"

	"github.com/classmark/classmark/internal/roster"
)

func testRoster(t *testing.T, encodings map[string][]float32) *roster.Roster {
	t.Helper()
	return roster.NewRoster(encodings, 1)
}

func TestMatch_BestCandidateWins(t *testing.T) {
	r := testRoster(t, map[string][]float32{
		"alice":   {0, 0, 0},
		"bob":     {1, 0, 0},
		"charlie": {0, 5, 0},
	})
	e := New(0.5)

	res, ok := e.Match([]float32{0.1, 0, 0}, r)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.IdentityID != "alice" {
		t.Errorf("expected alice, got %s", res.IdentityID)
	}
	if res.Distance < 0.099 || res.Distance > 0.101 {
		t.Errorf("unexpected distance %v", res.Distance)
	}
	if res.Confidence < 0.899 || res.Confidence > 0.901 {
		t.Errorf("unexpected confidence %v", res.Confidence)
	}
}

func TestMatch_NoCandidateClearsThreshold(t *testing.T) {
	r := testRoster(t, map[string][]float32{
		"alice": {0, 0, 0},
		"bob":   {1, 0, 0},
	})
	e := New(0.5)

	if _, ok := e.Match([]float32{10, 10, 10}, r); ok {
		t.Error("expected no match beyond threshold")
	}
}

func TestMatch_EmptyRoster(t *testing.T) {
	r := testRoster(t, map[string][]float32{})
	e := New(0.5)

	if _, ok := e.Match([]float32{1, 2, 3}, r); ok {
		t.Error("expected no match against empty roster")
	}
}

// Equidistant candidates must resolve to the lexicographically smaller id,
// regardless of map iteration order.
func TestMatch_TieBreakDeterministic(t *testing.T) {
	r := testRoster(t, map[string][]float32{
		"zoe": {1, 0},
		"ann": {-1, 0},
	})
	e := New(2)

	for range 50 {
		res, ok := e.Match([]float32{0, 0}, r)
		if !ok {
			t.Fatal("expected a match")
		}
		if res.IdentityID != "ann" {
			t.Fatalf("tie-break picked %s, want ann", res.IdentityID)
		}
	}
}

// If an encoding is accepted at threshold T it must be accepted at any
// looser threshold T' >= T.
func TestMatch_ThresholdMonotonicity(t *testing.T) {
	r := testRoster(t, map[string][]float32{
		"alice": {0, 0, 0},
	})
	// 0.25 is exactly representable in float32, so the distance lands
	// on the threshold instead of a hair above it.
	query := []float32{0.25, 0, 0}

	strict := New(0.25)
	if _, ok := strict.Match(query, r); !ok {
		t.Fatal("expected match at threshold 0.25")
	}

	for _, th := range []float64{0.3, 0.5, 0.9, 1.0} {
		if _, ok := New(th).Match(query, r); !ok {
			t.Errorf("accepted at 0.25 but rejected at looser threshold %v", th)
		}
	}
}

// Same inputs, same outputs: the engine holds no state.
func TestMatch_Repeatable(t *testing.T) {
	r := testRoster(t, map[string][]float32{
		"alice": {0.5, 0.5},
		"bob":   {0.4, 0.6},
	})
	e := New(1)
	query := []float32{0.45, 0.55}

	first, ok := e.Match(query, r)
	if !ok {
		t.Fatal("expected a match")
	}
	for range 10 {
		got, ok := e.Match(query, r)
		if !ok || got != first {
			t.Fatalf("non-deterministic result: %+v vs %+v", got, first)
		}
	}
}
