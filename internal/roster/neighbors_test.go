package roster

import "testing"

func TestNearDuplicates(t *testing.T) {
	r := NewRoster(map[string][]float32{
		"ann":      {0.0, 0.0, 0.0},
		"ann-copy": {0.01, 0.0, 0.0},
		"bob":      {5.0, 5.0, 5.0},
	}, 1)

	pairs := NearDuplicates(r, 0.3)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %+v", pairs)
	}
	if pairs[0].A != "ann" || pairs[0].B != "ann-copy" {
		t.Errorf("unexpected pair %+v", pairs[0])
	}
	if pairs[0].Distance > 0.3 {
		t.Errorf("distance %v above cutoff", pairs[0].Distance)
	}
}

func TestNearDuplicates_NoneBelowCutoff(t *testing.T) {
	r := NewRoster(map[string][]float32{
		"ann": {0.0, 0.0},
		"bob": {9.0, 9.0},
	}, 1)

	if pairs := NearDuplicates(r, 0.3); pairs != nil {
		t.Errorf("expected no pairs, got %+v", pairs)
	}
}

func TestNearDuplicates_TinyRoster(t *testing.T) {
	r := NewRoster(map[string][]float32{"solo": {1, 2, 3}}, 1)
	if pairs := NearDuplicates(r, 10); pairs != nil {
		t.Errorf("expected nil for single identity, got %+v", pairs)
	}
}
