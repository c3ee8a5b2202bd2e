// Package match finds the best known identity for a detected face
// encoding. It is pure: no mutation, no I/O, identical inputs always
// produce identical outputs.
package match

import (
	"github.com/classmark/classmark/internal/roster"
)

// tieTolerance treats two distances as numerically equal. When two
// candidates tie, the lexicographically smaller identity id wins.
const tieTolerance = 1e-9

// Result describes an accepted match.
type Result struct {
	IdentityID string
	Distance   float64
	Confidence float64 // Confidence(Distance), in [0, 1]
}

// Engine matches face encodings against a roster under a distance
// threshold.
type Engine struct {
	threshold float64
}

// New creates a match engine. The threshold is a maximum Euclidean
// distance, not a confidence value.
func New(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Threshold returns the configured maximum match distance.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Match returns the closest roster identity for the encoding, or ok=false
// when no candidate clears the threshold (a normal outcome, not an error).
//
// Candidates are scanned in lexicographic id order and a later candidate
// replaces the current best only when it is strictly closer beyond
// tieTolerance, which makes equidistant matches resolve deterministically
// to the smaller id.
func (e *Engine) Match(encoding []float32, r *roster.Roster) (Result, bool) {
	best := Result{Distance: -1}

	for _, id := range r.IDs() {
		stored, _ := r.Encoding(id)
		d := EuclideanDistance(encoding, stored)
		if best.Distance < 0 || d < best.Distance-tieTolerance {
			best = Result{IdentityID: id, Distance: d}
		}
	}

	if best.Distance < 0 || best.Distance > e.threshold {
		return Result{}, false
	}

	best.Confidence = Confidence(best.Distance)
	return best, true
}
