// Package roster loads and caches the mapping from student identity to
// face encoding. The source of truth is a directory of images, one face
// per file, where the filename (without extension) is the student id.
package roster

import "sort"

// Roster is an immutable snapshot of the identity -> encoding mapping.
// A rebuild produces a new Roster; readers holding an old snapshot keep
// a consistent view and never observe a partially populated mapping.
type Roster struct {
	ids         []string // sorted
	encodings   map[string][]float32
	fingerprint uint64
}

// NewRoster builds a snapshot from the given mapping. The encodings map is
// not copied; callers must not mutate it after handing it over.
func NewRoster(encodings map[string][]float32, fingerprint uint64) *Roster {
	ids := make([]string, 0, len(encodings))
	for id := range encodings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Roster{ids: ids, encodings: encodings, fingerprint: fingerprint}
}

// IDs returns all identity ids in lexicographic order.
func (r *Roster) IDs() []string {
	return r.ids
}

// Encoding returns the stored encoding for an identity id.
func (r *Roster) Encoding(id string) ([]float32, bool) {
	enc, ok := r.encodings[id]
	return enc, ok
}

// Len returns the number of known identities.
func (r *Roster) Len() int {
	return len(r.ids)
}

// Fingerprint identifies the source directory state this snapshot was
// built from.
func (r *Roster) Fingerprint() uint64 {
	return r.fingerprint
}
