package roster

import (
	"sort"

	"github.com/coder/hnsw"
)

// DuplicatePair flags two roster identities whose encodings are closer
// than expected for distinct people, usually a sign the same student was
// enrolled under two filenames.
type DuplicatePair struct {
	A, B     string
	Distance float64
}

// NearDuplicates returns identity pairs whose encodings lie within
// maxDistance of each other. Candidate lookup goes through an HNSW
// graph so large rosters stay cheap; distances reported are exact.
func NearDuplicates(r *Roster, maxDistance float64) []DuplicatePair {
	if r.Len() < 2 {
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = 16
	g.Ml = 1.0 / 16.0
	g.Distance = hnsw.EuclideanDistance

	for _, id := range r.IDs() {
		enc, _ := r.Encoding(id)
		g.Add(hnsw.MakeNode(id, enc))
	}

	seen := make(map[[2]string]bool)
	var pairs []DuplicatePair

	for _, id := range r.IDs() {
		enc, _ := r.Encoding(id)
		for _, n := range g.Search(enc, 2) {
			if n.Key == id {
				continue
			}
			other, _ := r.Encoding(n.Key)
			d := float64(hnsw.EuclideanDistance(enc, other))
			if d > maxDistance {
				continue
			}
			key := [2]string{id, n.Key}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, DuplicatePair{A: key[0], B: key[1], Distance: d})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Distance < pairs[j].Distance })
	return pairs
}
