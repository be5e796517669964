package recognizer

import (
	"math"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/roster"
)

// hnswCandidates is how many graph neighbours are re-ranked exactly.
const hnswCandidates = 8

// index finds the roster entry closest to a query embedding. Small rosters
// are scanned linearly; larger ones go through an HNSW graph.
type index struct {
	entries []roster.Entry
	dim     int
	graph   *hnsw.Graph[int]
}

func newIndex(entries []roster.Entry) *index {
	idx := &index{}
	for _, e := range entries {
		if len(e.Embedding) > 0 {
			idx.entries = append(idx.entries, e)
		}
	}
	if len(idx.entries) < constants.HNSWMinRosterSize {
		return idx
	}
	// The graph needs a single dimension.
	idx.dim = len(idx.entries[0].Embedding)
	for _, e := range idx.entries {
		if len(e.Embedding) != idx.dim {
			return idx
		}
	}

	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	for i, e := range idx.entries {
		g.Add(hnsw.MakeNode(i, e.Embedding))
	}
	idx.graph = g
	return idx
}

// nearest returns the name of the closest entry and its cosine distance.
func (idx *index) nearest(query []float32) (string, float64, bool) {
	if len(idx.entries) == 0 {
		return "", 0, false
	}

	best, bestDist := -1, math.Inf(1)
	consider := func(i int) {
		if d := CosineDistance(query, idx.entries[i].Embedding); d < bestDist {
			best, bestDist = i, d
		}
	}

	if idx.graph != nil && len(query) == idx.dim {
		for _, n := range idx.graph.Search(query, hnswCandidates) {
			consider(n.Key)
		}
	}
	if best < 0 {
		for i := range idx.entries {
			consider(i)
		}
	}
	return idx.entries[best].Name, bestDist, true
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))
	return 1 - similarity
}
