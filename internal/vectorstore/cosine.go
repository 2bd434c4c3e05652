package vectorstore

import (
	"math"
	"sort"
)

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

type scoredCandidate struct {
	index int
	score float32
}

// rankByCosine orders candidate indexes by similarity to query,
// highest first. Ties keep candidate order, so results stay stable
// across runs.
func rankByCosine(query []float32, candidates [][]float32) []scoredCandidate {
	out := make([]scoredCandidate, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, scoredCandidate{index: i, score: cosineSimilarity(query, c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out
}
