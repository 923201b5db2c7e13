package store

import (
	"math"
	"sort"

	"routine/internal/domain"
)

// Candidate is a stored product with its embedding.
type Candidate struct {
	Product domain.Product
	Vector  []float32
}

// Rank orders candidates by ascending cosine distance to query and returns the
// first limit. Ties are broken by product ID.
func Rank(query []float32, candidates []Candidate, limit int) []domain.ScoredProduct {
	if limit <= 0 || len(candidates) == 0 {
		return []domain.ScoredProduct{}
	}

	scored := make([]domain.ScoredProduct, 0, len(candidates))
	for _, c := range candidates {
		distance := 1 - CosineSimilarity(query, c.Vector)
		scored = append(scored, domain.ScoredProduct{
			Product:    c.Product,
			Similarity: clamp(1-distance, -1, 1),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})

	if limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit]
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
