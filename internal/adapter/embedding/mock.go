package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockEmbedder produces deterministic bag-of-words vectors: each lowercase token is
// hashed to a component. Texts sharing words end up close in cosine space.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, t := range texts {
		embeddings[i] = e.vector(t)
	}
	return embeddings, nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// keep the vector valid for stores that reject zero vectors
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
