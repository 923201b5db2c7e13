package breaker

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"

	"routine/internal/port"
)

// Embedder guards a port.Embedder with a circuit breaker.
type Embedder struct {
	next port.Embedder
	cb   *gobreaker.CircuitBreaker[[][]float32]
}

func NewEmbedder(next port.Embedder, s Settings) *Embedder {
	return &Embedder{
		next: next,
		cb:   newCircuitBreaker[[][]float32]("embedding-api", s),
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return execute(e.cb, "embedding", "embed", func() ([][]float32, error) {
		return e.next.EmbedBatch(ctx, texts)
	})
}

func (e *Embedder) Dimension() int {
	return e.next.Dimension()
}

func (e *Embedder) ModelName() string {
	return e.next.ModelName()
}

// State reports the breaker state for health output.
func (e *Embedder) State() string {
	return e.cb.State().String()
}
