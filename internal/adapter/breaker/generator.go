package breaker

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"

	"routine/internal/domain"
	"routine/internal/port"
)

// Generator guards a port.TextGenerator with a circuit breaker.
type Generator struct {
	next port.TextGenerator
	cb   *gobreaker.CircuitBreaker[*domain.Completion]
}

func NewGenerator(next port.TextGenerator, s Settings) *Generator {
	return &Generator{
		next: next,
		cb:   newCircuitBreaker[*domain.Completion]("generation-api", s),
	}
}

func (g *Generator) Complete(ctx context.Context, messages []domain.Message, opts domain.GenerationOptions) (*domain.Completion, error) {
	return execute(g.cb, "generation", "complete", func() (*domain.Completion, error) {
		return g.next.Complete(ctx, messages, opts)
	})
}

func (g *Generator) ModelName() string {
	return g.next.ModelName()
}

func (g *Generator) State() string {
	return g.cb.State().String()
}
