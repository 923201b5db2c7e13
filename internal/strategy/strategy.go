// Package strategy turns similarity search results into an ordered routine of
// steps, one policy per industry.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/metrics"
	"routine/internal/port"
)

// Strategy is the per-industry routine policy.
type Strategy interface {
	Industry() string
	BuildSearchQuery(profile domain.CustomerProfile) string
	StepConfigurations() []domain.StepConfiguration
	FilterProductsForStep(products []domain.Product, step domain.StepConfiguration) []domain.Product
	GeneratePrompt(stepName string, profile domain.CustomerProfile, products []domain.Product) []domain.Message
}

// ErrUnknownIndustry is returned when no strategy is registered for an industry.
var ErrUnknownIndustry = errors.New("unknown industry")

// FallbackDescription is used when text generation fails or returns nothing.
func FallbackDescription(step string) string {
	return fmt.Sprintf("Complete the %s step using the recommended products.", step)
}

// Engine assembles routines. A nil generator makes every step use the fallback.
type Engine struct {
	generator port.TextGenerator
	opts      domain.GenerationOptions
	now       func() time.Time
}

func NewEngine(generator port.TextGenerator, opts domain.GenerationOptions) *Engine {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	return &Engine{generator: generator, opts: opts, now: time.Now}
}

// Generate partitions products into the strategy's steps in ascending order.
// Each step claims its matches from the pool left by earlier steps, so no
// product appears twice. Generation failures fall back per step.
func (e *Engine) Generate(ctx context.Context, s Strategy, profile domain.CustomerProfile, products []domain.Product) (*domain.RecommendationResponse, error) {
	steps := append([]domain.StepConfiguration(nil), s.StepConfigurations()...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	remaining := dedupe(products)
	out := make([]domain.RecommendationStep, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		claimed := s.FilterProductsForStep(remaining, step)
		remaining = without(remaining, claimed)

		out = append(out, domain.RecommendationStep{
			Name:        step.Name,
			Order:       step.Order,
			Description: e.describe(ctx, s, step.Name, profile, claimed),
			Products:    claimed,
		})
	}

	return &domain.RecommendationResponse{
		Success: true,
		Message: fmt.Sprintf("Generated a %d-step %s routine", len(out), s.Industry()),
		Steps:   out,
		Metadata: &domain.RecommendationMetadata{
			Industry:    s.Industry(),
			GeneratedAt: e.now().UTC(),
		},
	}, nil
}

func (e *Engine) describe(ctx context.Context, s Strategy, step string, profile domain.CustomerProfile, products []domain.Product) string {
	if e.generator == nil || len(products) == 0 {
		return FallbackDescription(step)
	}

	completion, err := e.generator.Complete(ctx, s.GeneratePrompt(step, profile, products), e.opts)
	if err != nil || completion == nil || isBlank(completion.Text) {
		metrics.StepFallbacks.WithLabelValues(s.Industry()).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("step", step).Msg("Step description generation failed, using fallback")
		return FallbackDescription(step)
	}
	return completion.Text
}

func dedupe(products []domain.Product) []domain.Product {
	seen := make(map[string]bool, len(products))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func without(pool, claimed []domain.Product) []domain.Product {
	if len(claimed) == 0 {
		return pool
	}
	taken := make(map[string]bool, len(claimed))
	for _, p := range claimed {
		taken[p.ID] = true
	}
	rest := make([]domain.Product, 0, max(0, len(pool)-len(claimed)))
	for _, p := range pool {
		if !taken[p.ID] {
			rest = append(rest, p)
		}
	}
	return rest
}
