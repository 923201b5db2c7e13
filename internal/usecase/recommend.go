package usecase

import (
	"context"
	"fmt"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/strategy"
)

// RecommendUseCase turns a customer profile into a routine.
type RecommendUseCase struct {
	search   *SearchUseCase
	registry *strategy.Registry
	engine   *strategy.Engine
}

func NewRecommendUseCase(search *SearchUseCase, registry *strategy.Registry, engine *strategy.Engine) *RecommendUseCase {
	return &RecommendUseCase{
		search:   search,
		registry: registry,
		engine:   engine,
	}
}

// Recommend searches the catalog with the strategy's query for profile and
// partitions the results into routine steps. No matching products yields
// domain.ErrNoProducts.
func (u *RecommendUseCase) Recommend(ctx context.Context, industry string, profile domain.CustomerProfile, limit int) (*domain.RecommendationResponse, error) {
	s, err := u.registry.Get(industry)
	if err != nil {
		return nil, err
	}

	query := s.BuildSearchQuery(profile)
	logging.Ctx(ctx).Debug().Str("industry", s.Industry()).Str("query", query).Int("limit", limit).Msg("Building routine")

	scored, err := u.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if len(scored) == 0 {
		return nil, domain.ErrNoProducts
	}

	products := make([]domain.Product, len(scored))
	for i, sp := range scored {
		products[i] = sp.Product
	}

	return u.engine.Generate(ctx, s, profile, products)
}

// Industries lists the industries a routine can be built for.
func (u *RecommendUseCase) Industries() []string {
	return u.registry.Industries()
}
