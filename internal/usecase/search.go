package usecase

import (
	"context"
	"errors"
	"time"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/metrics"
	"routine/internal/port"
)

// SearchUseCase answers free-text similarity queries against the product store.
type SearchUseCase struct {
	embedder     port.Embedder
	store        port.ProductStore
	storeTimeout time.Duration
}

// NewSearchUseCase creates a new search use case. storeTimeout bounds each
// store call; zero leaves the caller's deadline in charge.
func NewSearchUseCase(embedder port.Embedder, store port.ProductStore, storeTimeout time.Duration) *SearchUseCase {
	return &SearchUseCase{
		embedder:     embedder,
		store:        store,
		storeTimeout: storeTimeout,
	}
}

// Search embeds query and returns up to limit products by descending similarity.
// limit is validated by callers.
func (u *SearchUseCase) Search(ctx context.Context, query string, limit int) ([]domain.ScoredProduct, error) {
	start := time.Now()

	vector, err := u.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("embed_error").Observe(time.Since(start).Seconds())
		return nil, asAdapterError(err)
	}

	storeCtx, cancel := u.withStoreTimeout(ctx)
	defer cancel()

	results, err := u.store.FindBySimilarity(storeCtx, vector, limit)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("store_error").Observe(time.Since(start).Seconds())
		return nil, asStoreError("findBySimilarity", err)
	}

	metrics.SearchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Debug().Int("results", len(results)).Int("limit", limit).Dur("took", time.Since(start)).Msg("Similarity search")
	return results, nil
}

// Categories lists the distinct product categories.
func (u *SearchUseCase) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := u.withStoreTimeout(ctx)
	defer cancel()

	categories, err := u.store.Categories(ctx)
	if err != nil {
		return nil, asStoreError("categories", err)
	}
	return categories, nil
}

// ByCategory lists the products of one category.
func (u *SearchUseCase) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, cancel := u.withStoreTimeout(ctx)
	defer cancel()

	products, err := u.store.FindByCategory(ctx, category)
	if err != nil {
		return nil, asStoreError("findByCategory", err)
	}
	return products, nil
}

// ByIDs looks products up by catalog id.
func (u *SearchUseCase) ByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	ctx, cancel := u.withStoreTimeout(ctx)
	defer cancel()

	products, err := u.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, asStoreError("findByIDs", err)
	}
	return products, nil
}

// Count returns the number of stored products.
func (u *SearchUseCase) Count(ctx context.Context) (int, error) {
	ctx, cancel := u.withStoreTimeout(ctx)
	defer cancel()

	n, err := u.store.Count(ctx)
	if err != nil {
		return 0, asStoreError("count", err)
	}
	return n, nil
}

func (u *SearchUseCase) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, u.storeTimeout)
}

func asAdapterError(err error) error {
	var adapterErr *domain.AdapterError
	if errors.As(err, &adapterErr) {
		return err
	}
	return domain.NewAdapterError("embedding", "embed", err)
}

func asStoreError(op string, err error) error {
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}
