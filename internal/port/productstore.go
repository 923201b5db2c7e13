package port

import (
	"context"

	"routine/internal/domain"
)

// ProductStore persists products with their embeddings and answers similarity queries.
type ProductStore interface {
	// Upsert inserts or replaces the product keyed by its catalog id.
	// Empty category, image and price never overwrite previously stored values.
	Upsert(ctx context.Context, product domain.Product, embedding []float32) error

	// FindBySimilarity returns the limit nearest products, most similar first.
	FindBySimilarity(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredProduct, error)

	// FindByIDs returns the stored products among ids, in any order.
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)

	// FindByCategory matches category case-insensitively.
	FindByCategory(ctx context.Context, category string) ([]domain.Product, error)

	// Categories returns the distinct non-empty categories, sorted.
	Categories(ctx context.Context) ([]string, error)

	Count(ctx context.Context) (int, error)

	Close() error
}
