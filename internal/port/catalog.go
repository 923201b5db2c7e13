package port

import (
	"context"

	"routine/internal/domain"
)

// CatalogSource reads the upstream e-commerce catalog.
type CatalogSource interface {
	FetchPage(ctx context.Context, req domain.PageRequest) (*domain.CatalogPage, error)

	ListChannels(ctx context.Context) ([]domain.Channel, error)
}
