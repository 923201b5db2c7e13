package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"routine/internal/adapter/embedding"
	"routine/internal/adapter/memstore"
	"routine/internal/domain"
)

// fakeCatalog serves items in pages of pageSize. The request numbered failPage
// (1-based) fails permanently; requests listed in throttled fail as retriable.
type fakeCatalog struct {
	items     []domain.Product
	pageSize  int
	failPage  int
	throttled map[int]bool
	requests  []domain.PageRequest
}

func (c *fakeCatalog) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.CatalogPage, error) {
	c.requests = append(c.requests, req)
	page := len(c.requests)
	if page == c.failPage {
		return nil, domain.NewAdapterError("catalog", "fetchPage", errors.New("connection reset"))
	}
	if c.throttled[page] {
		return nil, &domain.AdapterError{Source: "catalog", Op: "fetchPage", Retriable: true, Err: errors.New("Throttled")}
	}

	start := 0
	if req.Cursor != "" {
		fmt.Sscanf(req.Cursor, "offset-%d", &start)
	}
	end := min(start+c.pageSize, len(c.items))
	resp := &domain.CatalogPage{Items: c.items[start:end]}
	if end < len(c.items) {
		resp.HasNextPage = true
		resp.NextCursor = fmt.Sprintf("offset-%d", end)
	}
	return resp, nil
}

func (c *fakeCatalog) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	return []domain.Channel{{ID: "gid://shopify/Publication/1", Name: "Online Store"}}, nil
}

func makeProducts(n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{
			ID:    fmt.Sprintf("p%03d", i),
			Title: fmt.Sprintf("Product %d", i),
			Tags:  []string{"shampoo"},
		}
	}
	return products
}

// scriptedEmbedder delegates to a MockEmbedder and fails calls chosen by failOn.
type scriptedEmbedder struct {
	*embedding.MockEmbedder
	mu     sync.Mutex
	calls  int
	failOn func(call int, texts []string) error
	mangle func(vectors [][]float32)
}

func newScriptedEmbedder() *scriptedEmbedder {
	return &scriptedEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}
}

func (e *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if e.failOn != nil {
		if err := e.failOn(call, texts); err != nil {
			return nil, err
		}
	}
	vectors, err := e.MockEmbedder.EmbedBatch(ctx, texts)
	if err == nil && e.mangle != nil {
		e.mangle(vectors)
	}
	return vectors, err
}

func (e *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// failingStore rejects upserts for the listed ids and can fail searches.
type failingStore struct {
	*memstore.MemoryStore
	rejectIDs map[string]bool
	searchErr error
}

func (s *failingStore) Upsert(ctx context.Context, p domain.Product, embedding []float32) error {
	if s.rejectIDs[p.ID] {
		return &domain.StoreError{Op: "upsert", Err: errors.New("constraint violation")}
	}
	return s.MemoryStore.Upsert(ctx, p, embedding)
}

func (s *failingStore) FindBySimilarity(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredProduct, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.MemoryStore.FindBySimilarity(ctx, embedding, limit)
}

func testIngestOptions() IngestOptions {
	return IngestOptions{BatchSize: 20, MaxItems: 8000}
}
