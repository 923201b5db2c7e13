// Package memstore is an in-memory product store for tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"routine/internal/adapter/store"
	"routine/internal/domain"
)

type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]store.Candidate
	queries  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]store.Candidate),
	}
}

// Queries returns how many calls reached the backing map.
func (s *MemoryStore) Queries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries
}

func (s *MemoryStore) Upsert(ctx context.Context, product domain.Product, embedding []float32) error {
	if product.ID == "" {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("product id is required")}
	}
	if len(embedding) == 0 {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("empty embedding")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	merged := product
	if prev, ok := s.products[product.ID]; ok {
		merged = domain.MergeProduct(prev.Product, product)
	}
	vector := make([]float32, len(embedding))
	copy(vector, embedding)
	s.products[product.ID] = store.Candidate{Product: merged, Vector: vector}
	return nil
}

func (s *MemoryStore) FindBySimilarity(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredProduct, error) {
	s.mu.Lock()
	s.queries++
	candidates := make([]store.Candidate, 0, len(s.products))
	for _, c := range s.products {
		candidates = append(candidates, c)
	}
	s.mu.Unlock()

	return store.Rank(embedding, candidates, limit), nil
}

func (s *MemoryStore) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	products := make([]domain.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := s.products[id]; ok {
			products = append(products, c.Product)
		}
	}
	return products, nil
}

func (s *MemoryStore) FindByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	var products []domain.Product
	for _, c := range s.products {
		if strings.EqualFold(c.Product.Category, category) {
			products = append(products, c.Product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	set := make(map[string]struct{})
	for _, c := range s.products {
		if c.Product.Category != "" {
			set[c.Product.Category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	return len(s.products), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
