// Package store persists products and their embeddings in a bbolt file.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"routine/internal/domain"
)

var (
	bucketProducts = []byte("products")
	bucketVectors  = []byte("vectors")
	bucketMeta     = []byte("meta")
)

// BoltStore implements port.ProductStore on bbolt. Products and vectors are
// mirrored in memory; similarity search is brute force over the mirror.
type BoltStore struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	entries map[string]Candidate
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

// NewBoltStore opens (or creates) the database at path. dimension > 0 rejects
// embeddings of any other length.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketProducts, bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{
		db:        db,
		dimension: dimension,
		entries:   make(map[string]Candidate),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return s, nil
}

// load mirrors every product that has a vector into memory.
func (s *BoltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		return tx.Bucket(bucketProducts).ForEach(func(k, v []byte) error {
			var p domain.Product
			if err := json.Unmarshal(v, &p); err != nil {
				return nil // skip corrupted entries
			}
			var sv storedVector
			if data := vectors.Get(k); data != nil {
				if err := json.Unmarshal(data, &sv); err != nil {
					return nil
				}
			}
			if len(sv.Vector) == 0 {
				return nil
			}
			s.entries[string(k)] = Candidate{Product: p, Vector: sv.Vector}
			return nil
		})
	})
}

// Upsert inserts or updates the product keyed by its ID. Title, description
// and tags are replaced; empty category, image and price keep stored values.
func (s *BoltStore) Upsert(ctx context.Context, product domain.Product, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "upsert", Err: err}
	}
	if product.ID == "" {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("product id is required")}
	}
	if len(embedding) == 0 || (s.dimension > 0 && len(embedding) != s.dimension) {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(embedding))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var merged domain.Product
	err := s.db.Update(func(tx *bbolt.Tx) error {
		products := tx.Bucket(bucketProducts)
		key := []byte(product.ID)

		merged = product
		if existing := products.Get(key); existing != nil {
			var prev domain.Product
			if err := json.Unmarshal(existing, &prev); err == nil {
				merged = domain.MergeProduct(prev, product)
			}
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if err := products.Put(key, data); err != nil {
			return err
		}

		vec, err := json.Marshal(storedVector{Vector: embedding})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVectors).Put(key, vec)
	})
	if err != nil {
		return &domain.StoreError{Op: "upsert", Err: err}
	}

	vector := make([]float32, len(embedding))
	copy(vector, embedding)
	s.entries[product.ID] = Candidate{Product: merged, Vector: vector}
	return nil
}

// FindBySimilarity returns up to limit products closest to embedding.
func (s *BoltStore) FindBySimilarity(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "findBySimilarity", Err: err}
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, &domain.StoreError{Op: "findBySimilarity", Err: fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(embedding))}
	}

	s.mu.RLock()
	candidates := make([]Candidate, 0, len(s.entries))
	for _, c := range s.entries {
		candidates = append(candidates, c)
	}
	s.mu.RUnlock()

	return Rank(embedding, candidates, limit), nil
}

// FindByIDs returns the stored products among ids, in the order given.
func (s *BoltStore) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "findByIDs", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := s.entries[id]; ok {
			products = append(products, c.Product)
		}
	}
	return products, nil
}

// FindByCategory returns products whose category equals category, ignoring case.
func (s *BoltStore) FindByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "findByCategory", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []domain.Product
	for _, c := range s.entries {
		if strings.EqualFold(c.Product.Category, category) {
			products = append(products, c.Product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// Categories returns the distinct non-empty categories, sorted.
func (s *BoltStore) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "categories", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, c := range s.entries {
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

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
