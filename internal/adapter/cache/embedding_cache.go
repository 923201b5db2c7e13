// Package cache memoizes query embeddings so repeated searches skip the
// embedding service.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"routine/internal/port"
)

// Embedder wraps a port.Embedder with an LRU+TTL cache on Embed. EmbedBatch
// always goes to the underlying embedder; catalog text is embedded once per sync.
type Embedder struct {
	next port.Embedder

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits, misses int
}

type cacheEntry struct {
	vector    []float32
	timestamp time.Time
}

func NewEmbedder(next port.Embedder, maxSize int, ttl time.Duration) *Embedder {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Embedder{
		next:    next,
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// cacheKey is exact: texts that differ in any byte may embed differently.
func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

func (c *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(key, v)
	return append([]float32(nil), v...), nil
}

func (c *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

func (c *Embedder) Dimension() int {
	return c.next.Dimension()
}

func (c *Embedder) ModelName() string {
	return c.next.ModelName()
}

// Stats returns cache hits and misses since creation.
func (c *Embedder) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Embedder) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops every cached vector.
func (c *Embedder) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *Embedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return nil, false
	}

	c.moveToEnd(key)
	c.hits++
	return append([]float32(nil), entry.vector...), true
}

func (c *Embedder) put(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.moveToEnd(key)
	} else {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{vector: append([]float32(nil), v...), timestamp: c.now()}
}

func (c *Embedder) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *Embedder) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *Embedder) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
