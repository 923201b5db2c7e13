// Package pgstore stores products and embeddings in Postgres with the pgvector extension.
package pgstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"routine/internal/domain"
)

// Config configures the pgvector product store.
type Config struct {
	DSN       string
	Table     string // default "products"
	Dimension int
	Timeout   time.Duration
}

type Store struct {
	pool    *pgxpool.Pool
	table   string
	dim     int
	timeout time.Duration
}

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New connects to Postgres and makes sure the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be > 0")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}

	s := &Store{pool: pool, table: table, dim: cfg.Dimension, timeout: timeout}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    tags        TEXT[] NOT NULL DEFAULT '{}',
    category    TEXT NOT NULL DEFAULT '',
    image_url   TEXT NOT NULL DEFAULT '',
    price       TEXT NOT NULL DEFAULT '',
    embedding   VECTOR(%d) NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_category_idx ON %s (lower(category))`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &domain.StoreError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// Upsert inserts or updates the product row. Empty category, image and price
// keep the stored values.
func (s *Store) Upsert(ctx context.Context, product domain.Product, embedding []float32) error {
	if product.ID == "" {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("product id is required")}
	}
	if len(embedding) != s.dim {
		return &domain.StoreError{Op: "upsert", Err: fmt.Errorf("embedding dimension mismatch for id=%s: got %d, want %d", product.ID, len(embedding), s.dim)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
INSERT INTO %[1]s (id, title, description, tags, category, image_url, price, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, now())
ON CONFLICT (id) DO UPDATE
SET title       = EXCLUDED.title,
    description = EXCLUDED.description,
    tags        = EXCLUDED.tags,
    category    = COALESCE(NULLIF(EXCLUDED.category, ''), %[1]s.category),
    image_url   = COALESCE(NULLIF(EXCLUDED.image_url, ''), %[1]s.image_url),
    price       = COALESCE(NULLIF(EXCLUDED.price, ''), %[1]s.price),
    embedding   = EXCLUDED.embedding,
    updated_at  = now()`, s.table)

	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx, query,
		product.ID, product.Title, product.Description, tags,
		product.Category, product.ImageURL, product.Price, vectorLiteral(embedding))
	if err != nil {
		return &domain.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// FindBySimilarity orders rows by cosine distance to embedding.
func (s *Store) FindBySimilarity(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredProduct, error) {
	if len(embedding) != s.dim {
		return nil, &domain.StoreError{Op: "findBySimilarity", Err: fmt.Errorf("query vector dimension mismatch: got %d, want %d", len(embedding), s.dim)}
	}
	if limit <= 0 {
		return []domain.ScoredProduct{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
SELECT id, title, description, tags, category, image_url, price, embedding <=> $1::vector AS distance
FROM %s
ORDER BY distance ASC, id ASC
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, &domain.StoreError{Op: "findBySimilarity", Err: err}
	}
	defer rows.Close()

	results := []domain.ScoredProduct{}
	for rows.Next() {
		var (
			p        domain.Product
			distance float64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Tags, &p.Category, &p.ImageURL, &p.Price, &distance); err != nil {
			return nil, &domain.StoreError{Op: "findBySimilarity", Err: fmt.Errorf("scan row: %w", err)}
		}
		results = append(results, domain.ScoredProduct{Product: p, Similarity: distanceToSimilarity(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "findBySimilarity", Err: err}
	}
	return results, nil
}

func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, title, description, tags, category, image_url, price FROM %s WHERE id = ANY($1)`, s.table)
	found, err := s.queryProducts(ctx, "findByIDs", query, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	products := make([]domain.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
			delete(byID, id)
		}
	}
	return products, nil
}

func (s *Store) FindByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, title, description, tags, category, image_url, price FROM %s WHERE lower(category) = lower($1) ORDER BY id`, s.table)
	return s.queryProducts(ctx, "findByCategory", query, category)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT category FROM %s WHERE category <> '' ORDER BY category`, s.table))
	if err != nil {
		return nil, &domain.StoreError{Op: "categories", Err: err}
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &domain.StoreError{Op: "categories", Err: err}
	}
	return categories, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) queryProducts(ctx context.Context, op, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Tags, &p.Category, &p.ImageURL, &p.Price); err != nil {
			return nil, &domain.StoreError{Op: op, Err: fmt.Errorf("scan row: %w", err)}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: op, Err: err}
	}
	return products, nil
}

// vectorLiteral renders v in pgvector text form: [0.1,0.2,...].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// distanceToSimilarity maps cosine distance in [0,2] to similarity in [-1,1].
func distanceToSimilarity(distance float64) float64 {
	score := 1.0 - distance
	if score < -1 {
		score = -1
	}
	if score > 1 {
		score = 1
	}
	return score
}
