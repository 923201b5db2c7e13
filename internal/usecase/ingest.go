package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/metrics"
	"routine/internal/port"
)

// IngestOptions tunes a catalog sync.
type IngestOptions struct {
	BatchSize     int
	MaxItems      int
	MaxInputChars int
	Delay         time.Duration // between pages and between batches
	RetryBackoff  time.Duration // before the single batch retry
	ChannelID     string
	Status        string
}

// DefaultIngestOptions returns the production sync settings.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		BatchSize:     20,
		MaxItems:      8000,
		MaxInputChars: domain.DefaultMaxInputChars,
		Delay:         500 * time.Millisecond,
		RetryBackoff:  2 * time.Second,
	}
}

// IngestUseCase syncs the catalog into the product store.
type IngestUseCase struct {
	source   port.CatalogSource
	embedder port.Embedder
	store    port.ProductStore
	opts     IngestOptions

	running    atomic.Bool
	onProgress func(done, total int)
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	source port.CatalogSource,
	embedder port.Embedder,
	store port.ProductStore,
	opts IngestOptions,
) *IngestUseCase {
	def := DefaultIngestOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = def.MaxItems
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = def.MaxInputChars
	}
	return &IngestUseCase{
		source:   source,
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// OnProgress registers a callback invoked after every batch with the number
// of products handled so far and the total fetched.
func (u *IngestUseCase) OnProgress(fn func(done, total int)) {
	u.onProgress = fn
}

// Running reports whether a sync is in progress.
func (u *IngestUseCase) Running() bool {
	return u.running.Load()
}

// Ingest fetches the catalog, embeds it in batches and upserts every product.
// Per-product failures are collected in the result; only a failure to read the
// first catalog page, cancellation, or a concurrent run return an error.
func (u *IngestUseCase) Ingest(ctx context.Context) (*domain.IngestResult, error) {
	run, err := u.TryStart()
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

// TryStart claims the sync slot or returns ErrSyncInProgress. The returned
// function runs the sync and frees the slot; call it exactly once.
func (u *IngestUseCase) TryStart() (func(ctx context.Context) (*domain.IngestResult, error), error) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, domain.ErrSyncInProgress
	}
	return func(ctx context.Context) (*domain.IngestResult, error) {
		defer u.running.Store(false)
		return u.run(ctx)
	}, nil
}

func (u *IngestUseCase) run(ctx context.Context) (*domain.IngestResult, error) {
	start := time.Now()
	result := &domain.IngestResult{RunID: logging.GenerateRunID(), Errors: []string{}}
	ctx = logging.ContextWithRunID(ctx, result.RunID)
	log := logging.Ctx(ctx)

	limit := rate.Inf
	if u.opts.Delay > 0 {
		limit = rate.Every(u.opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	log.Info().Str("channel", u.opts.ChannelID).Str("status", u.opts.Status).Msg("Catalog sync started")

	products, err := u.fetchAll(ctx, limiter, result)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Catalog sync failed")
		return nil, err
	}

	result.Attempted = len(products)
	if len(products) == 0 {
		result.NothingToDo = true
		result.Duration = time.Since(start)
		metrics.SyncRuns.WithLabelValues("empty").Inc()
		log.Info().Msg("Catalog is empty, nothing to sync")
		return result, nil
	}

	log.Info().Int("products", len(products)).Int("batch_size", u.opts.BatchSize).Msg("Catalog fetched")

	for begin := 0; begin < len(products); begin += u.opts.BatchSize {
		if begin > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return u.finish(ctx, result, start, err)
			}
		}
		end := min(begin+u.opts.BatchSize, len(products))

		if err := u.processBatch(ctx, products[begin:end], result); err != nil {
			return u.finish(ctx, result, start, err)
		}
		if u.onProgress != nil {
			u.onProgress(end, len(products))
		}
	}

	return u.finish(ctx, result, start, nil)
}

func (u *IngestUseCase) finish(ctx context.Context, result *domain.IngestResult, start time.Time, err error) (*domain.IngestResult, error) {
	result.Duration = time.Since(start)
	metrics.SyncDuration.Observe(result.Duration.Seconds())

	log := logging.Ctx(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Int("processed", result.Processed).Msg("Catalog sync interrupted")
		return result, err
	}

	metrics.SyncRuns.WithLabelValues("completed").Inc()
	log.Info().
		Int("processed", result.Processed).
		Int("attempted", result.Attempted).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Catalog sync completed")
	return result, nil
}

// fetchAll follows catalog pagination up to MaxItems. A failure on a later
// page, after fetchPage's retry, ends pagination and is recorded in the ledger.
func (u *IngestUseCase) fetchAll(ctx context.Context, limiter *rate.Limiter, result *domain.IngestResult) ([]domain.Product, error) {
	var (
		products []domain.Product
		cursor   string
	)

	for page := 0; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := u.fetchPage(ctx, page, domain.PageRequest{
			Cursor:    cursor,
			ChannelID: u.opts.ChannelID,
			Status:    u.opts.Status,
		})
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("failed to fetch catalog: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("catalog page %d: %v", page+1, err))
			logging.Ctx(ctx).Warn().Err(err).Int("page", page+1).Msg("Catalog pagination stopped early")
			break
		}

		products = append(products, resp.Items...)
		if len(products) >= u.opts.MaxItems {
			products = products[:u.opts.MaxItems]
			logging.Ctx(ctx).Warn().Int("max_items", u.opts.MaxItems).Msg("Catalog item ceiling reached")
			break
		}
		if !resp.HasNextPage || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	return products, nil
}

// fetchPage retries a retriable catalog failure, such as throttling, once
// after RetryBackoff.
func (u *IngestUseCase) fetchPage(ctx context.Context, page int, req domain.PageRequest) (*domain.CatalogPage, error) {
	resp, err := u.source.FetchPage(ctx, req)
	if err == nil || ctx.Err() != nil {
		return resp, err
	}

	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) || !adapterErr.Retriable {
		return nil, err
	}

	logging.Ctx(ctx).Warn().Err(err).Int("page", page+1).Dur("backoff", u.opts.RetryBackoff).Msg("Catalog page failed, retrying once")
	if err := sleep(ctx, u.opts.RetryBackoff); err != nil {
		return nil, err
	}
	return u.source.FetchPage(ctx, req)
}

// processBatch embeds one batch, retrying the call once, then upserts each
// product. Only cancellation is returned as an error.
func (u *IngestUseCase) processBatch(ctx context.Context, batch []domain.Product, result *domain.IngestResult) error {
	log := logging.Ctx(ctx)

	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = domain.EmbeddingText(p, u.opts.MaxInputChars)
	}

	vectors, err := u.embedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("first_id", batch[0].ID).Dur("backoff", u.opts.RetryBackoff).Msg("Embedding batch failed, retrying once")
		metrics.SyncBatches.WithLabelValues("retried").Inc()

		if err := sleep(ctx, u.opts.RetryBackoff); err != nil {
			return err
		}
		vectors, err = u.embedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("first_id", batch[0].ID).Int("size", len(batch)).Msg("Embedding batch abandoned")
			metrics.SyncBatches.WithLabelValues("abandoned").Inc()
			metrics.SyncProducts.WithLabelValues("failed").Add(float64(len(batch)))
			for _, p := range batch {
				result.Errors = append(result.Errors, fmt.Sprintf("product %s: embedding failed: %v", p.ID, err))
			}
			return nil
		}
	}
	metrics.SyncBatches.WithLabelValues("ok").Inc()

	dimension := u.embedder.Dimension()
	for i, p := range batch {
		if err := domain.ValidateVector(vectors[i], dimension); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("product %s: invalid embedding: %v", p.ID, err))
			metrics.SyncProducts.WithLabelValues("failed").Inc()
			continue
		}
		if err := u.store.Upsert(ctx, p, vectors[i]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Errors = append(result.Errors, fmt.Sprintf("product %s: upsert failed: %v", p.ID, err))
			metrics.SyncProducts.WithLabelValues("failed").Inc()
			continue
		}
		result.Processed++
		metrics.SyncProducts.WithLabelValues("upserted").Inc()
	}

	log.Debug().Int("size", len(batch)).Int("processed", result.Processed).Msg("Batch done")
	return nil
}

// embedBatch treats a response with the wrong number of vectors as a failed call.
func (u *IngestUseCase) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := u.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, domain.MalformedResponse("embedding", "embed", "expected %d vectors, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
