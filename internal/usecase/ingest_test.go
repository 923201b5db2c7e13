package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"routine/internal/adapter/memstore"
	"routine/internal/domain"
	"routine/internal/metrics"
)

func TestIngest_AllProducts(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(45), pageSize: 10}
	store := memstore.NewMemoryStore()
	uc := NewIngestUseCase(catalog, newScriptedEmbedder(), store, testIngestOptions())

	var progress []int
	uc.OnProgress(func(done, total int) { progress = append(progress, done) })

	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 45 || result.Attempted != 45 || len(result.Errors) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(catalog.requests) != 5 {
		t.Errorf("expected 5 page requests, got %d", len(catalog.requests))
	}
	if n, _ := store.Count(context.Background()); n != 45 {
		t.Errorf("expected 45 stored products, got %d", n)
	}
	if len(progress) != 3 || progress[2] != 45 {
		t.Errorf("unexpected progress callbacks: %v", progress)
	}
	if result.RunID == "" {
		t.Error("expected run id")
	}
}

func TestIngest_PartialSyncInvariant(t *testing.T) {
	products := makeProducts(45)
	failing := domain.EmbeddingText(products[20], 0)

	embedder := newScriptedEmbedder()
	embedder.failOn = func(call int, texts []string) error {
		if texts[0] == failing {
			return errors.New("embedding service unavailable")
		}
		return nil
	}

	uc := NewIngestUseCase(&fakeCatalog{items: products, pageSize: 250}, embedder, memstore.NewMemoryStore(), testIngestOptions())
	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not return an error, got %v", err)
	}

	if result.Processed != 45-20 {
		t.Errorf("expected processed=25, got %d", result.Processed)
	}
	if len(result.Errors) < 20 {
		t.Errorf("expected at least 20 errors, got %d", len(result.Errors))
	}
	// three batches plus one retry
	if embedder.calls != 4 {
		t.Errorf("expected 4 embedding calls, got %d", embedder.calls)
	}
}

func TestIngest_RetryOnce(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.failOn = func(call int, texts []string) error {
		if call == 1 {
			return domain.NewAdapterError("embedding", "embed", context.DeadlineExceeded)
		}
		return nil
	}

	opts := testIngestOptions()
	opts.RetryBackoff = time.Millisecond
	uc := NewIngestUseCase(&fakeCatalog{items: makeProducts(20), pageSize: 250}, embedder, memstore.NewMemoryStore(), opts)
	okBefore := testutil.ToFloat64(metrics.SyncBatches.WithLabelValues("ok"))

	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 20 || len(result.Errors) != 0 {
		t.Errorf("expected batch fully processed on retry, got %+v", result)
	}
	if embedder.calls != 2 {
		t.Errorf("expected 2 embedding calls, got %d", embedder.calls)
	}
	if got := testutil.ToFloat64(metrics.SyncBatches.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("expected the retried batch counted as ok once, got %v", got)
	}
}

func TestIngest_NothingToDo(t *testing.T) {
	uc := NewIngestUseCase(&fakeCatalog{pageSize: 250}, newScriptedEmbedder(), memstore.NewMemoryStore(), testIngestOptions())

	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.NothingToDo || result.Processed != 0 {
		t.Errorf("expected nothing-to-do result, got %+v", result)
	}
}

func TestIngest_InvalidVectorAndUpsertFailure(t *testing.T) {
	products := makeProducts(5)

	embedder := newScriptedEmbedder()
	embedder.mangle = func(vectors [][]float32) {
		vectors[1] = nil
		vectors[2] = []float32{float32(math.NaN()), 0, 0, 0, 0, 0, 0, 0}
	}
	store := &failingStore{MemoryStore: memstore.NewMemoryStore(), rejectIDs: map[string]bool{"p003": true}}

	uc := NewIngestUseCase(&fakeCatalog{items: products, pageSize: 250}, embedder, store, testIngestOptions())
	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Processed != 2 || len(result.Errors) != 3 {
		t.Fatalf("expected 2 processed and 3 errors, got %+v", result)
	}
	for _, id := range []string{"p001", "p002", "p003"} {
		found := false
		for _, e := range result.Errors {
			if strings.Contains(e, id) {
				found = true
			}
		}
		if !found {
			t.Errorf("expected ledger entry for %s: %v", id, result.Errors)
		}
	}
}

func TestIngest_FirstPageFailure(t *testing.T) {
	uc := NewIngestUseCase(&fakeCatalog{items: makeProducts(3), pageSize: 250, failPage: 1}, newScriptedEmbedder(), memstore.NewMemoryStore(), testIngestOptions())

	_, err := uc.Ingest(context.Background())
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
}

func TestIngest_LaterPageFailureKeepsFetched(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(30), pageSize: 10, failPage: 3}
	uc := NewIngestUseCase(catalog, newScriptedEmbedder(), memstore.NewMemoryStore(), testIngestOptions())

	result, err := uc.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 20 || len(result.Errors) != 1 {
		t.Errorf("expected 20 processed and one page error, got %+v", result)
	}
	if len(catalog.requests) != 3 {
		t.Errorf("expected no retry for a non-retriable page error, got %d requests", len(catalog.requests))
	}
}

func TestIngest_ThrottledPageIsRetried(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(30), pageSize: 10, throttled: map[int]bool{2: true}}
	opts := testIngestOptions()
	opts.RetryBackoff = time.Millisecond

	result, err := NewIngestUseCase(catalog, newScriptedEmbedder(), memstore.NewMemoryStore(), opts).Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Attempted != 30 || result.Processed != 30 || len(result.Errors) != 0 {
		t.Errorf("expected the whole catalog after one throttled page, got %+v", result)
	}
	if len(catalog.requests) != 4 {
		t.Fatalf("expected 4 page requests, got %d", len(catalog.requests))
	}
	if catalog.requests[2].Cursor != catalog.requests[1].Cursor {
		t.Errorf("expected the retry to reuse cursor %q, got %q", catalog.requests[1].Cursor, catalog.requests[2].Cursor)
	}
}

func TestIngest_ThrottledTwiceStopsPagination(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(30), pageSize: 10, throttled: map[int]bool{2: true, 3: true}}
	opts := testIngestOptions()
	opts.RetryBackoff = time.Millisecond

	result, err := NewIngestUseCase(catalog, newScriptedEmbedder(), memstore.NewMemoryStore(), opts).Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 10 || len(result.Errors) != 1 {
		t.Errorf("expected 10 processed and one page error, got %+v", result)
	}
	if len(catalog.requests) != 3 {
		t.Errorf("expected a single retry, got %d requests", len(catalog.requests))
	}
}

func TestIngest_TryStartHoldsSlot(t *testing.T) {
	uc := NewIngestUseCase(&fakeCatalog{items: makeProducts(3), pageSize: 250}, newScriptedEmbedder(), memstore.NewMemoryStore(), testIngestOptions())

	run, err := uc.TryStart()
	if err != nil {
		t.Fatal(err)
	}
	if !uc.Running() {
		t.Error("expected slot held before run is called")
	}
	if _, err := uc.TryStart(); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}

	result, err := run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", result.Processed)
	}
	if uc.Running() {
		t.Error("expected slot released after run")
	}
}

func TestIngest_MaxItemsCeiling(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(50), pageSize: 10}
	opts := testIngestOptions()
	opts.MaxItems = 25

	result, err := NewIngestUseCase(catalog, newScriptedEmbedder(), memstore.NewMemoryStore(), opts).Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Attempted != 25 {
		t.Errorf("expected 25 attempted, got %d", result.Attempted)
	}
	if len(catalog.requests) != 3 {
		t.Errorf("expected pagination to stop at the ceiling, got %d requests", len(catalog.requests))
	}
}

func TestIngest_ForwardsChannelAndStatus(t *testing.T) {
	catalog := &fakeCatalog{items: makeProducts(1), pageSize: 10}
	opts := testIngestOptions()
	opts.ChannelID = "gid://shopify/Publication/7"
	opts.Status = "active"

	if _, err := NewIngestUseCase(catalog, newScriptedEmbedder(), memstore.NewMemoryStore(), opts).Ingest(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := catalog.requests[0]
	if req.ChannelID != opts.ChannelID || req.Status != "active" {
		t.Errorf("filters not forwarded: %+v", req)
	}
}

func TestIngest_RejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	embedder := newScriptedEmbedder()
	embedder.failOn = func(call int, texts []string) error {
		if call == 1 {
			close(started)
			<-release
		}
		return nil
	}
	uc := NewIngestUseCase(&fakeCatalog{items: makeProducts(3), pageSize: 250}, embedder, memstore.NewMemoryStore(), testIngestOptions())

	done := make(chan error, 1)
	go func() {
		_, err := uc.Ingest(context.Background())
		done <- err
	}()

	<-started
	if _, err := uc.Ingest(context.Background()); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if uc.Running() {
		t.Error("expected sync to be finished")
	}
}

func TestIngest_CanceledDuringBackoff(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.failOn = func(call int, texts []string) error {
		return errors.New("down")
	}
	opts := testIngestOptions()
	opts.RetryBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := NewIngestUseCase(&fakeCatalog{items: makeProducts(3), pageSize: 250}, embedder, memstore.NewMemoryStore(), opts).Ingest(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if result == nil || result.Processed != 0 {
		t.Errorf("expected partial result, got %+v", result)
	}
}
