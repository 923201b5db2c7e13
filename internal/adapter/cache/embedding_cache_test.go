package cache

import (
	"context"
	"testing"
	"time"

	"routine/internal/adapter/embedding"
)

type countingEmbedder struct {
	*embedding.MockEmbedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.MockEmbedder.Embed(ctx, text)
}

func TestEmbedder_HitsSkipUpstream(t *testing.T) {
	next := &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(16)}
	c := NewEmbedder(next, 10, time.Minute)
	ctx := context.Background()

	first, err := c.Embed(ctx, "curl cream")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Embed(ctx, "curl cream")
	if err != nil {
		t.Fatal(err)
	}

	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("expected identical cached vector")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}

	// callers may mutate what they get back
	second[0] = 42
	third, _ := c.Embed(ctx, "curl cream")
	if third[0] == 42 {
		t.Error("cached vector was mutated through a returned slice")
	}
}

// fixedEmbedder returns a preset vector per exact text, like a real model
// that distinguishes case.
type fixedEmbedder struct {
	*embedding.MockEmbedder
	vectors map[string][]float32
	calls   int
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return append([]float32(nil), e.vectors[text]...), nil
}

func TestEmbedder_KeysOnExactText(t *testing.T) {
	next := &fixedEmbedder{
		MockEmbedder: embedding.NewMockEmbedder(4),
		vectors: map[string][]float32{
			"spf":        {0, 3, 0, 0},
			"SPF":        {3, 0, 0, 0},
			"curl cream": {0, 0, 1, 0},
			"Curl Cream": {0, 0, 0, 1},
		},
	}
	c := NewEmbedder(next, 10, time.Minute)
	ctx := context.Background()

	for _, text := range []string{"spf", "SPF", "curl cream", "Curl Cream"} {
		got, err := c.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		want := next.vectors[text]
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Embed(%q) = %v, want %v", text, got, want)
			}
		}
	}

	if next.calls != 4 {
		t.Errorf("expected every distinct text to reach upstream, got %d calls", next.calls)
	}
	if c.Size() != 4 {
		t.Errorf("expected 4 separate entries, got %d", c.Size())
	}
}

func TestEmbedder_Expiry(t *testing.T) {
	next := &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(16)}
	c := NewEmbedder(next, 10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Embed(context.Background(), "serum")
	now = now.Add(2 * time.Minute)
	c.Embed(context.Background(), "serum")

	if next.calls != 2 {
		t.Errorf("expected expired entry to be re-embedded, got %d calls", next.calls)
	}
}

func TestEmbedder_EvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(16)}
	c := NewEmbedder(next, 2, time.Minute)
	ctx := context.Background()

	c.Embed(ctx, "a")
	c.Embed(ctx, "b")
	c.Embed(ctx, "a") // a is now most recent
	c.Embed(ctx, "c") // evicts b

	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	calls := next.calls
	c.Embed(ctx, "a")
	if next.calls != calls {
		t.Error("expected a to still be cached")
	}
	c.Embed(ctx, "b")
	if next.calls != calls+1 {
		t.Error("expected b to have been evicted")
	}

	c.Invalidate()
	if c.Size() != 0 {
		t.Errorf("expected empty cache after Invalidate, got %d", c.Size())
	}
}
