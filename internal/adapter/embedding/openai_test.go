package embedding

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"routine/internal/domain"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e, err := NewOpenAIEmbedder(Config{APIKey: "test-key", BaseURL: srv.URL, Dimension: 3})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmbedBatch_RestoresOrder(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req embeddingRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		// respond out of order
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1,0]},{"index":0,"embedding":[1,0,0]}]}`))
	})

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not restored to input order: %v", vectors)
	}
}

func TestEmbedBatch_MissingElementFails(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0,0]}]}`))
	})

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for missing element")
	}
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %T", err)
	}
	if adapterErr.Retriable {
		t.Error("malformed response must not be retriable")
	}
}

func TestEmbedBatch_ServerErrorIsRetriable(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	})

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if !adapterErr.Retriable {
		t.Error("503 should be retriable")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestEmbed_Single(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5,0]}]}`))
	})

	v, err := e.Embed(context.Background(), "frizz")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 {
		t.Errorf("expected 3 dims, got %d", len(v))
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(Config{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	a, _ := e.Embed(context.Background(), "Argan Shampoo")
	b, _ := e.Embed(context.Background(), "argan shampoo")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected case-insensitive deterministic vectors")
		}
	}
	if err := domain.ValidateVector(a, 32); err != nil {
		t.Errorf("mock vector invalid: %v", err)
	}
	empty, _ := e.Embed(context.Background(), "")
	if err := domain.ValidateVector(empty, 32); err != nil {
		t.Errorf("empty text should still give a valid vector: %v", err)
	}
}

func TestMockEmbedder_OddDimensionIndexesInRange(t *testing.T) {
	e := NewMockEmbedder(7)
	text := "argan oil keratin repair mask sulfate free curl cream spf 50 mineral sunscreen niacinamide serum"

	v, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if err := domain.ValidateVector(v, 7); err != nil {
		t.Fatalf("invalid vector: %v", err)
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("expected unit vector, got squared norm %v", norm)
	}
}
