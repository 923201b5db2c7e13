package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"routine/internal/domain"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewOpenAIGenerator(Config{Provider: "openai", APIKey: "k", Model: "gpt-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestComplete(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req.MaxTokens != 150 || req.Temperature != 0.5 {
			t.Errorf("options not forwarded: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Lather twice.  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	})

	c, err := g.Complete(context.Background(), []domain.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, domain.GenerationOptions{MaxTokens: 150, Temperature: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "Lather twice." {
		t.Errorf("expected trimmed text, got %q", c.Text)
	}
	if c.FinishReason != "stop" || c.Usage.TotalTokens != 13 {
		t.Errorf("unexpected completion metadata: %+v", c)
	}
}

func TestComplete_BlankTextIsFailure(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
	})

	_, err := g.Complete(context.Background(), nil, domain.GenerationOptions{})
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
}

func TestNewOpenAIGenerator_UnknownProvider(t *testing.T) {
	if _, err := NewOpenAIGenerator(Config{Provider: "nope", APIKey: "k", Model: "m"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
