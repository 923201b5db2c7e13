package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"routine/internal/domain"
)

const source = "generation"

// Config configures an OpenAI-compatible chat completions client.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Provider base URLs
var providers = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      domain.Message `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage domain.TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIGenerator creates a chat client for the named provider or a custom BaseURL.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		p, ok := providers[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s (set base_url for custom endpoints)", cfg.Provider)
		}
		baseURL = p
	}
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, fmt.Errorf("generation API key is required for provider %s", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Complete sends a chat completion request. A reply with blank text is reported as
// a malformed response.
func (g *OpenAIGenerator) Complete(ctx context.Context, messages []domain.Message, opts domain.GenerationOptions) (*domain.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	jsonData, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.NewAdapterError(source, "complete", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewAdapterError(source, "complete", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewStatusError(source, "complete", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, domain.MalformedResponse(source, "complete", "failed to parse response: %v", err)
	}
	if chatResp.Error != nil {
		return nil, domain.MalformedResponse(source, "complete", "API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, domain.MalformedResponse(source, "complete", "no choices in response")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return nil, domain.MalformedResponse(source, "complete", "empty completion")
	}

	return &domain.Completion{
		Text:         text,
		FinishReason: chatResp.Choices[0].FinishReason,
		Usage:        chatResp.Usage,
	}, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}
