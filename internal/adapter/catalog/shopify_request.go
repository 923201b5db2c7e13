package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"routine/internal/domain"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// doGraphQL posts a query and decodes its data member into result.
func (c *ShopifyClient) doGraphQL(ctx context.Context, op, query string, vars map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAdapterError(source, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewAdapterError(source, op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewStatusError(source, op, resp.StatusCode, string(body))
	}

	var gql graphQLResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return domain.MalformedResponse(source, op, "decode response: %v", err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		throttled := false
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
			if e.Extensions.Code == "THROTTLED" {
				throttled = true
			}
		}
		return &domain.AdapterError{
			Source:    source,
			Op:        op,
			Retriable: throttled,
			Err:       fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; ")),
		}
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return domain.MalformedResponse(source, op, "response has no data")
	}
	if err := json.Unmarshal(gql.Data, result); err != nil {
		return domain.MalformedResponse(source, op, "decode data: %v", err)
	}
	return nil
}
