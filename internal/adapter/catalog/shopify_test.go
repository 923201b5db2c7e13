package catalog

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *ShopifyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewShopifyClient(Config{AccessToken: "shpat_test", Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFetchPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("unexpected token header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req.Variables["after"] != "cursor-1" {
			t.Errorf("expected cursor forwarded, got %v", req.Variables["after"])
		}
		q, _ := req.Variables["query"].(string)
		if q != "status:active AND publication_ids:42" {
			t.Errorf("unexpected search query %q", q)
		}
		w.Write([]byte(`{"data":{"products":{
			"pageInfo":{"hasNextPage":true,"endCursor":"cursor-2"},
			"edges":[
				{"node":{"id":"gid://shopify/Product/1","title":"Argan Shampoo","description":"Gentle","tags":["shampoo"],"productType":"Shampoo",
				 "featuredImage":{"url":"https://cdn/img.png"},"priceRangeV2":{"minVariantPrice":{"amount":"12.50"}}}},
				{"node":{"id":"gid://shopify/Product/2","title":"Hair Oil","description":"","tags":[],"productType":"","featuredImage":null,"priceRangeV2":null}}
			]}}}`))
	})

	page, err := c.FetchPage(context.Background(), domain.PageRequest{
		Cursor:    "cursor-1",
		ChannelID: "gid://shopify/Publication/42",
		Status:    "ACTIVE",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasNextPage || page.NextCursor != "cursor-2" {
		t.Errorf("unexpected pagination: %+v", page)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	first := page.Items[0]
	if first.Category != "Shampoo" || first.ImageURL != "https://cdn/img.png" || first.Price != "12.50" {
		t.Errorf("unexpected product mapping: %+v", first)
	}
	if page.Items[1].Price != "" || page.Items[1].ImageURL != "" {
		t.Errorf("expected empty optionals, got %+v", page.Items[1])
	}
}

func TestFetchPage_GraphQLErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`))
	})

	_, err := c.FetchPage(context.Background(), domain.PageRequest{})
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if !adapterErr.Retriable {
		t.Error("throttled response should be retriable")
	}
	if !strings.Contains(err.Error(), "Throttled") {
		t.Errorf("expected message in error, got %v", err)
	}
}

func TestListChannels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"publications":{"edges":[{"node":{"id":"gid://shopify/Publication/1","name":"Online Store"}}]}}}`))
	})

	channels, err := c.ListChannels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 1 || channels[0].Name != "Online Store" {
		t.Errorf("unexpected channels: %+v", channels)
	}
}

func TestFetchPage_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchPage(context.Background(), domain.PageRequest{})
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Retriable {
		t.Fatalf("expected non-retriable AdapterError, got %v", err)
	}
}

func TestSearchQuery(t *testing.T) {
	if q := searchQuery(domain.PageRequest{}); q != "" {
		t.Errorf("expected empty query, got %q", q)
	}
	if q := searchQuery(domain.PageRequest{Status: "draft"}); q != "status:draft" {
		t.Errorf("unexpected query %q", q)
	}
}

func TestNewShopifyClient_RequiresDomain(t *testing.T) {
	if _, err := NewShopifyClient(Config{AccessToken: "x"}); err == nil {
		t.Error("expected error without shop domain")
	}
}
