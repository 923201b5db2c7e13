// Package catalog reads products and sales channels from the Shopify GraphQL Admin API.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"routine/internal/domain"
)

const source = "catalog"

// Config configures the Shopify client. AccessToken is passed in explicitly.
type Config struct {
	ShopDomain  string
	APIVersion  string
	AccessToken string
	PageSize    int
	Timeout     time.Duration

	// Endpoint overrides the derived GraphQL URL (tests, proxies).
	Endpoint string
}

// ShopifyClient handles communication with the Shopify GraphQL Admin API.
type ShopifyClient struct {
	endpoint   string
	token      string
	pageSize   int
	timeout    time.Duration
	httpClient *http.Client
}

// Shopify response structures

type productsData struct {
	Products struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Node productNode `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

type productNode struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	ProductType   string   `json:"productType"`
	FeaturedImage *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	PriceRangeV2 *struct {
		MinVariantPrice struct {
			Amount string `json:"amount"`
		} `json:"minVariantPrice"`
	} `json:"priceRangeV2"`
}

type publicationsData struct {
	Publications struct {
		Edges []struct {
			Node struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"publications"`
}

const productsQuery = `query Products($first: Int!, $after: String, $query: String) {
  products(first: $first, after: $after, query: $query) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        title
        description
        tags
        productType
        featuredImage { url }
        priceRangeV2 { minVariantPrice { amount } }
      }
    }
  }
}`

const publicationsQuery = `query Publications { publications(first: 50) { edges { node { id name } } } }`

// NewShopifyClient creates a new Shopify Admin API client.
func NewShopifyClient(cfg Config) (*ShopifyClient, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("shopify access token is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.ShopDomain == "" {
			return nil, fmt.Errorf("shopify shop domain is required")
		}
		version := cfg.APIVersion
		if version == "" {
			version = "2024-10"
		}
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", strings.TrimSuffix(cfg.ShopDomain, "/"), version)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ShopifyClient{
		endpoint:   endpoint,
		token:      cfg.AccessToken,
		pageSize:   pageSize,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// FetchPage fetches one page of products after req.Cursor.
func (c *ShopifyClient) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.CatalogPage, error) {
	vars := map[string]any{"first": c.pageSize}
	if req.Cursor != "" {
		vars["after"] = req.Cursor
	}
	if q := searchQuery(req); q != "" {
		vars["query"] = q
	}

	var data productsData
	if err := c.doGraphQL(ctx, "fetchPage", productsQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &domain.CatalogPage{
		Items:       make([]domain.Product, 0, len(data.Products.Edges)),
		NextCursor:  data.Products.PageInfo.EndCursor,
		HasNextPage: data.Products.PageInfo.HasNextPage,
	}
	for _, edge := range data.Products.Edges {
		if edge.Node.ID == "" {
			continue
		}
		page.Items = append(page.Items, toProduct(edge.Node))
	}
	return page, nil
}

// ListChannels lists the shop's publications (sales channels).
func (c *ShopifyClient) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var data publicationsData
	if err := c.doGraphQL(ctx, "listChannels", publicationsQuery, nil, &data); err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(data.Publications.Edges))
	for _, edge := range data.Publications.Edges {
		channels = append(channels, domain.Channel{ID: edge.Node.ID, Name: edge.Node.Name})
	}
	return channels, nil
}

// searchQuery builds the Shopify search syntax filter for status and channel.
func searchQuery(req domain.PageRequest) string {
	var parts []string
	if req.Status != "" {
		parts = append(parts, "status:"+strings.ToLower(req.Status))
	}
	if req.ChannelID != "" {
		parts = append(parts, "publication_ids:"+legacyID(req.ChannelID))
	}
	return strings.Join(parts, " AND ")
}

// legacyID strips the gid://shopify/Type/ prefix from a global id.
func legacyID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

func toProduct(n productNode) domain.Product {
	p := domain.Product{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Tags:        n.Tags,
		Category:    strings.TrimSpace(n.ProductType),
	}
	if n.FeaturedImage != nil {
		p.ImageURL = n.FeaturedImage.URL
	}
	if n.PriceRangeV2 != nil {
		p.Price = n.PriceRangeV2.MinVariantPrice.Amount
	}
	return p
}
