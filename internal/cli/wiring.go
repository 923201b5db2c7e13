package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"routine/config"
	"routine/internal/adapter/breaker"
	"routine/internal/adapter/cache"
	"routine/internal/adapter/catalog"
	"routine/internal/adapter/embedding"
	"routine/internal/adapter/llm"
	"routine/internal/adapter/pgstore"
	"routine/internal/adapter/store"
	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/port"
	"routine/internal/strategy"
	"routine/internal/usecase"
)

// services is the wired application graph for one command invocation.
type services struct {
	catalog   port.CatalogSource
	embedder  port.Embedder
	generator port.TextGenerator
	store     port.ProductStore
	search    *usecase.SearchUseCase
	ingest    *usecase.IngestUseCase
	recommend *usecase.RecommendUseCase
}

// openServices builds the adapters named in cfg. The catalog client is only
// created when withCatalog is set, so read-only commands need no catalog token.
func openServices(ctx context.Context, cfg *config.Config, withCatalog bool) (*services, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	st, err := newStore(ctx, cfg, embedder.Dimension())
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &services{embedder: embedder, generator: generator, store: st}
	if withCatalog {
		if s.catalog, err = newCatalog(cfg); err != nil {
			st.Close()
			return nil, err
		}
		opts := usecase.IngestOptions{
			BatchSize:     cfg.Ingest.BatchSize,
			MaxItems:      cfg.Ingest.MaxItems,
			MaxInputChars: cfg.Ingest.MaxInputChars,
			Delay:         cfg.Ingest.Delay,
			RetryBackoff:  cfg.Ingest.RetryBackoff,
			ChannelID:     cfg.Catalog.ChannelID,
			Status:        cfg.Catalog.StatusFilter,
		}
		s.ingest = usecase.NewIngestUseCase(s.catalog, embedder, st, opts)
	}

	queryEmbedder := embedder
	if cfg.Search.CacheSize > 0 {
		queryEmbedder = cache.NewEmbedder(embedder, cfg.Search.CacheSize, cfg.Search.CacheTTL)
	}
	s.search = usecase.NewSearchUseCase(queryEmbedder, st, cfg.Store.Timeout)
	engine := strategy.NewEngine(generator, domain.GenerationOptions{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	})
	s.recommend = usecase.NewRecommendUseCase(s.search, strategy.DefaultRegistry(), engine)

	return s, nil
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close product store")
	}
}

func newCatalog(cfg *config.Config) (port.CatalogSource, error) {
	switch cfg.Catalog.Provider {
	case "shopify", "":
		return catalog.NewShopifyClient(catalog.Config{
			ShopDomain:  cfg.Catalog.ShopDomain,
			APIVersion:  cfg.Catalog.APIVersion,
			AccessToken: os.Getenv(cfg.Catalog.TokenEnv),
			PageSize:    cfg.Catalog.PageSize,
			Timeout:     cfg.Catalog.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported catalog provider: %s", cfg.Catalog.Provider)
	}
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := embedding.Config{
		APIKey:    os.Getenv(cfg.Embedding.APIKeyEnv),
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	}

	var (
		embedder port.Embedder
		err      error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(ec)
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(ec)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.Embedding.Breaker {
		embedder = breaker.NewEmbedder(embedder, breaker.DefaultSettings())
	}
	return embedder, nil
}

// newGenerator returns nil when generation is disabled; every step then uses
// the fallback description.
func newGenerator(cfg *config.Config) (port.TextGenerator, error) {
	provider := strings.ToLower(cfg.Generation.Provider)
	if provider == "" || provider == "none" {
		return nil, nil
	}

	gen, err := llm.NewOpenAIGenerator(llm.Config{
		Provider: provider,
		APIKey:   os.Getenv(cfg.Generation.APIKeyEnv),
		Model:    cfg.Generation.Model,
		BaseURL:  cfg.Generation.BaseURL,
		Timeout:  cfg.Generation.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}

	if cfg.Generation.Breaker {
		return breaker.NewGenerator(gen, breaker.DefaultSettings()), nil
	}
	return gen, nil
}

func newStore(ctx context.Context, cfg *config.Config, dimension int) (port.ProductStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("%s is not set", cfg.Store.DSNEnv)
		}
		st, err := pgstore.New(ctx, pgstore.Config{
			DSN:       dsn,
			Table:     cfg.Store.Table,
			Dimension: dimension,
			Timeout:   cfg.Store.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil

	default:
		path := cfg.StorePath(GetRootDir())
		if err := config.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		st, err := store.NewBoltStore(path, dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open product store: %w", err)
		}

		rebuilt, reason, err := st.Prepare(cfg)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to prepare product store: %w", err)
		}
		if rebuilt {
			logging.Warn().Str("reason", reason).Str("path", path).Msg("Product store cleared; run 'routine sync' to repopulate")
		}
		return st, nil
	}
}
