package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"routine/config"
	"routine/internal/adapter/embedding"
	"routine/internal/adapter/store"
	"routine/internal/port"
	"routine/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding routine.yaml and the local store")
	query := flag.String("q", "", "Query to test; separate several with |")
	limit := flag.Int("k", 10, "Number of results")
	rounds := flag.Int("n", 5, "Timed rounds per query")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"curl cream|frizz serum\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Store contents (model, dimension, product count)")
		fmt.Println("  2. Semantic similarity of the top results")
		fmt.Println("  3. Search latency over several rounds")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(cfg.StorePath(*dir), embedder.Dimension())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	count, _ := st.Count(ctx)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "No products stored - run 'routine sync' first")
		os.Exit(1)
	}

	fmt.Println("SIMILARITY SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Products stored: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n\n", embedder.Dimension())

	search := usecase.NewSearchUseCase(embedder, st, cfg.Store.Timeout)
	for _, q := range strings.Split(*query, "|") {
		if q = strings.TrimSpace(q); q != "" {
			if err := runQuery(ctx, search, q, *limit, *rounds); err != nil {
				fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
				os.Exit(1)
			}
		}
	}
}

func runQuery(ctx context.Context, search *usecase.SearchUseCase, query string, limit, rounds int) error {
	fmt.Printf("Query: %q\n", query)
	fmt.Println(strings.Repeat("-", 70))

	results, err := search.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	total := 0.0
	for i, r := range results {
		total += r.Similarity

		rating := "LOW"
		if r.Similarity > 0.7 {
			rating = "HIGH"
		} else if r.Similarity > 0.5 {
			rating = "GOOD"
		} else if r.Similarity > 0.3 {
			rating = "OK"
		}
		fmt.Printf("%2d. [%s %.3f] %s (%s)\n", i+1, rating, r.Similarity, r.Title, r.ID)
	}

	var elapsed time.Duration
	for i := 0; i < rounds; i++ {
		start := time.Now()
		if _, err := search.Search(ctx, query, limit); err != nil {
			return err
		}
		elapsed += time.Since(start)
	}

	avg := total / float64(len(results))
	fmt.Println()
	fmt.Printf("  Average similarity: %.3f\n", avg)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
	if rounds > 0 {
		fmt.Printf("  Mean latency:       %s over %d rounds\n", elapsed/time.Duration(rounds), rounds)
	}

	if avg > 0.5 {
		fmt.Println("  Status: GOOD - results are closely related")
	} else if avg > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or a re-sync")
	}
	fmt.Println()
	return nil
}

func setupEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := embedding.Config{
		APIKey:    os.Getenv(cfg.Embedding.APIKeyEnv),
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	}
	switch cfg.Embedding.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(ec)
	case "openai":
		return embedding.NewOpenAIEmbedder(ec)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
