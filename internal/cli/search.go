package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"routine/internal/domain"
)

var (
	searchText     string
	searchLimit    int
	searchJSON     bool
	searchCategory string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored products by similarity",
	Long: `Embed a query and return the most similar stored products.
With --category, list the products of one category instead.

Examples:
  routine search -q "sulfate free shampoo for curls"
  routine search -q "retinol serum" --limit 5 --json
  routine search --category Conditioner`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "number of results, 1-100 (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "list products in this category")
	searchCmd.MarkFlagsOneRequired("query", "category")
	searchCmd.MarkFlagsMutuallyExclusive("query", "category")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	limit := cfg.Search.DefaultLimit
	if cmd.Flags().Changed("limit") {
		limit = searchLimit
	}
	if err := domain.ValidateLimit(limit); err != nil {
		return err
	}

	svc, err := openServices(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if searchCategory != "" {
		products, err := svc.search.ByCategory(cmd.Context(), searchCategory)
		if err != nil {
			return fmt.Errorf("category lookup failed: %w", err)
		}
		if searchJSON {
			return writeJSON(products)
		}
		if len(products) == 0 {
			fmt.Printf("No products in category %q.\n", searchCategory)
			return nil
		}
		fmt.Printf("%d products in %s:\n\n", len(products), searchCategory)
		for _, p := range products {
			fmt.Printf("  %-20s %s\n", p.ID, p.Title)
		}
		return nil
	}

	results, err := svc.search.Search(cmd.Context(), searchText, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return writeJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (similarity: %.3f) ---\n", i+1, r.Title, r.Similarity)
		fmt.Printf("id: %s", r.ID)
		if r.Category != "" {
			fmt.Printf("  category: %s", r.Category)
		}
		if r.Price != "" {
			fmt.Printf("  price: %s", r.Price)
		}
		fmt.Println()
		if len(r.Tags) > 0 {
			fmt.Printf("tags: %s\n", strings.Join(r.Tags, ", "))
		}
		desc := r.Description
		if len(desc) > 300 {
			desc = desc[:300] + "..."
		}
		if desc != "" {
			fmt.Println(desc)
		}
		fmt.Println()
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
