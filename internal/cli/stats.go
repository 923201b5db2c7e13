package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show product store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		svc, err := openServices(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		count, err := svc.search.Count(cmd.Context())
		if err != nil {
			return err
		}
		categories, err := svc.search.Categories(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Store:      %s\n", cfg.Store.Driver)
		if cfg.Store.Driver == "bolt" {
			fmt.Printf("Path:       %s\n", cfg.StorePath(GetRootDir()))
		}
		fmt.Printf("Embedding:  %s (%s, %d dims)\n", svc.embedder.ModelName(), cfg.Embedding.Provider, svc.embedder.Dimension())
		fmt.Printf("Products:   %d\n", count)
		fmt.Printf("Categories: %d\n", len(categories))
		for _, c := range categories {
			fmt.Printf("  - %s\n", c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
