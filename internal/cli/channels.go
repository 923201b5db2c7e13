package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var channelsJSON bool

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the catalog's sales channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := newCatalog(GetConfig())
		if err != nil {
			return err
		}

		channels, err := source.ListChannels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list channels: %w", err)
		}
		if channelsJSON {
			return writeJSON(channels)
		}
		if len(channels) == 0 {
			fmt.Println("No channels found.")
			return nil
		}
		for _, c := range channels {
			fmt.Printf("  %-40s %s\n", c.ID, c.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.Flags().BoolVar(&channelsJSON, "json", false, "output as JSON")
}
