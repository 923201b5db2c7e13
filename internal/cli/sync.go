package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	syncMaxItems int
	syncChannel  string
	syncQuiet    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the catalog into the product store",
	Long: `Fetch every active product from the catalog, embed it in batches and
upsert it into the product store. Failed batches are retried once and then
skipped; the run reports every product that could not be stored.

Examples:
  routine sync
  routine sync --channel gid://shopify/Publication/42 --max-items 500`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&syncMaxItems, "max-items", 0, "item ceiling (default from config)")
	syncCmd.Flags().StringVar(&syncChannel, "channel", "", "only sync products published to this channel")
	syncCmd.Flags().BoolVar(&syncQuiet, "quiet", false, "disable the progress bar")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if syncMaxItems > 0 {
		cfg.Ingest.MaxItems = syncMaxItems
	}
	if syncChannel != "" {
		cfg.Catalog.ChannelID = syncChannel
	}

	svc, err := openServices(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	if !syncQuiet {
		var (
			bar       *progressbar.ProgressBar
			barMu     sync.Mutex
			startTime time.Time
		)
		svc.ingest.OnProgress(func(done, total int) {
			barMu.Lock()
			defer barMu.Unlock()

			if bar == nil {
				startTime = time.Now()
				bar = progressbar.NewOptions(total,
					progressbar.OptionEnableColorCodes(true),
					progressbar.OptionShowBytes(false),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "[green]=[reset]",
						SaucerHead:    "[green]>[reset]",
						SaucerPadding: " ",
						BarStart:      "[",
						BarEnd:        "]",
					}),
					progressbar.OptionOnCompletion(func() {
						fmt.Println()
					}),
				)
			}
			bar.Set(done)

			if done > 0 {
				rate := float64(done) / time.Since(startTime).Seconds()
				if rate > 0 {
					eta := time.Duration(float64(total-done)/rate) * time.Second
					bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
				}
			}
		})
	}

	result, err := svc.ingest.Ingest(cmd.Context())
	if result == nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	status := "complete"
	if err != nil {
		status = "interrupted"
	}
	fmt.Printf("\nSync %s:\n", status)
	fmt.Printf("  Run:        %s\n", result.RunID)
	if result.NothingToDo {
		fmt.Println("  Catalog is empty; nothing to do.")
	}
	fmt.Printf("  Processed:  %d / %d\n", result.Processed, result.Attempted)
	fmt.Printf("  Duration:   %s\n", formatDuration(result.Duration))

	if len(result.Errors) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(result.Errors))
		for i, e := range result.Errors {
			if i == 20 {
				fmt.Printf("  ... and %d more\n", len(result.Errors)-i)
				break
			}
			fmt.Printf("  - %s\n", e)
		}
	}
	return err
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
