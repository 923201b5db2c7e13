package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"routine/config"
	"routine/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "routine",
	Short: "Catalog search and routine recommendations",
	Long: `Routine syncs an e-commerce catalog into a vector store, answers
similarity searches over it, and builds step-by-step product routines
for haircare and skincare customers.

Example usage:
  routine sync                                   # Embed and store the catalog
  routine search -q "moisturizing shampoo"       # Similarity search
  routine recommend -i haircare -p profile.yaml  # Build a routine
  routine serve                                  # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// .env is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(logging.Config{Level: level, Format: cfg.Logging.Format})
		return nil
	},
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./routine.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory for the local store (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
