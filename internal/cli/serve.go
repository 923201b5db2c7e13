package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"routine/internal/adapter/breaker"
	"routine/internal/api"
	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve search, sync and recommendation endpoints over HTTP.
With server.sync_interval set, the catalog is also re-synced on a schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx := cmd.Context()
	svc, err := openServices(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := api.NewHandler(ctx, svc.search, svc.ingest, svc.recommend, svc.catalog, api.Defaults{
		SearchLimit:    cfg.Search.DefaultLimit,
		RecommendLimit: cfg.Search.RecommendLimit,
		Industry:       cfg.Search.Industry,
	})

	if b, ok := svc.embedder.(*breaker.Embedder); ok {
		handler.ReportBreaker("embedding", b.State)
	}
	if b, ok := svc.generator.(*breaker.Generator); ok {
		handler.ReportBreaker("generation", b.State)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.SyncInterval > 0 {
		go scheduleSync(ctx, svc.ingest, cfg.Server.SyncInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scheduleSync re-syncs the catalog every interval until ctx is done.
// A tick that finds a sync already running is skipped.
func scheduleSync(ctx context.Context, ingest *usecase.IngestUseCase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := ingest.Ingest(ctx)
			switch {
			case errors.Is(err, domain.ErrSyncInProgress):
				logging.Debug().Msg("Scheduled sync skipped; sync already running")
			case err != nil:
				logging.Warn().Err(err).Msg("Scheduled sync failed")
			default:
				logging.Info().Str("run_id", result.RunID).Int("processed", result.Processed).Int("errors", len(result.Errors)).Msg("Scheduled sync finished")
			}
		}
	}
}
