// Package api exposes search, catalog sync and routine generation over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/strategy"
)

// Searcher answers catalog read queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ScoredProduct, error)
	Categories(ctx context.Context) ([]string, error)
	ByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Count(ctx context.Context) (int, error)
}

// Syncer runs catalog syncs. TryStart claims the single sync slot and returns
// the function that runs the sync and frees it.
type Syncer interface {
	Ingest(ctx context.Context) (*domain.IngestResult, error)
	TryStart() (func(ctx context.Context) (*domain.IngestResult, error), error)
	Running() bool
}

// Recommender builds routines from profiles.
type Recommender interface {
	Recommend(ctx context.Context, industry string, profile domain.CustomerProfile, limit int) (*domain.RecommendationResponse, error)
	Industries() []string
}

// ChannelLister lists the catalog's sales channels.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]domain.Channel, error)
}

// Defaults holds request defaults taken from configuration.
type Defaults struct {
	SearchLimit    int
	RecommendLimit int
	Industry       string
}

// Handler serves the HTTP API.
type Handler struct {
	search    Searcher
	sync      Syncer
	recommend Recommender
	channels  ChannelLister
	defaults  Defaults
	validate  *validator.Validate

	// syncCtx parents background syncs so shutdown cancels them.
	syncCtx context.Context

	breakers map[string]func() string
}

func NewHandler(ctx context.Context, search Searcher, sync Syncer, recommend Recommender, channels ChannelLister, defaults Defaults) *Handler {
	if defaults.SearchLimit == 0 {
		defaults.SearchLimit = 10
	}
	if defaults.RecommendLimit == 0 {
		defaults.RecommendLimit = 30
	}
	if defaults.Industry == "" {
		defaults.Industry = "haircare"
	}
	return &Handler{
		search:    search,
		sync:      sync,
		recommend: recommend,
		channels:  channels,
		defaults:  defaults,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		syncCtx:   ctx,
	}
}

// ReportBreaker adds a circuit breaker's state to the health output.
func (h *Handler) ReportBreaker(name string, state func() string) {
	if h.breakers == nil {
		h.breakers = make(map[string]func() string)
	}
	h.breakers[name] = state
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=1000"`
	Limit *int   `json:"limit" validate:"omitempty,min=1,max=100"`
}

type recommendRequest struct {
	Industry string                 `json:"industry" validate:"omitempty,max=50"`
	Profile  domain.CustomerProfile `json:"profile"`
	Limit    *int                   `json:"limit" validate:"omitempty,min=1,max=100"`
}

// Search handles POST /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}

	limit := h.defaults.SearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if err := domain.ValidateLimit(limit); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	results, err := h.search.Search(r.Context(), strings.TrimSpace(req.Query), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.search.Categories(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// Products handles GET /api/v1/products?category=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "category query parameter is required", nil)
		return
	}

	products, err := h.search.ByCategory(r.Context(), category)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if len(products) == 0 {
		respondDomainError(w, r, domain.ErrNoProducts)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Channels handles GET /api/v1/channels.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListChannels(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, channels)
}

// Sync handles POST /api/v1/sync. The sync runs in the background unless
// ?wait=true, in which case the ingest result is returned.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		result, err := h.sync.Ingest(r.Context())
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
		return
	}

	run, err := h.sync.TryStart()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	go func() {
		result, err := run(h.syncCtx)
		if err != nil {
			logging.Warn().Err(err).Msg("Background sync failed")
			return
		}
		logging.Info().Str("run_id", result.RunID).Int("processed", result.Processed).Int("errors", len(result.Errors)).Msg("Background sync finished")
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "catalog sync started"})
}

// Recommendations handles POST /api/v1/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !h.decode(w, r, &req) {
		return
	}

	industry := req.Industry
	if industry == "" {
		industry = h.defaults.Industry
	}
	limit := h.defaults.RecommendLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if err := domain.ValidateLimit(limit); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	resp, err := h.recommend.Recommend(r.Context(), industry, req.Profile, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.search.Count(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	breakers := make(map[string]string, len(h.breakers))
	for name, state := range h.breakers {
		breakers[name] = state()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"products":     n,
		"sync_running": h.sync.Running(),
		"industries":   h.recommend.Industries(),
		"breakers":     breakers,
		"time":         time.Now().UTC(),
	})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", nil)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fe.Field() + ": failed " + fe.Tag()
			}
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", strings.Join(msgs, "; "), nil)
			return false
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}
	return true
}

// respondDomainError maps domain errors to status codes.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		adapterErr *domain.AdapterError
		storeErr   *domain.StoreError
	)
	log := logging.Ctx(r.Context())

	switch {
	case errors.Is(err, domain.ErrNoProducts):
		respondError(w, http.StatusNotFound, "NO_PRODUCTS", err.Error(), nil)
	case errors.Is(err, domain.ErrSyncInProgress):
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, strategy.ErrUnknownIndustry), errors.Is(err, domain.ErrInvalidLimit):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.As(err, &adapterErr):
		log.Error().Err(err).Str("source", adapterErr.Source).Bool("retriable", adapterErr.Retriable).Msg("Upstream failure")
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", adapterErr.Source+" service unavailable", nil)
	case errors.As(err, &storeErr):
		log.Error().Err(err).Msg("Store failure")
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "product store unavailable", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
	}
}
