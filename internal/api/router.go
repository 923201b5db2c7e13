package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routine/internal/logging"
	"routine/internal/metrics"
)

// NewRouter builds the chi router for h.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(2 * time.Minute))

		r.Post("/search", h.Search)
		r.Get("/categories", h.Categories)
		r.Get("/products", h.Products)
		r.Get("/channels", h.Channels)
		r.Post("/sync", h.Sync)
		r.Post("/recommendations", h.Recommendations)
	})

	return r
}

// requestID tags the request context and response with a request id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.APIRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		logging.Ctx(r.Context()).Debug().Str("method", r.Method).Str("path", endpoint).Int("status", status).Dur("took", time.Since(start)).Msg("HTTP request")
	})
}
