// Package metrics defines the Prometheus collectors for sync, search and the
// upstream adapters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Total number of catalog sync runs",
		},
		[]string{"status"}, // "completed", "empty", "failed"
	)

	SyncProducts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_products_total",
			Help: "Products handled by catalog sync",
		},
		[]string{"result"}, // "upserted", "failed"
	)

	SyncBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_batches_total",
			Help: "Embedding batches handled by catalog sync",
		},
		[]string{"result"}, // "ok", "retried", "abandoned"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of catalog sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Search Metrics
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similarity_search_duration_seconds",
			Help:    "Similarity search duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	// Recommendation Metrics
	StepFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_step_fallbacks_total",
			Help: "Routine steps that used the fallback description",
		},
		[]string{"industry"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)
)
