// Package breaker wraps the embedding and text generation adapters with circuit
// breakers so a failing upstream is not hammered by every batch and request.
package breaker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"routine/internal/domain"
	"routine/internal/logging"
	"routine/internal/metrics"
)

// Settings tunes a breaker. Zero values fall back to the defaults below.
type Settings struct {
	MaxRequests  uint32        // concurrent probes in half-open state
	Interval     time.Duration // closed-state count reset
	Timeout      time.Duration // open → half-open
	MinRequests  uint32
	FailureRatio float64
}

// DefaultSettings opens after 60% failures over at least 10 requests and probes
// again after one minute.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

func newCircuitBreaker[T any](name string, s Settings) *gobreaker.CircuitBreaker[T] {
	def := DefaultSettings()
	if s.MaxRequests == 0 {
		s.MaxRequests = def.MaxRequests
	}
	if s.Interval == 0 {
		s.Interval = def.Interval
	}
	if s.Timeout == 0 {
		s.Timeout = def.Timeout
	}
	if s.MinRequests == 0 {
		s.MinRequests = def.MinRequests
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = def.FailureRatio
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRatio
			if shouldTrip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("Opening circuit")
			}
			return shouldTrip
		},
		// A caller giving up is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

// execute runs fn through cb. Rejections are reported as non-retriable adapter
// errors attributed to source.
func execute[T any](cb *gobreaker.CircuitBreaker[T], source, op string, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", cb.Name()).Msg("Request rejected")
			var zero T
			return zero, &domain.AdapterError{Source: source, Op: op, Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
		return result, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	return result, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
