package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"unicode/utf8"
)

var (
	// ErrNoProducts is returned when a search or lookup yields nothing usable.
	ErrNoProducts = errors.New("no products found")

	// ErrSyncInProgress is returned when a sync is requested while another one runs.
	ErrSyncInProgress = errors.New("catalog sync already in progress")

	ErrInvalidLimit = fmt.Errorf("limit must be between %d and %d", MinSearchLimit, MaxSearchLimit)
)

const (
	MinSearchLimit = 1
	MaxSearchLimit = 100
)

// AdapterError reports a failed call to the catalog, embedding or text generation service.
type AdapterError struct {
	Source    string // "catalog", "embedding", "generation"
	Op        string
	Retriable bool
	Err       error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError classifies err as retriable when it is a timeout, cancellation
// or network failure.
func NewAdapterError(source, op string, err error) *AdapterError {
	return &AdapterError{Source: source, Op: op, Retriable: isTransient(err), Err: err}
}

// MalformedResponse reports an upstream response with an invalid shape. Never retriable.
func MalformedResponse(source, op string, format string, args ...any) *AdapterError {
	return &AdapterError{Source: source, Op: op, Err: fmt.Errorf(format, args...)}
}

// StoreError reports a failed query or write against the product store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidateLimit enforces the search limit range at the boundary. Zero is invalid.
func ValidateLimit(limit int) error {
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return ErrInvalidLimit
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusError is an HTTP status failure from an upstream API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetriableStatus reports whether an HTTP status is worth retrying.
func IsRetriableStatus(code int) bool {
	return code == 429 || code >= 500
}

// NewStatusError builds an AdapterError for a non-2xx upstream response.
func NewStatusError(source, op string, code int, body string) *AdapterError {
	return &AdapterError{
		Source:    source,
		Op:        op,
		Retriable: IsRetriableStatus(code),
		Err:       &StatusError{StatusCode: code, Body: TruncateBytes(body, 200)},
	}
}

// TruncateBytes shortens s to at most n bytes without splitting a UTF-8 sequence.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
