package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"routine/internal/logging"
)

// Response is the envelope for every API reply.
type Response struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeResponse(w, status, &Response{Status: "success", Data: data, Timestamp: time.Now().UTC()})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	writeResponse(w, status, &Response{
		Status:    "error",
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	})
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}
