package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/kb"
)

var (
	// ErrBadRequest is a package-level sentinel for malformed request bodies.
	ErrBadRequest = errors.New("bad request")
	// ErrTooLong is returned when a scenario exceeds the server's duration cap.
	ErrTooLong = errors.New("scenario duration exceeds server limit")
)

// StatusFor maps simulator errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, kb.ErrRunNotFound):
		return http.StatusNotFound

	case errors.Is(err, kb.ErrRunExists):
		return http.StatusConflict

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrTooLong),
		errors.Is(err, core.ErrInvalidConfig),
		errors.Is(err, core.ErrInvalidScenario),
		errors.Is(err, sweep.ErrNoRates):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if log := logging.LoggerFromContext(r.Context()); log != nil {
		if code >= http.StatusInternalServerError {
			log.Error(r.Context(), "request failed", logging.Int("status", code), logging.Error(err))
		} else {
			log.Debug(r.Context(), "request rejected", logging.Int("status", code), logging.Error(err))
		}
	}
	writeJSON(w, code, errorBody{
		Error:     err.Error(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
