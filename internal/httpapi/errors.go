package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"a9d/internal/auxmod"
	"a9d/internal/manager"
	"a9d/internal/registry"
	"a9d/internal/runtime"
	"a9d/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsNotReady(err), manager.IsAuxUnavailable(err), runtime.IsBackendUnavailable(err):
		return http.StatusServiceUnavailable
	case runtime.IsShapeError(err):
		return http.StatusBadRequest
	case errors.Is(err, auxmod.ErrFunctionNotFound), errors.Is(err, registry.ErrBundleNotFound):
		return http.StatusNotFound
	case runtime.IsLoadError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
