package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"navagent/internal/assistant"
	"navagent/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case assistant.IsInvalidTransition(err), assistant.IsModelUnresolved(err):
		return http.StatusConflict
	case errors.Is(err, assistant.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
