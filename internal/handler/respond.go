package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yourorg/profilehub/internal/domain"
)

// ErrorResponse represents a generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// FieldErrorResponse carries per-field validation messages back to the
// originating form
type FieldErrorResponse struct {
	Errors map[string]string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeFieldErrors renders validation failures. Duplicates get 409,
// anything else 400.
func writeFieldErrors(w http.ResponseWriter, fe domain.FieldErrors) {
	status := http.StatusBadRequest
	for _, err := range fe {
		if errors.Is(err, domain.ErrDuplicateUsername) || errors.Is(err, domain.ErrDuplicateEmail) {
			status = http.StatusConflict
			break
		}
	}
	writeJSON(w, status, FieldErrorResponse{Errors: fe.Messages()})
}
