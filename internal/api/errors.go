package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/irislab/iris-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDenial maps an authorisation error to the wire. Denials carry their
// reason as the error code: 401 when the caller's identity could not be
// established, 403 when an established identity lacks rights. Anything that
// is not a DenialError is an internal fault, not a denial.
func writeDenial(w http.ResponseWriter, err error) {
	var denial *auth.DenialError
	if !errors.As(err, &denial) {
		writeInternalError(w, "authorisation check failed")
		return
	}

	status := http.StatusForbidden
	if denial.Unauthenticated() {
		status = http.StatusUnauthorized
	}
	writeError(w, status, string(denial.Reason), denial.Error())
}
