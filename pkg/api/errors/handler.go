// Package errors provides HTTP error handling utilities for the API.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/kbase/orcidlink/pkg/errors"
	"github.com/kbase/orcidlink/pkg/logger"
)

// ErrorResponse is the JSON error body returned by every non-browser API
// leg: a stable numeric code, a message, and optional structured data.
type ErrorResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// HandlerWithError is an HTTP handler that can return an error.
// This signature allows handlers to return errors instead of manually
// writing error responses, enabling centralized error handling.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler wraps a HandlerWithError and converts returned errors into
// JSON error responses carrying the taxonomy code.
//
// Usage:
//
//	r.Get("/{session_id}", apierrors.ErrorHandler(routes.getLinkingSession))
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			// No error returned, handler already wrote the response
			return
		}
		WriteError(w, err)
	}
}

// WriteError maps an error onto the wire once, at the API edge: the HTTP
// status and numeric code come from the taxonomy kind. Internal errors are
// logged in full and masked in the response.
func WriteError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("Internal server error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := ErrorResponse{
		Code:    errors.Code(err),
		Message: errors.Message(err),
		Data:    errors.Data(err),
	}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		logger.Errorf("Failed to encode error response: %v", encodeErr)
	}
}
