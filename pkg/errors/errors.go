// Package errors defines the fixed error taxonomy for the ORCID Link service.
//
// Every component-level failure is represented as a typed *Error carrying one
// of the kinds below plus a stable numeric code surfaced to API callers. The
// mapping to HTTP status codes and JSON error bodies happens once, at the API
// edge.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds
const (
	// ErrAlreadyLinked is returned when a link record already exists for the user
	ErrAlreadyLinked = "already_linked"

	// ErrAuthorizationRequired is returned when no usable credential was presented
	ErrAuthorizationRequired = "authorization_required"

	// ErrNotAuthorized is returned when the caller is not permitted to perform the operation
	ErrNotAuthorized = "not_authorized"

	// ErrNotFound is returned when the requested entity does not exist
	ErrNotFound = "not_found"

	// ErrInternal is returned for unrecoverable internal failures (e.g. storage unavailable)
	ErrInternal = "internal"

	// ErrUpstream is returned when an upstream service reports an application error
	// or cannot be reached
	ErrUpstream = "upstream"

	// ErrUpstreamContentType is returned when an upstream response carries an
	// unexpected content type
	ErrUpstreamContentType = "upstream_content_type"

	// ErrUpstreamJSON is returned when an upstream response body cannot be
	// decoded as JSON
	ErrUpstreamJSON = "upstream_json"
)

// Stable numeric codes surfaced to API callers. 1000-1029 mirror the
// taxonomy used by other KBase services; 1030+ extend the same scheme.
var wireCodes = map[string]int{
	ErrAlreadyLinked:         1000,
	ErrAuthorizationRequired: 1010,
	ErrNotAuthorized:         1011,
	ErrNotFound:              1020,
	ErrInternal:              1030,
	ErrUpstream:              1040,
	ErrUpstreamContentType:   1041,
	ErrUpstreamJSON:          1042,
}

var httpStatus = map[string]int{
	ErrAlreadyLinked:         http.StatusBadRequest,
	ErrAuthorizationRequired: http.StatusUnauthorized,
	ErrNotAuthorized:         http.StatusForbidden,
	ErrNotFound:              http.StatusNotFound,
	ErrInternal:              http.StatusInternalServerError,
	ErrUpstream:              http.StatusBadGateway,
	ErrUpstreamContentType:   http.StatusBadGateway,
	ErrUpstreamJSON:          http.StatusBadGateway,
}

// Error represents an error in the application
type Error struct {
	// Type is the error kind, one of the Err* constants
	Type string

	// Message is the error message
	Message string

	// Data carries optional structured detail surfaced to API callers
	Data map[string]any

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable numeric code for the error kind.
func (e *Error) Code() int {
	if code, ok := wireCodes[e.Type]; ok {
		return code
	}
	return wireCodes[ErrInternal]
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// WithData attaches structured detail to the error and returns it.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// NewAlreadyLinkedError creates a new already linked error
func NewAlreadyLinkedError(message string) *Error {
	return NewError(ErrAlreadyLinked, message, nil)
}

// NewAuthorizationRequiredError creates a new authorization required error
func NewAuthorizationRequiredError(message string, cause error) *Error {
	return NewError(ErrAuthorizationRequired, message, cause)
}

// NewNotAuthorizedError creates a new not authorized error
func NewNotAuthorizedError(message string) *Error {
	return NewError(ErrNotAuthorized, message, nil)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message, nil)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// NewUpstreamError creates a new upstream error
func NewUpstreamError(message string, cause error) *Error {
	return NewError(ErrUpstream, message, cause)
}

// NewUpstreamContentTypeError creates a new upstream content type error
func NewUpstreamContentTypeError(message string) *Error {
	return NewError(ErrUpstreamContentType, message, nil)
}

// NewUpstreamJSONError creates a new upstream JSON decode error
func NewUpstreamJSONError(message string, cause error) *Error {
	return NewError(ErrUpstreamJSON, message, cause)
}

// IsKind checks whether err is a taxonomy error of the given kind.
func IsKind(err error, kind string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == kind
}

// IsAlreadyLinked checks if the error is an already linked error
func IsAlreadyLinked(err error) bool {
	return IsKind(err, ErrAlreadyLinked)
}

// IsAuthorizationRequired checks if the error is an authorization required error
func IsAuthorizationRequired(err error) bool {
	return IsKind(err, ErrAuthorizationRequired)
}

// IsNotAuthorized checks if the error is a not authorized error
func IsNotAuthorized(err error) bool {
	return IsKind(err, ErrNotAuthorized)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return IsKind(err, ErrNotFound)
}

// Code returns the stable numeric code for any error. Errors outside the
// taxonomy report as internal.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return wireCodes[ErrInternal]
}

// HTTPStatus returns the HTTP status code for any error. Errors outside the
// taxonomy report as internal server errors.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if status, ok := httpStatus[e.Type]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the caller-facing message for any error. Internal errors
// are masked so upstream details never leak to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Type != ErrInternal {
		return e.Message
	}
	return "Internal server error"
}

// Data returns the structured detail attached to a taxonomy error, or nil.
func Data(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Data
	}
	return nil
}
