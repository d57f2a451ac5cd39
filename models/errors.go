// ABOUTME: Typed API errors with a fixed kind-to-status table
// ABOUTME: Every endpoint maps failures through APIError at a single response boundary

package models

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of error categories an endpoint can return
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindConflict
	KindRateLimit
	KindUpstream
)

// Error codes returned in the error body
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidSession      = "INVALID_SESSION"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeSessionMismatch     = "SESSION_MISMATCH"
	CodeForbidden           = "FORBIDDEN"
	CodeAlreadyDeleted      = "ALREADY_DELETED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeDatabase            = "DATABASE_ERROR"
	CodePasswordUpdate      = "PASSWORD_UPDATE_ERROR"
	CodeUpdate              = "UPDATE_ERROR"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus returns the response status for an error kind
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUpstream, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// String returns a short label used in logs
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is returned by services and rendered by the handler boundary.
// Err carries the underlying cause for server-side logs only.
type APIError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	Details    interface{}
	RetryAfter int // seconds, rate limit errors only
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error
func (e *APIError) Status() int {
	return e.Kind.HTTPStatus()
}

// NewValidationError reports invalid input with field-level details
func NewValidationError(message string, fields []FieldError) *APIError {
	e := &APIError{Kind: KindValidation, Code: CodeValidation, Message: message}
	if len(fields) > 0 {
		e.Details = fields
	}
	return e
}

// NewAuthError reports an authentication failure. Messages must stay generic.
func NewAuthError(code, message string, cause error) *APIError {
	return &APIError{Kind: KindAuth, Code: code, Message: message, Err: cause}
}

// NewForbiddenError reports an authorization or integrity failure
func NewForbiddenError(code, message string) *APIError {
	return &APIError{Kind: KindForbidden, Code: code, Message: message}
}

// NewConflictError reports a state conflict such as an already deleted account
func NewConflictError(code, message string) *APIError {
	return &APIError{Kind: KindConflict, Code: code, Message: message}
}

// NewRateLimitError reports an exhausted attempt budget
func NewRateLimitError(retryAfterSeconds int) *APIError {
	return &APIError{
		Kind:       KindRateLimit,
		Code:       CodeRateLimitExceeded,
		Message:    "Too many attempts. Please try again later.",
		RetryAfter: retryAfterSeconds,
	}
}

// NewUpstreamError reports a failure in the identity provider or data store
func NewUpstreamError(code, message string, cause error) *APIError {
	return &APIError{Kind: KindUpstream, Code: code, Message: message, Err: cause}
}

// NewInternalError reports an unexpected failure
func NewInternalError(cause error) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Code:    CodeInternalServerError,
		Message: "An unexpected error occurred",
		Err:     cause,
	}
}

// ErrorBody is the inner object of an error response
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse is the error response envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
