package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for use with errors.Is()
var (
	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized indicates the credential was rejected (HTTP 401).
	// The transport has already cleared the session when this surfaces.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates the server rejected the input (HTTP 400/422).
	// Field-level messages are on APIError.Fields.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredInvitation indicates the invitation expired. It is terminal; never retry accept.
	ErrExpiredInvitation = errors.New("invitation expired")

	// ErrTimeout indicates the client-side wait budget ran out before the server answered.
	ErrTimeout = errors.New("timed out")

	// ErrUnknownServer indicates any other server failure.
	ErrUnknownServer = errors.New("unexpected server error")

	// ErrBadRequest indicates invalid request parameters (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrForbidden indicates insufficient permissions (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource was not found (HTTP 404).
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a resource conflict, e.g. an already accepted invitation (HTTP 409).
	ErrConflict = errors.New("resource conflict")

	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError indicates an internal server error (HTTP 5xx).
	ErrServerError = errors.New("server error")

	// ErrInvalidInput indicates client-side validation failure for input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrScopeMismatch indicates a re-issued credential whose token scope and
	// user company do not match the requested company context.
	ErrScopeMismatch = errors.New("company scope mismatch")
)

// invitationExpiredCode is the error code the API uses for expired invitations.
const invitationExpiredCode = "invitation.expired"

// APIError represents an error response from the HR API.
type APIError struct {
	StatusCode int               // HTTP status code
	Message    string            // Error message from API
	Code       string            // Error code from API (if available)
	Fields     map[string]string // Field-level validation messages
	RequestID  string            // Request ID from X-Request-Id header (for debugging)
	Body       []byte            // Raw response body (for debugging)
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hr api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("hr api error (status %d): %s", e.StatusCode, e.Message)
}

// Is implements errors.Is() for comparing with sentinel errors.
// An error can match both a taxonomy sentinel and a finer status sentinel.
func (e *APIError) Is(target error) bool {
	if e.Code == invitationExpiredCode || e.StatusCode == http.StatusGone {
		return target == ErrExpiredInvitation
	}
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == ErrBadRequest || target == ErrValidation
	case http.StatusUnprocessableEntity:
		return target == ErrValidation
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusForbidden:
		return target == ErrForbidden || target == ErrUnknownServer
	case http.StatusNotFound:
		return target == ErrNotFound || target == ErrUnknownServer
	case http.StatusConflict:
		return target == ErrConflict || target == ErrUnknownServer
	case http.StatusTooManyRequests:
		return target == ErrRateLimited || target == ErrUnknownServer
	}
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return target == ErrServerError || target == ErrUnknownServer
	}
	return target == ErrUnknownServer
}

// Unwrap returns nil as APIError doesn't wrap other errors.
func (e *APIError) Unwrap() error {
	return nil
}

// NetworkError wraps a transport failure (DNS, connection refused, reset, TLS).
type NetworkError struct {
	Op  string // "GET /auth/me"
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

// Is implements errors.Is() for comparing with ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that an operation exceeded the client-side wait budget.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no answer within %s", e.Op, e.Budget)
}

// Is implements errors.Is() for comparing with ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Validation error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is implements errors.Is() for comparing with ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Unwrap returns ErrInvalidInput for error chain.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// newAPIErrorFromResponse creates an APIError from the response envelope.
// It falls back to the raw body when the body is not an envelope.
func newAPIErrorFromResponse(statusCode int, body []byte, requestID string) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(body),
		RequestID:  requestID,
		Body:       body,
	}

	var errResp struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Errors  map[string]string `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
		apiErr.Code = errResp.Code
		apiErr.Fields = errResp.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}

	return apiErr
}

// isExpectedStatus checks if the status code is in the expected list.
// If expected is empty, any 2xx is accepted.
func isExpectedStatus(code int, expected []int) bool {
	if len(expected) == 0 {
		return code >= 200 && code < 300
	}
	for _, e := range expected {
		if code == e {
			return true
		}
	}
	return false
}

// isRetryableStatus returns true if the HTTP status code is retryable.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
