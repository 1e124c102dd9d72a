package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassUnavailable represents 503 Service Unavailable.
	ErrorClassUnavailable ErrorClass = "unavailable"

	// ErrorClassServer represents 500 Internal Server Error.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassTokenNotReady represents a continuation token the upstream
	// does not accept yet.
	ErrorClassTokenNotReady ErrorClass = "token_not_ready"

	// ErrorClassClient represents any other 4xx response.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassUpstream represents any other non-success response.
	ErrorClassUpstream ErrorClass = "upstream"

	// ErrorClassNetwork represents transport and decoding failures.
	ErrorClassNetwork ErrorClass = "network"
)

// Substrings in an upstream error that signal a continuation token which
// has not settled yet.
const (
	tokenNotReadyStatus  = "INVALID_REQUEST"
	tokenNotReadyMessage = "nextPageToken"
)

// APIError is a non-success response from the Places API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass

	// Message is the upstream error message, or "HTTP <code>: <text>" when
	// the body carried none.
	Message string

	// Status is the upstream status string (e.g. "INVALID_ARGUMENT").
	Status string

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("places %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("places %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return shouldRetry(e.ErrorClass)
}

// newAPIError builds a classified error from a response status and the
// upstream-provided message.
func newAPIError(statusCode int, message, status string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))
	}
	return &APIError{
		StatusCode: statusCode,
		ErrorClass: classify(statusCode, message, status),
		Message:    message,
		Status:     status,
	}
}

// classify maps a status code and upstream message to an ErrorClass.
func classify(statusCode int, message, status string) ErrorClass {
	switch statusCode {
	case http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case http.StatusServiceUnavailable:
		return ErrorClassUnavailable
	case http.StatusInternalServerError:
		return ErrorClassServer
	}

	if strings.Contains(message, tokenNotReadyStatus) ||
		strings.Contains(status, tokenNotReadyStatus) ||
		strings.Contains(message, tokenNotReadyMessage) {
		return ErrorClassTokenNotReady
	}

	if statusCode >= 400 && statusCode < 500 {
		return ErrorClassClient
	}
	return ErrorClassUpstream
}

// shouldRetry determines if an error class is transient.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassRateLimit, ErrorClassUnavailable, ErrorClassServer, ErrorClassTokenNotReady:
		return true
	default:
		// Other 4xx/5xx and transport errors are not retried.
		return false
	}
}

// classOf returns the ErrorClass carried by err, or ErrorClassNetwork for
// errors that never reached an upstream response.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

// DetailError is a detail fetch that failed for good. It keeps the place ID
// so callers can fall back to what they already know about the place.
type DetailError struct {
	PlaceID string
	Err     error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	return fmt.Sprintf("place details %s: %v", e.PlaceID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DetailError) Unwrap() error {
	return e.Err
}
