package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("API request failed (HTTP %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("API request failed (HTTP %d): %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("API request failed (HTTP %d)", e.StatusCode)
}

// ErrorBody is the backend's JSON error envelope.
type ErrorBody struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (eb *ErrorBody) APIError(statusCode int) error {
	return &APIError{
		StatusCode: statusCode,
		Code:       eb.Code,
		Message:    eb.Message,
	}
}

func statusCode(err error) (int, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode, true
	}
	return 0, false
}

// IsTransient reports whether err is a network-origin failure (connection
// errors, timeouts, 5xx) that the caller's fallback policy may absorb.
// Definitive rejections (4xx) are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := statusCode(err); ok {
		return code >= 500 || code == http.StatusRequestTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsAuthRejected reports a credential-rejected response (401); this is the
// sole trigger for a session refresh attempt.
func IsAuthRejected(err error) bool {
	code, ok := statusCode(err)
	return ok && code == http.StatusUnauthorized
}

// IsNoAllowance reports a confirmed subscription-required / quota-exhausted
// rejection (402). Unlike transient failures, this is authoritative: the
// entitlement layer must not substitute fallback limits for it.
func IsNoAllowance(err error) bool {
	code, ok := statusCode(err)
	return ok && code == http.StatusPaymentRequired
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	code, ok := statusCode(err)
	return ok && code == http.StatusNotFound
}
