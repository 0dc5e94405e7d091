package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 512

// APIError is returned when a provider answers with a non-2xx status.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether the same request may succeed later
// (rate limiting or an upstream fault).
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func newAPIError(provider string, status int, body []byte) *APIError {
	s := string(body)
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return &APIError{Provider: provider, Status: status, Body: s}
}

// IsRequestError reports whether err blames the request rather than the
// provider. Such errors are not retried on another provider and do not
// count against the provider's circuit breaker.
func IsRequestError(err error) bool {
	if errors.Is(err, ErrContentFiltered) {
		return true
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status >= 400 && ae.Status < 500 && !ae.Retryable()
}
