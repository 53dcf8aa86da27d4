package scoringclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstream covers transport failures and non-2xx responses other than 429 and 402.
	ErrUpstream = errors.New("scoring service error")
	// ErrRateLimited is returned on HTTP 429. Callers may retry later.
	ErrRateLimited = errors.New("scoring service rate limit exceeded")
	// ErrQuotaExhausted is returned on HTTP 402. Not retryable until billing is resolved.
	ErrQuotaExhausted = errors.New("scoring service quota exhausted")
	// ErrMalformedResponse means the service answered 2xx but broke the output contract.
	ErrMalformedResponse = errors.New("malformed scoring response")
)

// APIError carries the raw status and body of a failed scoring call.
type APIError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Unwrap(), e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.kind == nil {
		return ErrUpstream
	}
	return e.kind
}

// NewAPIError classifies a non-2xx response by status code.
func NewAPIError(statusCode int, body []byte) *APIError {
	kind := ErrUpstream
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	case http.StatusPaymentRequired:
		kind = ErrQuotaExhausted
	}
	return &APIError{StatusCode: statusCode, Body: string(body), kind: kind}
}
