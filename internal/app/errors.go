package app

import (
	"errors"

	"github.com/credible/credit-service/internal/store"
	"github.com/credible/credit-service/pkg/scoringclient"
)

var (
	// ErrScoringNotConfigured is returned when no scoring API key was provided.
	ErrScoringNotConfigured = errors.New("scoring service is not configured")
	// ErrPersistence is returned when a computed score could not be stored.
	ErrPersistence = errors.New("failed to save credit score")
	// ErrCreditScoreRateLimited is returned when a user exceeds the per-minute calculate throttle.
	ErrCreditScoreRateLimited = errors.New("too many credit score requests")
)

// RateLimitError reports a throttled calculate request and when to retry.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return ErrCreditScoreRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error {
	return ErrCreditScoreRateLimited
}

// ErrorKind names the failure class of a flow error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrScoringNotConfigured):
		return "configuration"
	case errors.Is(err, ErrCreditScoreRateLimited):
		return "throttled"
	case errors.Is(err, scoringclient.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, scoringclient.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, scoringclient.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, scoringclient.ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, store.ErrCreditScoreNotFound):
		return "not_found"
	default:
		return "storage"
	}
}

// isBackoffError reports errors that will keep failing until the gateway recovers.
func isBackoffError(err error) bool {
	return errors.Is(err, scoringclient.ErrRateLimited) || errors.Is(err, scoringclient.ErrQuotaExhausted)
}
