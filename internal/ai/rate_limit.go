package ai

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	// rateLimitBaseBackoff is the initial wait time for rate limit errors (60 seconds)
	// This is appropriate for Anthropic's token-based rate limits which reset per minute
	rateLimitBaseBackoff = 60 * time.Second

	// rateLimitMaxBackoff is the maximum wait time for rate limit errors (2 minutes)
	rateLimitMaxBackoff = 120 * time.Second

	// maxStandardBackoff caps the exponential backoff for ordinary failures
	maxStandardBackoff = 8 * time.Second
)

// isRateLimitError detects if an error is a rate limit error from any LLM provider.
// It checks the Anthropic SDK error type, the HTTP status recorded on a
// SummarizerError, and finally the error message.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimitErr()
	}

	var se *SummarizerError
	if errors.As(err, &se) && se.StatusCode != 0 {
		return se.StatusCode == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// isOverloadedError detects if an error indicates API overload.
// Overloaded errors should be treated similarly to rate limits.
func isOverloadedError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsOverloadedErr()
	}

	var se *SummarizerError
	if errors.As(err, &se) && se.StatusCode != 0 {
		return se.StatusCode == http.StatusServiceUnavailable
	}

	return strings.Contains(strings.ToLower(err.Error()), "overloaded")
}

// getBackoffDuration returns the appropriate backoff duration based on error type.
// Rate limit and overload errors get longer backoff times (60-120 seconds),
// while other errors use standard exponential backoff (2^n seconds, capped).
func getBackoffDuration(err error, attempt int) time.Duration {
	if isRateLimitError(err) || isOverloadedError(err) {
		backoff := rateLimitBaseBackoff * time.Duration(attempt)
		if backoff > rateLimitMaxBackoff {
			return rateLimitMaxBackoff
		}
		return backoff
	}

	backoff := time.Duration(1<<attempt) * time.Second
	if backoff > maxStandardBackoff {
		return maxStandardBackoff
	}
	return backoff
}
