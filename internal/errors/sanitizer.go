// Package errors defines the seclog error kinds and redacts credentials
// from any error text that reaches logs or rendered reports.
package errors

import (
	"fmt"
	"regexp"
)

// Credential patterns to redact from error messages
var credentialPatterns = []*regexp.Regexp{
	// Anthropic API key: sk-ant-api03-... or sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{10,}`),
	// OpenAI-style keys accepted by LM Studio compatible servers
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{32,}`),
	// Telegram bot token, also inside api.telegram.org/bot<token>/ URLs
	regexp.MustCompile(`\d{8,12}:[a-zA-Z0-9_-]{30,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`),
	regexp.MustCompile(`(?i)authorization[:\s]+[^\s]+`),
	regexp.MustCompile(`(?i)api[_-]?key[=:][^\s&"']+`),
	regexp.MustCompile(`(?i)x-api-key[:\s]+[^\s]+`),
}

// userinfoPattern matches the user:password@ part of proxy and provider URLs.
var userinfoPattern = regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://)[^/\s@:]+:[^/\s@]+@`)

const redactedPlaceholder = "[REDACTED]"

// SanitizeError wraps err so that its message carries no credentials.
// The original error stays reachable through errors.Is and errors.As.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	sanitized := SanitizeString(err.Error())
	if sanitized == err.Error() {
		return err
	}

	return &sanitizedError{
		original:  err,
		sanitized: sanitized,
	}
}

// SanitizeString redacts credential patterns from a string.
func SanitizeString(s string) string {
	result := userinfoPattern.ReplaceAllString(s, "${1}"+redactedPlaceholder+"@")
	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// Wrapf is fmt.Errorf("...: %w", err) for errors that may contain credentials.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, SanitizeError(err))
}

type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string {
	return e.sanitized
}

func (e *sanitizedError) Unwrap() error {
	return e.original
}
