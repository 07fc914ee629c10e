package ai

import (
	"errors"
	"fmt"

	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
)

// ErrorKind classifies summarizer failures.
type ErrorKind int

const (
	// Unavailable covers transport failures, timeouts and non-2xx replies.
	Unavailable ErrorKind = iota + 1
	// InvalidResponse covers replies that cannot be decoded or carry no text.
	InvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case InvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrUnavailable     = errors.New("summarizer unavailable")
	ErrInvalidResponse = errors.New("summarizer returned an invalid response")
)

// SummarizerError is returned by every Summarizer implementation.
type SummarizerError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int // HTTP status when the service answered, 0 otherwise
	Err        error
}

func (e *SummarizerError) Error() string {
	return fmt.Sprintf("%s summarizer %s: %v", e.Provider, e.Kind, apperrors.SanitizeError(e.Err))
}

func (e *SummarizerError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnavailable and ErrInvalidResponse by kind.
func (e *SummarizerError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == Unavailable
	case ErrInvalidResponse:
		return e.Kind == InvalidResponse
	}
	return false
}

func unavailable(provider string, err error) *SummarizerError {
	return &SummarizerError{Kind: Unavailable, Provider: provider, Err: err}
}

func invalidResponse(provider string, err error) *SummarizerError {
	return &SummarizerError{Kind: InvalidResponse, Provider: provider, Err: err}
}

// ErrorKindOf returns the kind of a summarizer failure, or 0 when err is
// not a *SummarizerError.
func ErrorKindOf(err error) ErrorKind {
	var se *SummarizerError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
