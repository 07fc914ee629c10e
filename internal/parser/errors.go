package parser

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the two ways a log document can be rejected.
type ErrorKind int

const (
	// Malformed means the document is not a JSON array.
	Malformed ErrorKind = iota + 1
	// SchemaViolation means an element is not an object with string
	// timestamp and message fields.
	SchemaViolation
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case SchemaViolation:
		return "schema_violation"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrMalformed       = errors.New("malformed log document")
	ErrSchemaViolation = errors.New("log entry schema violation")
)

// ParseError is returned when a log document is rejected.
type ParseError struct {
	Kind   ErrorKind
	Index  int    // element index for SchemaViolation, -1 otherwise
	Detail string // human-readable reason
	Err    error  // underlying decoder error, if any
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case SchemaViolation:
		return fmt.Sprintf("invalid log entry at index %d: %s", e.Index, e.Detail)
	default:
		return fmt.Sprintf("malformed log file: %s", e.Detail)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformed and ErrSchemaViolation by kind.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrSchemaViolation:
		return e.Kind == SchemaViolation
	}
	return false
}
