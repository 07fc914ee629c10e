package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// UsageError reports bad command-line input. The CLI prints it with usage
// text and exits 1.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// NewUsageError formats a UsageError.
func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// IOError reports a file that could not be read or written.
type IOError struct {
	Op   string // "read", "write", "stat", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, SanitizeError(e.Err))
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError wraps err as an IOError. It returns nil for a nil err.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// UserMessage returns text safe to show in a rendered report: credentials
// are redacted and file errors name only the base file name.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ioErr *IOError
	if stderrors.As(err, &ioErr) {
		return fmt.Sprintf("could not %s file %q: %s", ioErr.Op, filepath.Base(ioErr.Path), ioCause(ioErr.Err))
	}

	return SanitizeString(err.Error())
}

func ioCause(err error) string {
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return "file does not exist"
	case stderrors.Is(err, fs.ErrPermission):
		return "permission denied"
	}

	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		return SanitizeString(pathErr.Err.Error())
	}
	return SanitizeString(err.Error())
}
