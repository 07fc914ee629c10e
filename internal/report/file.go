package report

import (
	"context"
	"os"
	"path/filepath"

	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
)

// FileSink writes the plain text report to a file.
type FileSink struct {
	Path    string
	Options TextOptions
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string, opts TextOptions) *FileSink {
	return &FileSink{Path: path, Options: opts}
}

// Name returns "file".
func (s *FileSink) Name() string {
	return "file"
}

// Deliver writes the report, replacing any existing file.
// Failures are *errors.IOError.
func (s *FileSink) Deliver(_ context.Context, doc *Document) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewIOError("write", s.Path, err)
		}
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return apperrors.NewIOError("write", s.Path, err)
	}

	if err := RenderText(f, doc, s.Options); err != nil {
		_ = f.Close()
		return apperrors.NewIOError("write", s.Path, err)
	}

	if err := f.Close(); err != nil {
		return apperrors.NewIOError("write", s.Path, err)
	}
	return nil
}

var _ Sink = (*FileSink)(nil)
