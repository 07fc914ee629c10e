package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIOError_Unwrap(t *testing.T) {
	err := NewIOError("read", "/tmp/x.json", fs.ErrNotExist)

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatal("expected *IOError")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("IOError should unwrap to fs.ErrNotExist")
	}
	if !strings.Contains(err.Error(), "failed to read /tmp/x.json") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewIOError_Nil(t *testing.T) {
	if err := NewIOError("read", "x", nil); err != nil {
		t.Errorf("NewIOError(nil) = %v, want nil", err)
	}
}

func TestUsageError(t *testing.T) {
	err := NewUsageError("expected %d arguments", 1)
	if err.Error() != "expected 1 arguments" {
		t.Errorf("Error() = %q", err.Error())
	}

	var usage *UsageError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &usage) {
		t.Error("errors.As should find *UsageError through wrapping")
	}
}

func TestUserMessage(t *testing.T) {
	dir := t.TempDir()
	_, statErr := os.Stat(filepath.Join(dir, "missing.json"))

	tests := []struct {
		name        string
		err         error
		contains    string
		notContains string
	}{
		{
			name:     "nil",
			err:      nil,
			contains: "",
		},
		{
			name:        "missing file hides directory",
			err:         NewIOError("read", filepath.Join(dir, "missing.json"), statErr),
			contains:    `could not read file "missing.json": file does not exist`,
			notContains: dir,
		},
		{
			name:     "permission",
			err:      NewIOError("write", "/var/out/report.txt", fs.ErrPermission),
			contains: "permission denied",
		},
		{
			name:        "credential redacted",
			err:         errors.New("call failed with key sk-ant-REDACTED"),
			contains:    "[REDACTED]",
			notContains: "sk-ant-api03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("UserMessage() = %q, want to contain %q", got, tt.contains)
			}
			if tt.notContains != "" && strings.Contains(got, tt.notContains) {
				t.Errorf("UserMessage() = %q, should not contain %q", got, tt.notContains)
			}
		})
	}
}
