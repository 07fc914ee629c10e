// Package multipart recovers an uploaded file from a raw multipart/form-data
// request body.
//
// The extractor is byte oriented: it only looks for ASCII delimiter tokens
// and never decodes the payload, so binary and non-UTF-8 uploads come back
// unchanged.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// ErrorKind classifies extraction failures.
type ErrorKind int

const (
	// NoBoundary means the Content-Type carries no usable boundary parameter.
	NoBoundary ErrorKind = iota + 1
	// NoFilenamePart means no part declares a filename.
	NoFilenamePart
	// Truncated means the body ends inside a part.
	Truncated
)

func (k ErrorKind) String() string {
	switch k {
	case NoBoundary:
		return "no_boundary"
	case NoFilenamePart:
		return "no_filename_part"
	case Truncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrNoBoundary     = errors.New("multipart boundary not found")
	ErrNoFilenamePart = errors.New("no file part in multipart body")
	ErrTruncated      = errors.New("multipart body is truncated")
)

// ExtractionError is returned when no file can be recovered.
type ExtractionError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return e.sentinel().Error()
	}
	return e.sentinel().Error() + ": " + e.Detail
}

// Is matches the package sentinels by kind.
func (e *ExtractionError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *ExtractionError) sentinel() error {
	switch e.Kind {
	case NoBoundary:
		return ErrNoBoundary
	case NoFilenamePart:
		return ErrNoFilenamePart
	default:
		return ErrTruncated
	}
}

var (
	crlf      = []byte("\r\n")
	headerEnd = []byte("\r\n\r\n")
)

// BoundaryFromContentType returns the boundary parameter of a Content-Type
// header value. Surrounding quotes and any following parameters are removed.
func BoundaryFromContentType(value string) (string, error) {
	idx := strings.Index(strings.ToLower(value), "boundary=")
	if idx < 0 {
		return "", &ExtractionError{Kind: NoBoundary, Detail: "content type has no boundary parameter"}
	}

	boundary := value[idx+len("boundary="):]
	if strings.HasPrefix(boundary, `"`) {
		end := strings.Index(boundary[1:], `"`)
		if end < 0 {
			return "", &ExtractionError{Kind: NoBoundary, Detail: "unterminated quoted boundary"}
		}
		boundary = boundary[1 : end+1]
	} else if semi := strings.IndexAny(boundary, "; \t\r\n"); semi >= 0 {
		boundary = boundary[:semi]
	}

	if boundary == "" {
		return "", &ExtractionError{Kind: NoBoundary, Detail: "empty boundary parameter"}
	}
	return boundary, nil
}

// Extract returns the content of the first part whose headers declare a
// filename. The content starts right after the blank line that ends the
// part headers and stops before the CRLF that precedes the next delimiter.
// The returned slice is a copy; body is not retained.
func Extract(body []byte, boundary string) ([]byte, error) {
	if boundary == "" {
		return nil, &ExtractionError{Kind: NoBoundary, Detail: "empty boundary"}
	}

	delimiter := []byte("--" + boundary)
	nextDelimiter := append(append([]byte{}, crlf...), delimiter...)

	start := bytes.Index(body, delimiter)
	if start < 0 {
		return nil, &ExtractionError{Kind: NoFilenamePart, Detail: "body contains no boundary delimiter"}
	}
	pos := start + len(delimiter)

	for {
		rest := body[pos:]
		if bytes.HasPrefix(rest, []byte("--")) {
			return nil, &ExtractionError{Kind: NoFilenamePart}
		}

		hdrEnd := bytes.Index(rest, headerEnd)
		if hdrEnd < 0 {
			return nil, &ExtractionError{Kind: Truncated, Detail: "part headers are not terminated"}
		}
		headers := rest[:hdrEnd]
		content := rest[hdrEnd+len(headerEnd):]

		end := bytes.Index(content, nextDelimiter)
		if end < 0 {
			return nil, &ExtractionError{Kind: Truncated, Detail: "closing boundary not found"}
		}

		if hasFilename(headers) {
			out := make([]byte, end)
			copy(out, content[:end])
			return out, nil
		}

		// Skip to just past the next delimiter.
		pos += hdrEnd + len(headerEnd) + end + len(nextDelimiter)
	}
}

// hasFilename reports whether the part's Content-Disposition header has a
// filename parameter.
func hasFilename(headers []byte) bool {
	for _, line := range strings.Split(string(headers), "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Disposition") {
			continue
		}
		if _, params, err := mime.ParseMediaType(value); err == nil {
			_, found := params["filename"]
			return found
		}
		return hasFilenameParam(value)
	}
	return false
}

// hasFilenameParam scans the parameters of a disposition value that
// mime.ParseMediaType rejects, such as an unquoted filename with spaces.
func hasFilenameParam(value string) bool {
	params := strings.Split(value, ";")
	for _, param := range params[1:] {
		key, _, _ := strings.Cut(param, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "filename" || key == "filename*" {
			return true
		}
	}
	return false
}

// ExtractFromRequest combines BoundaryFromContentType and Extract.
func ExtractFromRequest(contentType string, body []byte) ([]byte, error) {
	boundary, err := BoundaryFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	data, err := Extract(body, boundary)
	if err != nil {
		return nil, fmt.Errorf("boundary %q: %w", boundary, err)
	}
	return data, nil
}
