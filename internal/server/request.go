package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"net/textproto"
	"strconv"
	"strings"
)

var (
	// ErrBodyTooLarge is returned when a request body exceeds the upload cap.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrMalformedRequest is returned for an unparseable request line.
	ErrMalformedRequest = errors.New("malformed request line")
)

// Request is one parsed HTTP request. It lives only for its connection.
type Request struct {
	Method string
	Target string
	Path   string
	Proto  string
	Header textproto.MIMEHeader
	Body   []byte
}

// readRequest reads the request line, headers and body.
// The body is framed by Content-Length or chunked transfer encoding and
// never exceeds maxBody bytes.
func readRequest(br *bufio.Reader, maxBody int64) (*Request, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read request line: %w", err)
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	req.Header, err = tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read request headers: %w", err)
	}

	req.Body, err = readBody(br, req.Header, maxBody)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" || !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequest, truncateLine(line))
	}

	path, _, _ := strings.Cut(target, "?")
	return &Request{
		Method: method,
		Target: target,
		Path:   path,
		Proto:  proto,
	}, nil
}

func readBody(br *bufio.Reader, header textproto.MIMEHeader, maxBody int64) ([]byte, error) {
	if strings.Contains(strings.ToLower(header.Get("Transfer-Encoding")), "chunked") {
		data, err := io.ReadAll(io.LimitReader(httputil.NewChunkedReader(br), maxBody+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunked body: %w", err)
		}
		if int64(len(data)) > maxBody {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxBody)
		}
		return data, nil
	}

	value := header.Get("Content-Length")
	if value == "" {
		return nil, nil
	}

	length, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("invalid Content-Length: %q", value)
	}
	if length > maxBody {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrBodyTooLarge, length, maxBody)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

func truncateLine(s string) string {
	const limit = 64
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
