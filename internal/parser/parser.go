// Package parser decodes JSON log documents into classified entries.
//
// The accepted format is a single JSON array of objects, each carrying
// string "timestamp" and "message" fields. Unknown fields are ignored.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olegiv/seclog-ai-go/internal/analyzer"
	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/model"
)

// Mode controls how elements that break the schema are handled.
type Mode string

const (
	// ModeStrict fails the whole document on the first invalid element.
	ModeStrict Mode = "strict"

	// ModePermissive skips invalid elements and keeps going.
	ModePermissive Mode = "permissive"
)

// DefaultMaxSizeMB is the file size cap used when none is configured.
const DefaultMaxSizeMB = 10

// ParseMode converts a config string to a Mode. Empty selects ModeStrict.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModePermissive:
		return ModePermissive, nil
	default:
		return "", fmt.Errorf("invalid parse mode: %q (valid modes: strict, permissive)", s)
	}
}

// Stats counts what happened to each element of a document.
type Stats struct {
	Total   int // elements in the array
	Kept    int // entries returned
	Skipped int // schema-invalid elements skipped in permissive mode
	Dropped int // elements with an empty timestamp or message
}

// Parser turns log documents into entries.
type Parser struct {
	mode       Mode
	classifier analyzer.Classifier
	maxSizeMB  int
}

// New creates a parser. A nil classifier selects the keyword classifier and
// a non-positive maxSizeMB selects DefaultMaxSizeMB.
func New(mode Mode, classifier analyzer.Classifier, maxSizeMB int) *Parser {
	if mode == "" {
		mode = ModeStrict
	}
	if classifier == nil {
		classifier = analyzer.NewKeywordClassifier()
	}
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &Parser{
		mode:       mode,
		classifier: classifier,
		maxSizeMB:  maxSizeMB,
	}
}

// Mode returns the configured mode.
func (p *Parser) Mode() Mode {
	return p.mode
}

// Parse decodes data and returns the valid entries in input order.
func (p *Parser) Parse(data []byte) ([]model.LogEntry, error) {
	entries, _, err := p.ParseWithStats(data)
	return entries, err
}

// ParseWithStats is Parse plus per-element bookkeeping.
func (p *Parser) ParseWithStats(data []byte) ([]model.LogEntry, Stats, error) {
	var stats Stats

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, stats, &ParseError{Kind: Malformed, Index: -1, Detail: "document is empty"}
	}
	if trimmed[0] != '[' {
		return nil, stats, &ParseError{Kind: Malformed, Index: -1, Detail: "top-level value is not a JSON array"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, stats, &ParseError{Kind: Malformed, Index: -1, Detail: "invalid JSON", Err: err}
	}

	stats.Total = len(elements)
	entries := make([]model.LogEntry, 0, len(elements))

	for i, raw := range elements {
		ts, msg, detail := decodeElement(raw)
		if detail != "" {
			if p.mode == ModeStrict {
				return nil, stats, &ParseError{Kind: SchemaViolation, Index: i, Detail: detail}
			}
			stats.Skipped++
			continue
		}

		if ts == "" || msg == "" {
			stats.Dropped++
			continue
		}

		entries = append(entries, model.LogEntry{
			Timestamp: ts,
			Message:   msg,
			Severity:  analyzer.Classify(p.classifier, msg),
		})
	}

	stats.Kept = len(entries)
	return entries, stats, nil
}

// ReadFile checks and reads a log file, then parses it.
// Filesystem failures are returned as *errors.IOError.
func (p *Parser) ReadFile(path string) ([]model.LogEntry, Stats, error) {
	data, err := p.readFile(path)
	if err != nil {
		return nil, Stats{}, err
	}
	return p.ParseWithStats(data)
}

func (p *Parser) readFile(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewIOError("read", path, err)
	}

	if fileInfo.IsDir() {
		return nil, apperrors.NewIOError("read", path, fmt.Errorf("is a directory"))
	}

	if fileInfo.Mode().Perm()&0400 == 0 {
		return nil, apperrors.NewIOError("read", path, os.ErrPermission)
	}

	maxBytes := int64(p.maxSizeMB) * 1024 * 1024
	if fileInfo.Size() > maxBytes {
		return nil, apperrors.NewIOError("read", path,
			fmt.Errorf("file exceeds maximum size of %dMB (size: %.2fMB)",
				p.maxSizeMB, float64(fileInfo.Size())/1024/1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("read", path, err)
	}
	return data, nil
}

// decodeElement extracts the two required fields. A non-empty detail means
// the element breaks the schema.
func decodeElement(raw json.RawMessage) (timestamp, message, detail string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return "", "", "element is not a JSON object"
	}

	timestamp, ok := stringField(obj, "timestamp")
	if !ok {
		return "", "", `missing or non-string field "timestamp"`
	}
	message, ok = stringField(obj, "message")
	if !ok {
		return "", "", `missing or non-string field "message"`
	}
	return timestamp, message, ""
}

// stringField reports the field value and whether it is a JSON string.
// A JSON null is not a string.
func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
