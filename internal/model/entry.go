// Package model holds the log entry record shared by every stage of the
// reporting pipeline.
package model

import (
	"fmt"
	"strings"
)

// Severity is the closed set of levels assigned to a log entry at parse time.
type Severity int

// Severity levels, lowest first.
const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// severityNames maps severity levels to their report names.
var severityNames = map[Severity]string{
	SeverityLow:    "LOW",
	SeverityMedium: "MEDIUM",
	SeverityHigh:   "HIGH",
}

// String returns the report name of the severity (LOW, MEDIUM, HIGH).
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseSeverity returns the severity for a name, ignoring case.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, n := range severityNames {
		if n == upper {
			return level, nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity: %q", name)
}

// LogEntry is a single parsed log record.
// Entries are created by the parser and never modified afterwards.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// Valid reports whether both timestamp and message are non-empty.
func (e LogEntry) Valid() bool {
	return e.Timestamp != "" && e.Message != ""
}

// Line formats the entry as "{timestamp}: {message}", optionally annotated
// with " [Severity: {name}]".
func (e LogEntry) Line(withSeverity bool) string {
	line := e.Timestamp + ": " + e.Message
	if withSeverity {
		line += " [Severity: " + e.Severity.String() + "]"
	}
	return line
}

// CountBySeverity returns the number of entries per severity name.
func CountBySeverity(entries []LogEntry) map[string]int {
	counts := make(map[string]int, len(severityNames))
	for _, e := range entries {
		counts[e.Severity.String()]++
	}
	return counts
}
