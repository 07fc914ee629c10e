// Package report holds the report document produced by the pipeline and
// renders it as console text or as an HTML fragment.
package report

import (
	"context"
	"time"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

// Outcome is the path the pipeline took for one input.
type Outcome string

const (
	OutcomeNoEntries        Outcome = "no_entries"
	OutcomeNoSecurityEvents Outcome = "no_security_events"
	OutcomeSummarized       Outcome = "summarized"
	OutcomeDegraded         Outcome = "degraded"
	OutcomeError            Outcome = "error"
)

// User-facing report messages.
const (
	NoEntriesMessage        = "No valid log entries found"
	NoSecurityEventsMessage = "No security-critical events found"
	DegradedNote            = "Automated summarization was unavailable. Showing the raw security-critical events instead."
	DisabledNote            = "Automated summarization is disabled. Showing the raw security-critical events instead."
)

// Document is the single value threaded from the pipeline to every renderer
// and sink. It is not modified after the pipeline returns it.
type Document struct {
	ID          string
	Source      string
	GeneratedAt time.Time
	Duration    time.Duration

	AllEntries      []model.LogEntry
	SecurityEntries []model.LogEntry

	Outcome  Outcome
	Summary  string // set for OutcomeSummarized
	Note     string // set for OutcomeDegraded
	Error    string // set for OutcomeError, already safe to show
	Provider string // summarizer provider name, if one was called
}

// HasSecurityEvents reports whether the document carries any filtered events.
func (d *Document) HasSecurityEvents() bool {
	return len(d.SecurityEntries) > 0
}

// Sink receives finished documents (report file, Telegram, run ledger).
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Deliver stores or sends the document.
	Deliver(ctx context.Context, doc *Document) error
}
