// Package pipeline runs one log document through parse, filter, summarize
// and report assembly. The CLI and the server share it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/seclog-ai-go/internal/ai"
	"github.com/olegiv/seclog-ai-go/internal/analyzer"
	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/metrics"
	"github.com/olegiv/seclog-ai-go/internal/model"
	"github.com/olegiv/seclog-ai-go/internal/parser"
	"github.com/olegiv/seclog-ai-go/internal/report"
)

// DefaultSummarizerTimeout bounds a single summarizer call including retries.
const DefaultSummarizerTimeout = 30 * time.Second

// Config holds the per-deployment pipeline choices.
type Config struct {
	ParseMode         parser.Mode
	FilterPolicy      analyzer.FilterPolicy
	Classifier        analyzer.Classifier
	MaxLogSizeMB      int
	SummarizerTimeout time.Duration
	Sinks             []report.Sink
}

// Orchestrator sequences the pipeline stages. It holds no per-run state and
// is safe for concurrent use.
type Orchestrator struct {
	parser     *parser.Parser
	policy     analyzer.FilterPolicy
	summarizer ai.Summarizer
	timeout    time.Duration
	sinks      []report.Sink
	log        *logging.SecureLogger
	metrics    *metrics.Metrics
}

// New creates an orchestrator. summarizer may be nil (provider "none"),
// log may be nil and m may be nil.
func New(cfg Config, summarizer ai.Summarizer, log *logging.SecureLogger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Component("pipeline")

	if cfg.FilterPolicy == "" {
		cfg.FilterPolicy = analyzer.PolicySeverity
	}
	if cfg.SummarizerTimeout <= 0 {
		cfg.SummarizerTimeout = DefaultSummarizerTimeout
	}

	if cfg.FilterPolicy.IsLegacy() {
		log.Warn().
			Str("filter_policy", string(cfg.FilterPolicy)).
			Msg("Legacy keyword filter policy in use; entries flagged only as unauthorized will not be reported")
	}

	return &Orchestrator{
		parser:     parser.New(cfg.ParseMode, cfg.Classifier, cfg.MaxLogSizeMB),
		policy:     cfg.FilterPolicy,
		summarizer: summarizer,
		timeout:    cfg.SummarizerTimeout,
		sinks:      cfg.Sinks,
		log:        log,
		metrics:    m,
	}
}

// Run processes an in-memory log document.
// It always returns a document. The error is non-nil only when the input
// could not be parsed, and the document then carries the error text.
func (o *Orchestrator) Run(ctx context.Context, input []byte) (*report.Document, error) {
	start := time.Now()
	doc := o.newDocument("input")

	entries, stats, err := o.parser.ParseWithStats(input)
	return o.finish(ctx, doc, start, entries, stats, err)
}

// RunFile reads and processes a log file. Read failures are returned as
// *errors.IOError along with an error document.
func (o *Orchestrator) RunFile(ctx context.Context, path string) (*report.Document, error) {
	start := time.Now()
	doc := o.newDocument(filepath.Base(path))

	entries, stats, err := o.parser.ReadFile(path)
	return o.finish(ctx, doc, start, entries, stats, err)
}

func (o *Orchestrator) newDocument(source string) *report.Document {
	return &report.Document{
		ID:          uuid.New().String(),
		Source:      source,
		GeneratedAt: time.Now(),
	}
}

func (o *Orchestrator) finish(ctx context.Context, doc *report.Document, start time.Time,
	entries []model.LogEntry, stats parser.Stats, err error) (*report.Document, error) {
	defer func() {
		doc.Duration = time.Since(start)
		o.metrics.PipelineRun(string(doc.Outcome))
		o.log.Info().
			Str("run_id", doc.ID).
			Str("source", doc.Source).
			Int("entries", len(doc.AllEntries)).
			Int("security_events", len(doc.SecurityEntries)).
			Str("outcome", string(doc.Outcome)).
			Str("provider", doc.Provider).
			DurMs("duration_ms", doc.Duration).
			Msg("Pipeline run finished")
	}()

	if err != nil {
		doc.Outcome = report.OutcomeError
		doc.Error = apperrors.UserMessage(err)
		o.log.Warn().Str("run_id", doc.ID).Err(err).Msg("Input rejected")
		return doc, err
	}

	if stats.Skipped > 0 || stats.Dropped > 0 {
		o.log.Debug().
			Str("run_id", doc.ID).
			Int("total", stats.Total).
			Int("skipped", stats.Skipped).
			Int("dropped", stats.Dropped).
			Msg("Some log elements were not kept")
	}

	doc.AllEntries = entries
	if len(entries) == 0 {
		doc.Outcome = report.OutcomeNoEntries
		return doc, nil
	}

	doc.SecurityEntries = analyzer.Filter(entries, o.policy)
	if !doc.HasSecurityEvents() {
		doc.Outcome = report.OutcomeNoSecurityEvents
		return doc, nil
	}

	o.summarize(ctx, doc)
	return doc, nil
}

// summarize fills in either the summary or the degraded note.
func (o *Orchestrator) summarize(ctx context.Context, doc *report.Document) {
	if o.summarizer == nil {
		doc.Outcome = report.OutcomeDegraded
		doc.Note = report.DisabledNote
		return
	}

	doc.Provider = o.summarizer.GetProviderName()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := ai.BuildPrompt(doc.SecurityEntries)
	summary, stats, err := o.summarizer.Summarize(callCtx, prompt)
	if err != nil {
		kind := ai.ErrorKindOf(err)
		if kind == 0 {
			// Non-conforming implementations are treated as unreachable.
			kind = ai.Unavailable
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", o.timeout, err)
		}

		o.metrics.SummarizerFailed(kind.String())
		o.log.Warn().
			Str("run_id", doc.ID).
			Str("provider", doc.Provider).
			Str("kind", kind.String()).
			Err(err).
			Msg("Summarization failed, reporting raw events")

		doc.Outcome = report.OutcomeDegraded
		doc.Note = report.DegradedNote
		return
	}

	doc.Outcome = report.OutcomeSummarized
	doc.Summary = summary
	if stats != nil {
		o.log.Debug().
			Str("run_id", doc.ID).
			Int("input_tokens", stats.InputTokens).
			Int("output_tokens", stats.OutputTokens).
			Float64("cost_usd", stats.CostUSD).
			Int("attempts", stats.Attempts).
			Msg("Summarizer call succeeded")
	}
}

// Deliver hands the document to every configured sink. A failing sink does
// not stop the others; all failures are joined.
func (o *Orchestrator) Deliver(ctx context.Context, doc *report.Document) error {
	var errs []error
	for _, sink := range o.sinks {
		if err := sink.Deliver(ctx, doc); err != nil {
			o.log.Error().Str("sink", sink.Name()).Str("run_id", doc.ID).Err(err).Msg("Report delivery failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunAndDeliver runs the pipeline on a file and delivers the result.
// Only sink failures are returned in deliverErr.
func (o *Orchestrator) RunAndDeliver(ctx context.Context, path string) (doc *report.Document, runErr, deliverErr error) {
	doc, runErr = o.RunFile(ctx, path)
	if runErr != nil {
		return doc, runErr, nil
	}
	return doc, nil, o.Deliver(ctx, doc)
}
