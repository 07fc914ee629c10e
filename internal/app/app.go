// Package app assembles the pipeline and its sinks from configuration.
// Both binaries start here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/olegiv/seclog-ai-go/internal/ai"
	"github.com/olegiv/seclog-ai-go/internal/analyzer"
	"github.com/olegiv/seclog-ai-go/internal/config"
	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/metrics"
	"github.com/olegiv/seclog-ai-go/internal/notification"
	"github.com/olegiv/seclog-ai-go/internal/pipeline"
	"github.com/olegiv/seclog-ai-go/internal/report"
	"github.com/olegiv/seclog-ai-go/internal/storage"
)

// LedgerRetentionDays is how long run records are kept in the ledger.
const LedgerRetentionDays = 90

// App owns the orchestrator and the resources behind its sinks.
type App struct {
	Pipeline *pipeline.Orchestrator
	Store    *storage.Storage // nil unless ENABLE_DATABASE

	log     *logging.SecureLogger
	closers []func() error
}

// New wires the summarizer, classifier and sinks. extra sinks are
// delivered to before the configured ones. log and m may be nil.
func New(cfg *config.Config, log *logging.SecureLogger, m *metrics.Metrics, extra ...report.Sink) (*App, error) {
	if log == nil {
		log = logging.NewNop()
	}

	a := &App{log: log}
	sinks := append([]report.Sink(nil), extra...)

	summarizer, err := ai.NewSummarizer(cfg.SummarizerSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	if cfg.IsSummarizationDisabled() || summarizer == nil {
		log.Info().Msg("Summarization disabled, reports will list raw events")
	} else {
		log.Info().
			Str("provider", summarizer.GetProviderName()).
			Str("model", cfg.GetLLMModel()).
			Msg("Summarizer initialized")
	}

	classifier, err := analyzer.NewDefaultRegistry().Lookup(cfg.Classifier)
	if err != nil {
		return nil, err
	}

	if cfg.EnableDatabase {
		store, err := storage.New(cfg.DatabasePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		sinks = append(sinks, store)
		log.Info().Str("path", cfg.DatabasePath).Msg("Run ledger initialized")
	}

	if cfg.HasTelegram() {
		telegramClient, err := notification.NewTelegramClient(
			cfg.TelegramBotToken,
			cfg.TelegramArchiveChannel,
			cfg.TelegramAlertsChannel,
		)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		sinks = append(sinks, telegramClient)

		botInfo := telegramClient.GetBotInfo()
		log.Info().
			Str("username", fmt.Sprint(botInfo["username"])).
			Bool("alerts_channel", cfg.HasAlertsChannel()).
			Msg("Telegram delivery enabled")
	}

	a.Pipeline = pipeline.New(pipeline.Config{
		ParseMode:         cfg.ParseMode,
		FilterPolicy:      cfg.FilterPolicy,
		Classifier:        classifier,
		MaxLogSizeMB:      cfg.MaxLogSizeMB,
		SummarizerTimeout: cfg.SummarizerTimeout(),
		Sinks:             sinks,
	}, summarizer, log, m)

	return a, nil
}

// PruneLedger deletes run records older than LedgerRetentionDays.
// It does nothing without a ledger.
func (a *App) PruneLedger(ctx context.Context) {
	if a.Store == nil {
		return
	}

	deleted, err := a.Store.CleanupOldRuns(ctx, LedgerRetentionDays)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to clean up old runs")
		return
	}
	if deleted > 0 {
		a.log.Info().Int64("deleted", deleted).Msg("Old runs cleaned up")
	}
}

// LogLedgerSummary logs ledger totals and the number of runs in the last week.
func (a *App) LogLedgerSummary(ctx context.Context) {
	if a.Store == nil {
		return
	}

	stats, err := a.Store.GetStatistics(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to read ledger statistics")
		return
	}
	recent, err := a.Store.GetRecentRuns(ctx, 7)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to read recent runs")
		return
	}

	event := a.log.Info().
		Int("total_runs", stats.TotalRuns).
		Int("total_security_events", stats.TotalSecurityEvents).
		Int("runs_last_7_days", len(recent))
	for outcome, count := range stats.OutcomeDistribution {
		event = event.Int("outcome_"+outcome, count)
	}
	event.Msg("Run ledger summary")
}

// Close releases sink resources.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
