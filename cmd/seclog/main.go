package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/olegiv/seclog-ai-go/internal/app"
	"github.com/olegiv/seclog-ai-go/internal/config"
	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/report"
	"github.com/olegiv/seclog-ai-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, err := config.ParseCLI(args, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if cli.ShowHelp {
		return exitSuccess
	}

	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "seclog %s\n", version)
		if gitCommit != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := config.LoadWithOverrides(&cli.Overrides)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// File logging only; stdout carries the report
	log := logging.NewSecure(logger.New(logger.Config{
		Level:    cfg.LogLevel,
		LogDir:   cfg.LogDir,
		Filename: "seclog.log",
	}))
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().
		Str("input", cli.InputPath).
		Str("provider", cfg.LLMProvider).
		Str("parse_mode", string(cfg.ParseMode)).
		Str("filter_policy", string(cfg.FilterPolicy)).
		Msg("Starting seclog")

	var extra []report.Sink
	textOpts := report.TextOptions{ShowSeverity: true}
	if cli.OutputPath != "" {
		extra = append(extra, report.NewFileSink(cli.OutputPath, textOpts))
	}

	application, err := app.New(cfg, log, nil, extra...)
	if err != nil {
		log.Error().Err(err).Msg("Initialization failed")
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", apperrors.UserMessage(err))
		return exitFailure
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resources")
		}
	}()

	doc, runErr, deliverErr := application.Pipeline.RunAndDeliver(ctx, cli.InputPath)
	if runErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", doc.Error)
		return exitFailure
	}

	if err := report.RenderText(stdout, doc, textOpts); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: failed to write report: %v\n", err)
		return exitFailure
	}

	if deliverErr != nil {
		var ioErr *apperrors.IOError
		if errors.As(deliverErr, &ioErr) {
			_, _ = fmt.Fprintf(stderr, "Error: %s\n", apperrors.UserMessage(ioErr))
			return exitFailure
		}
		// Notification and ledger failures do not fail the run
		_, _ = fmt.Fprintf(stderr, "Warning: report delivery incomplete: %s\n", apperrors.UserMessage(deliverErr))
	}

	if cli.OutputPath != "" {
		_, _ = fmt.Fprintf(stderr, "Report written to %s\n", cli.OutputPath)
	}

	application.PruneLedger(ctx)

	log.Info().Str("outcome", string(doc.Outcome)).Msg("seclog finished")
	return exitSuccess
}
