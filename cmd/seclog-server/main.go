package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/olegiv/seclog-ai-go/internal/app"
	"github.com/olegiv/seclog-ai-go/internal/config"
	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/metrics"
	"github.com/olegiv/seclog-ai-go/internal/server"
	"github.com/olegiv/seclog-ai-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1

	shutdownTimeout = 10 * time.Second
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
	opts, err := config.ParseServerCLI(args, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if opts.ShowHelp {
		return exitSuccess
	}

	if opts.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "seclog-server %s\n", version)
		if gitCommit != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	cfg, err := config.LoadWithOverrides(&opts.Overrides)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	log := logging.NewSecure(logger.New(logger.Config{
		Level:    cfg.LogLevel,
		LogDir:   cfg.LogDir,
		Filename: "seclog-server.log",
		Console:  true,
	}))
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to close logger: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	application, err := app.New(cfg, log, m)
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

	application.LogLedgerSummary(ctx)
	application.PruneLedger(ctx)

	if cfg.MetricsAddr != "" {
		admin := metrics.NewAdminServer(cfg.MetricsAddr, reg)
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics listener failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := admin.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics listener shutdown failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics listener started")
	}

	srv := server.New(serverConfig(cfg), application.Pipeline, log, m)

	log.Info().
		Str("version", version).
		Str("addr", cfg.ServerAddr).
		Str("provider", cfg.LLMProvider).
		Int("max_connections", cfg.MaxConnections).
		Msg("Starting seclog-server")

	if err := srv.Serve(ctx, shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", apperrors.UserMessage(err))
		return exitFailure
	}

	log.Info().Msg("seclog-server stopped")
	return exitSuccess
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Addr:             cfg.ServerAddr,
		MaxConnections:   cfg.MaxConnections,
		AcceptRatePerSec: cfg.AcceptRatePerSec,
		ReadTimeout:      time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:     time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxUploadMB:      cfg.MaxUploadMB,
		DefaultInputPath: cfg.DefaultInputPath,
		UploadDir:        cfg.UploadDir,
		IndexHTMLPath:    cfg.IndexHTMLPath,
	}
}
