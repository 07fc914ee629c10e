// Package storage keeps a SQLite ledger of pipeline runs.
//
// Only counts and outcomes are recorded; log content and summaries are never
// persisted.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/model"
	"github.com/olegiv/seclog-ai-go/internal/report"
)

// Storage handles database operations
type Storage struct {
	db  *sql.DB
	log *logging.SecureLogger
}

// Run is one ledger row.
type Run struct {
	ID             int64
	RunID          string
	Timestamp      time.Time
	Source         string
	Outcome        string
	TotalEntries   int
	SecurityEvents int
	HighCount      int
	MediumCount    int
	Provider       string
	DurationMs     int64
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// New opens (creating if needed) the ledger at dbPath. log may be nil.
func New(dbPath string, log *logging.SecureLogger) (*Storage, error) {
	if log == nil {
		log = logging.NewNop()
	}

	// Owner-only directory
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The busy timeout avoids "database is locked" errors when the server
	// records runs from several connections at once.
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db, log: log.Component("storage")}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 1

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version := s.getSchemaVersion()

	if err := s.migrateSchema(version); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	s.log.Info().
		Int("from", currentVersion).
		Int("to", currentSchemaVersion).
		Msg("Migrating schema")

	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	s.log.Info().Int("version", currentSchemaVersion).Msg("Schema migration completed")
	return nil
}

// migrateV1 creates the runs table
func (s *Storage) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		total_entries INTEGER DEFAULT 0,
		security_events INTEGER DEFAULT 0,
		high_count INTEGER DEFAULT 0,
		medium_count INTEGER DEFAULT 0,
		provider TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RunFromDocument builds a ledger row from a report document.
func RunFromDocument(doc *report.Document) *Run {
	counts := model.CountBySeverity(doc.SecurityEntries)
	return &Run{
		RunID:          doc.ID,
		Timestamp:      doc.GeneratedAt,
		Source:         doc.Source,
		Outcome:        string(doc.Outcome),
		TotalEntries:   len(doc.AllEntries),
		SecurityEvents: len(doc.SecurityEntries),
		HighCount:      counts[model.SeverityHigh.String()],
		MediumCount:    counts[model.SeverityMedium.String()],
		Provider:       doc.Provider,
		DurationMs:     doc.Duration.Milliseconds(),
	}
}

// SaveRun inserts a run and sets its ID.
func (s *Storage) SaveRun(ctx context.Context, run *Run) error {
	ts := run.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO runs (
			run_id, timestamp, source, outcome, total_entries, security_events,
			high_count, medium_count, provider, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx,
		query,
		run.RunID,
		ts.UTC().Format(time.RFC3339),
		run.Source,
		run.Outcome,
		run.TotalEntries,
		run.SecurityEvents,
		run.HighCount,
		run.MediumCount,
		run.Provider,
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// Name implements report.Sink.
func (s *Storage) Name() string {
	return "ledger"
}

// Deliver implements report.Sink by recording the run.
func (s *Storage) Deliver(ctx context.Context, doc *report.Document) error {
	return s.SaveRun(ctx, RunFromDocument(doc))
}

// GetRecentRuns retrieves runs from the last N days, newest first.
func (s *Storage) GetRecentRuns(ctx context.Context, days int) ([]*Run, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)

	query := `
		SELECT id, run_id, timestamp, source, outcome, total_entries, security_events,
		       high_count, medium_count, provider, duration_ms
		FROM runs
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoffDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close database rows")
		}
	}(rows)

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CleanupOldRuns deletes runs older than N days
func (s *Storage) CleanupOldRuns(ctx context.Context, days int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE timestamp < ?`, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// Statistics summarizes the ledger.
type Statistics struct {
	TotalRuns           int
	TotalSecurityEvents int
	OutcomeDistribution map[string]int
}

// GetStatistics returns ledger totals and the outcome distribution.
func (s *Storage) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{OutcomeDistribution: make(map[string]int)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(security_events), 0) FROM runs`,
	).Scan(&stats.TotalRuns, &stats.TotalSecurityEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM runs GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close database rows")
		}
	}(rows)

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		stats.OutcomeDistribution[outcome] = count
	}

	return stats, rows.Err()
}

// scanRun scans a database row into a Run struct
func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run       Run
		timestamp string
	)

	err := rows.Scan(
		&run.ID, &run.RunID, &timestamp, &run.Source, &run.Outcome,
		&run.TotalEntries, &run.SecurityEvents, &run.HighCount, &run.MediumCount,
		&run.Provider, &run.DurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	run.Timestamp, err = time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return &run, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
