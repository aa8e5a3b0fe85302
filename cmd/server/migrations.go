package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/ereuna/internal/platform/postgres/migrations"
	"github.com/pressly/goose/v3"
)

// migrationsDir is the root of the embedded migrations filesystem.
const migrationsDir = "."

// ErrPendingMigrations is returned at start-up when the schema is behind the
// embedded migrations.
var ErrPendingMigrations = errors.New("database has pending migrations")

var migrationCommands = map[string]bool{
	"up":      true,
	"down":    true,
	"reset":   true,
	"status":  true,
	"version": true,
}

// slogGooseLogger adapts goose's logger to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level without exiting; goose reports the failure as an
// error return as well, and main decides the exit code.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func configureGoose(logger *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(&slogGooseLogger{logger: logger.With("component", "migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// runMigrations executes one goose command against db using the embedded
// migration files.
func runMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !migrationCommands[command] {
		return fmt.Errorf("unknown migration command %q (want up, down, reset, status or version)", command)
	}

	if err := configureGoose(logger); err != nil {
		return err
	}

	logger.Info("running migrations", "command", command)
	start := time.Now()

	if err := goose.RunContext(ctx, command, db, migrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	logger.Info("migrations finished",
		"command", command,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// checkPendingMigrations refuses to start the server against a schema that is
// older than the embedded migrations.
func checkPendingMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := configureGoose(logger); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	pending, err := goose.CollectMigrations(migrationsDir, current, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("failed to collect migrations: %w", err)
	}

	if len(pending) > 0 {
		logger.Error("database schema is out of date",
			"current_version", current,
			"pending", len(pending))
		return fmt.Errorf("%w: %d to apply, run with -migrate=up", ErrPendingMigrations, len(pending))
	}

	logger.Info("database schema is up to date", "version", current)
	return nil
}
