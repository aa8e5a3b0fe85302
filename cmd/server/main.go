// Package main implements the entry point for the Ereuna API server, which
// generates research reports section by section with a language model and
// serves them over an authenticated JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command and exit: up, down, reset, status or version")
	configFile := flag.String("config", "", "path to a config file (defaults to ./config.yaml when present)")
	flag.Parse()

	if err := run(*migrateCmd, *configFile); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, connects to the database and either executes a
// migration command or serves HTTP until interrupted.
func run(migrateCmd, configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.ModelName)

	db, err := setupAppDatabase(cfg, log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if migrateCmd != "" {
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("error closing database connection", "error", err)
			}
		}()
		return runMigrations(ctx, db, migrateCmd, log)
	}

	if err := checkPendingMigrations(ctx, db, log); err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
