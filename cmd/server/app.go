package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/events"
	"github.com/phrazzld/ereuna/internal/platform/llm"
	"github.com/phrazzld/ereuna/internal/platform/postgres"
	"github.com/phrazzld/ereuna/internal/redact"
	"github.com/phrazzld/ereuna/internal/scrape"
	"github.com/phrazzld/ereuna/internal/service"
	"github.com/phrazzld/ereuna/internal/service/auth"
	"github.com/phrazzld/ereuna/internal/store"
	"github.com/phrazzld/ereuna/internal/task"
)

// application holds the shared dependencies of the server so they can be
// wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	reportStore store.ReportStore
	taskStore   task.TaskStore

	jwtService    auth.JWTService
	authenticator *auth.OperatorAuthenticator
	reportService service.ReportService

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
}

// newApplication wires stores, the generation pipeline, the task runner and
// the HTTP-facing services. The task runner is started last, after the event
// handler that feeds it has been registered.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.authenticator, err = auth.NewOperatorAuthenticator(cfg.Auth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize operator authenticator: %w", err)
	}

	reportStore := postgres.NewPostgresReportStore(db, logger)
	app.reportStore = reportStore

	caller, err := llm.NewCaller(ctx, logger.With("component", "llm"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM caller: %w", err)
	}
	logger.Info("LLM caller initialized",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.ModelName,
		"max_attempts", cfg.LLM.MaxAttempts)

	fetcher, err := scrape.NewFetcher(logger.With("component", "scraper"), cfg.Scraper)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize source fetcher: %w", err)
	}

	factory, err := task.NewFactory(task.Dependencies{
		Reports:      reportStore,
		Sources:      fetcher,
		Caller:       caller,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, factory, logger)
	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		QueueSize:    cfg.Task.QueueSize,
		WorkerCount:  cfg.Task.WorkerCount,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, logger)
	app.taskRunner.SetErrorHandler(func(t task.Task, err error) {
		logger.Warn("background task failed",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", redact.Error(err))
	})

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, logger))

	app.reportService, err = service.NewReportService(app.reportStore, app.eventEmitter, caller, cfg.LLM.SystemPrompt, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create report service: %w", err)
	}

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then releases every resource.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup stops the task runner before closing the database it writes to.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
