package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasker-api/internal/config"
	"github.com/phrazzld/tasker-api/internal/events"
	"github.com/phrazzld/tasker-api/internal/execution"
	"github.com/phrazzld/tasker-api/internal/job"
	"github.com/phrazzld/tasker-api/internal/lifecycle"
	"github.com/phrazzld/tasker-api/internal/platform/postgres"
	"github.com/phrazzld/tasker-api/internal/service"
	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/phrazzld/tasker-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	taskStore store.TaskStore
	jobStore  job.Store

	lifecycle    *lifecycle.Lifecycle
	jwtService   auth.JWTService
	userService  service.UserService
	taskService  service.TaskService
	eventEmitter events.EventEmitter

	scheduler *execution.Scheduler
	jobRunner *job.Runner
}

// newApplication wires every component on top of an open, migrated database
// and starts the job runner. Call cleanup to stop it.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB, dialect postgres.Dialect) (*application, error) {
	app := &application{
		config:    cfg,
		logger:    logger,
		db:        db,
		lifecycle: lifecycle.New(lifecycle.DefaultVocabulary()),
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.userStore = postgres.NewUserStore(db, dialect)
	app.taskStore = postgres.NewTaskStore(db, dialect)
	app.jobStore = postgres.NewJobStore(db, dialect)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))
	app.eventEmitter = emitter

	app.scheduler, err = execution.NewScheduler(app.taskStore, app.eventEmitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution scheduler: %w", err)
	}
	app.scheduler.SetLifecycle(app.lifecycle)

	app.jobRunner, err = setupJobRunner(app)
	if err != nil {
		return nil, fmt.Errorf("failed to setup job runner: %w", err)
	}

	app.userService = service.NewUserService(app.userStore, auth.NewBcryptHasher(cfg.Auth.BCryptCost), logger)

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		db,
		app.lifecycle,
		app.scheduler,
		app.eventEmitter,
		service.TaskServiceConfig{DefaultRuntimeSeconds: cfg.Task.DefaultRuntimeSeconds},
		logger,
	)
	if err != nil {
		app.jobRunner.Stop()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupJobRunner creates the runner that executes scheduled completions,
// connects it to the scheduler and starts it.
func setupJobRunner(app *application) (*job.Runner, error) {
	runner := job.NewRunner(app.jobStore, app.scheduler, job.RunnerConfig{
		WorkerCount:   app.config.Task.WorkerCount,
		QueueSize:     app.config.Task.QueueSize,
		StuckJobAge:   time.Duration(app.config.Task.StuckJobAgeMinutes) * time.Minute,
		SweepInterval: time.Duration(app.config.Task.SweepIntervalSeconds) * time.Second,
	}, app.logger)
	app.scheduler.SetSubmitter(runner)

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job runner: %w", err)
	}
	return runner, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
