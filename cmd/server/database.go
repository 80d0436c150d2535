package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasker-api/internal/config"
	"github.com/phrazzld/tasker-api/internal/platform/postgres"
	"github.com/phrazzld/tasker-api/internal/platform/sqlite"
)

// setupAppDatabase opens the configured backend and returns the connection
// together with the SQL dialect the stores and migrations must use.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, postgres.Dialect, error) {
	var (
		db      *sql.DB
		dialect postgres.Dialect
		err     error
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.Database.URL)
		dialect = sqlite.Dialect
	case "postgres":
		db, err = postgres.Open(ctx, cfg.Database.URL, postgres.DefaultPoolConfig())
		dialect = postgres.PostgresDialect
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Info("database connection established", slog.String("dialect", dialect.Name()))
	return db, dialect, nil
}
