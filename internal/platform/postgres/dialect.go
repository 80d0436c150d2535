package postgres

import (
	"embed"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect captures what differs between database backends.
type Dialect interface {
	// Name is the goose dialect name.
	Name() string

	// Rebind rewrites a query written with $N placeholders for the backend.
	Rebind(query string) string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation(err error) bool

	// Migrations returns the backend's goose migration files.
	Migrations() fs.FS
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

type postgresDialect struct{}

// PostgresDialect is the Dialect for PostgreSQL through pgx.
var PostgresDialect Dialect = postgresDialect{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string { return query }

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (postgresDialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// ALLOW-PANIC: the embedded directory is fixed at build time
		panic(err)
	}
	return sub
}
