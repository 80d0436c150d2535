// Package sqlite runs the SQL stores on an embedded SQLite database through
// the pure Go modernc driver. It is used for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/phrazzld/tasker-api/internal/platform/postgres"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Connection options appended to every DSN. Times are written in a
// sortable layout so range queries on text columns stay correct.
var dsnOptions = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_time_format=sqlite",
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

var placeholder = regexp.MustCompile(`\$(\d+)`)

type dialect struct{}

// Dialect is the postgres.Dialect for SQLite.
var Dialect postgres.Dialect = dialect{}

func (dialect) Name() string { return "sqlite3" }

// Rebind rewrites $N placeholders to SQLite's numbered ?N form.
func (dialect) Rebind(query string) string {
	return placeholder.ReplaceAllString(query, "?$1")
}

func (dialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

func (dialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// ALLOW-PANIC: the embedded directory is fixed at build time
		panic(err)
	}
	return sub
}

// Open opens the SQLite database at dsn and verifies the connection.
// The pool is limited to one connection, which serialises writers and
// keeps an in-memory database alive for the lifetime of the pool.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}

	db, err := sql.Open(DriverName, withOptions(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	return db, nil
}

// OpenMemory opens a migrated in-memory database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	db, err := Open(ctx, MemoryDSN)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db, Dialect, nil); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func withOptions(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(dsnOptions, "&")
}
