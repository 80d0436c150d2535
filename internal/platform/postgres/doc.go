// Package postgres provides the SQL implementations of the store interfaces
// and the job store used by the dispatcher.
//
// Queries are written for PostgreSQL. The same stores run on SQLite through
// a Dialect that rewrites placeholders and recognises the driver's
// constraint errors; see package sqlite.
package postgres
