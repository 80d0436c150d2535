// Package logger provides structured logging for the application using
// log/slog. A request-scoped logger travels in the context.
package logger
