// Package store defines interfaces for data persistence operations.
// These interfaces keep the task service and the execution callback
// independent of the database behind them.
package store
