// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured logging
// with configurable log levels and formats, and carries request- and task-scoped
// loggers through context.Context.
package logger
