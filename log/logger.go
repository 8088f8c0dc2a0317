// Package log is the logging facade of the planauth binaries.
//
// Library packages log through the zerolog global logger. The binaries
// build a Logger with Setup, which also points the global logger at the
// same writer and level, so both streams end up in one place.
package log

import "context"

// Fields are structured key/value pairs attached to an entry.
type Fields map[string]any

// Logger defines a standard interface for logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields) // exits the process
	With(fields Fields) Logger
}
