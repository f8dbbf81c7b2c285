// Package logging builds the service's structured logger.
//
// Thin wrapper over log/slog: JSON for production ingestion, text for local
// development. Degraded-mode scoring and fail-safe dispatches log at WARN so
// operators can alert on them without a metrics pipeline.
package logging

import (
	"log/slog"
	"os"
)

// New creates a logger with the given level (debug|info|warn|error) and
// format (json|text). Unknown values fall back to info/json.
func New(level, format string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: l}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
