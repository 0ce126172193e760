// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in plain text format.
	FormatText LogFormat = "text"
)

// Setup installs the default slog logger at the given level. Unknown levels
// fall back to info; unknown formats fall back to text.
func Setup(level string, format LogFormat) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// RequestLogger returns a logger scoped to one proxied request.
func RequestLogger(requestID, provider string) *slog.Logger {
	return slog.Default().With("request_id", requestID, "provider", provider)
}
