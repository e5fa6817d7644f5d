// Package common provides shared utilities used across the QKD client,
// including logger setup and version information.
package common

import (
	"log/slog"
	"os"
)

// LoggingOpts configures the application logger.
type LoggingOpts struct {
	// Debug enables debug-level logging.
	Debug bool

	// JSON switches the handler to JSON output.
	JSON bool

	// Service is added as a 'service' attribute to all log records.
	Service string

	// Version is added as a 'version' attribute to all log records.
	Version string
}

// SetupLogger creates a slog.Logger configured according to the options.
// Output goes to stderr so that key material printed by CLI commands on
// stdout never interleaves with log records.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
