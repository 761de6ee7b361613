package graphcore

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogOptions configures the process-wide logger installed by
// ConfigureLogging.
type LogOptions struct {
	// Level names the minimum level to emit: debug, info, warn, or error.
	// When empty, the GRAPHCORE_LOG_LEVEL environment variable is consulted,
	// and info is the final fallback.
	Level string `json:"level,omitempty"`
	// JSON selects JSON records instead of the text handler.
	JSON bool `json:"json,omitempty"`
	// Output receives the records. Defaults to stdout.
	Output io.Writer `json:"-"`
}

var logLevel = new(slog.LevelVar)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigureLogging installs the default logger the library logs through.
// Embedding applications that already manage slog themselves can skip this
// call entirely; the library then writes to whatever default logger is in
// place.
func ConfigureLogging(opts LogOptions) {
	level := opts.Level
	if level == "" {
		level = os.Getenv("GRAPHCORE_LOG_LEVEL")
	}
	logLevel.Set(parseLogLevel(level))

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel adjusts the level of a logger installed by ConfigureLogging
// without rebuilding the handler.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
