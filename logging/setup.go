package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/soundstats/music-api/config"
)

// NewLogger builds a text logger for local work and a JSON logger for
// staging and production, where output is shipped to a log collector.
func NewLogger(w io.Writer, env config.Environment, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch env {
	case config.EnvStaging, config.EnvProduction:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// GetConsoleLogLevel picks the level for the given environment. An explicit
// LOG_LEVEL wins everywhere except in tests, which stay quiet unless verbose.
func GetConsoleLogLevel(env config.Environment, logLevelStr string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevelStr != "" {
		return parseLogLevel(logLevelStr)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

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
