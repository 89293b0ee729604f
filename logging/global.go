// Package logging wires log/slog for both services: a process-wide default
// logger, level selection per environment and an HTTP request logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/soundstats/music-api/config"
)

type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance for the given environment
func InitLogger(env config.Environment, logLevel string) {
	InitLoggerWithWriter(os.Stdout, env, logLevel, false)
}

// InitLoggerWithWriter is InitLogger with an explicit destination. verbose
// only matters in the test environment, where output is otherwise limited to errors.
func InitLoggerWithWriter(w io.Writer, env config.Environment, logLevel string, verbose bool) {
	DefaultLoggingService = &LoggingService{
		Logger: NewLogger(w, env, GetConsoleLogLevel(env, logLevel, verbose)),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return DefaultLoggingService.Logger
}

// Default returns the process logger, or a stderr fallback before InitLogger
func Default() *slog.Logger {
	return logger()
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}
