package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/printwatch/printwatch-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with service-wide defaults. Every record
// carries the service name and build version so fleet logs from several
// instances can be told apart downstream.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from configuration: output destination (stdout,
// stderr, or a size-rotated file), JSON or text format, and minimum level.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version stamped on every record
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(destination(cfg), cfg.Format, parseLevel(cfg.Level))
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "printwatch"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// destination resolves the configured output writer. File output rotates
// by size via lumberjack; stdout is the fallback for anything unknown.
func destination(cfg config.LoggingConfig) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.File.Path == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
	default:
		return os.Stdout
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel converts a configured level name to slog.Level, defaulting
// to info for anything unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger carrying additional default attributes.
//
// Example:
//
//	sessionLog := logger.With("component", "session", "device_id", serial)
//	sessionLog.Info("connected") // includes both attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON/stdout/info logger for early startup, before
// configuration has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
