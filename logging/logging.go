// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/imkonsowa/restaurants-assistant/config"
)

// New returns colored logs in development and JSON otherwise.
func New(cfg config.Log, w io.Writer) *slog.Logger {
	if cfg.Env == "development" || cfg.Env == "" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      ParseLevel(cfg.Level, slog.LevelDebug),
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level, slog.LevelInfo),
	}))
}

func ParseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
