// Package logger builds the application slog.Logger: leveled text/JSON output,
// optional file rotation, sensitive-attribute masking and Sentry fanout.
package logger

import (
	"io"
	"log/slog"
	"os"

	slogsentry "github.com/samber/slog-sentry/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/nordgate/tipbot/pkg/config"
)

var level = new(slog.LevelVar)

// New constructs the root logger according to cfg.
func New(cfg config.Config) *slog.Logger {
	level.Set(parseLevel(cfg.Logger.Level))

	var out io.Writer = os.Stdout
	if cfg.Logger.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSize,
			MaxAge:     cfg.Logger.MaxAge,
			MaxBackups: cfg.Logger.Backups,
			Compress:   cfg.Logger.Compress,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logger.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError}.NewSentryHandler()
		handler = newFanoutHandler(handler, sentryHandler)
	}

	// Mask before fanout so Sentry never sees raw secrets either.
	handler = NewMaskingHandler(handler)

	log := slog.New(handler).With(slog.String("env", cfg.AppEnv))
	slog.SetDefault(log)

	return log
}

// SetLevel changes the log level at runtime; used by config hot-reload.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
