package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// newLogger builds the process logger. Diagnostic events never go through
// it; it only reports what the enginelog process itself is doing.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, errx.With(ErrLogLevel, ": %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errx.With(ErrLogFormat, ": %q", format)
	}
}
