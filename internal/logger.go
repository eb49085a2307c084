package internal

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// newLogger builds the process logger: JSON for machines, tint-coloured
// text for a terminal.
func newLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatConsole:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.TimeOnly,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}
	return slog.New(handler)
}
