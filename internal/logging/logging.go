package logging

import (
	"io"
	"log/slog"
	"time"
)

// New builds the process logger: JSON in prod, text elsewhere.
func New(w io.Writer, env string, level string) *slog.Logger {
	l := new(slog.LevelVar)

	switch level {
	case "debug":
		l.Set(slog.LevelDebug)
	case "info", "":
	case "warn":
		l.Set(slog.LevelWarn)
	case "error":
		l.Set(slog.LevelError)
	default:
		slog.Default().Warn("invalid log level, using info", slog.String("value", level))
	}

	var h slog.Handler

	switch env {
	case "prod":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: l,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
				}

				return a
			},
		})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})
	}

	return slog.New(h)
}
