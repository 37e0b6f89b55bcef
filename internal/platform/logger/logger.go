package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON structured logger writing to stdout. Services receive it
// via functional options so tests can pass a discard handler or nil.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
