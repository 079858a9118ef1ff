package app

import (
	"io"
	"log/slog"
	"strings"
)

// newLogger creates the application's logger. It does not set the global
// logger, so several apps can run side by side. Unknown levels fall back to
// info; any format other than "json" is text.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelStr))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
