package shared

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a configured level name (debug, info, warn, error, any
// case) to a slog level. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// InitLogger installs the default slog logger writing to w. The CLI
// passes stderr so reports on stdout stay machine-readable.
func InitLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h).With("app", "pyconform")
	slog.SetDefault(logger)
	return logger
}
