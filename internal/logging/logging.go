package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/maltedev/catalog-price-scraper/internal/config"
)

// New builds the process logger. Format "auto" picks text output on a
// terminal and JSON otherwise.
func New(cfg config.LoggingConfig, w *os.File) *slog.Logger {
	return newLogger(cfg, w, isTerminal(w))
}

func newLogger(cfg config.LoggingConfig, w io.Writer, terminal bool) *slog.Logger {
	var level slog.LevelVar
	level.Set(ParseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: &level}

	format := strings.ToLower(cfg.Format)
	if format == "text" || (format != "json" && terminal) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
