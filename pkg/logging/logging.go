// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup()                          // level from LOG_LEVEL env
//	logging.SetupWithLevel(slog.LevelDebug)  // explicit level override
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup configures colored logging at the level specified by LOG_LEVEL env var
// (default: INFO). An unknown level falls back to INFO.
func Setup() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	SetupWithLevel(level)
}

// SetupWithLevel configures colored logging on stderr at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level))
}

// New returns a tint logger writing to w. Colors are disabled when w is a
// file that is not a terminal.
func New(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level <= slog.LevelDebug,
		NoColor:    noColor,
	}))
}

// ParseLevel maps debug, info, warn and error to a slog level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level '%s': must be debug, info, warn or error", s)
	}
}
