// Package logging configures the process-wide structured logger.
//
// The gateway logs through log/slog with a text handler. Verbosity comes
// from configuration; diagnostic lines that embed backend-supplied text are
// bounded to a configured maximum length before they reach the handler.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// MinLineLen is the smallest permitted bound for a single log line.
const MinLineLen = 64

// New builds a logger writing to out at the given verbosity level.
// Unknown level strings fall back to info.
func New(out io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps a config verbosity string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate bounds a message to max bytes. max values below MinLineLen are
// raised to MinLineLen.
func Truncate(msg string, max int) string {
	if max < MinLineLen {
		max = MinLineLen
	}
	if len(msg) <= max {
		return msg
	}
	return msg[:max]
}
