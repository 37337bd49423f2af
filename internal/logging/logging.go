// Package logging provides the process-wide structured logger, following
// the same slog/LOG_LEVEL convention used across the retrieval pack.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
)

func init() {
	current = build()
}

func build() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the process-wide logger. LOG_LEVEL is read once when the
// package is initialized; subsequent changes require Reload.
func Default() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	return l
}

// Reload rebuilds the logger from the current LOG_LEVEL environment value
// and atomically swaps it in. Safe to call concurrently with Default.
func Reload() {
	l := build()
	mu.Lock()
	current = l
	mu.Unlock()
}

// Stage logs the start of a pipeline stage with conventional fields.
func Stage(stage, statementID string, fields ...any) {
	args := append([]any{"stage", stage, "statement_id", statementID}, fields...)
	Default().Info("stage", args...)
}

// Warn logs a non-fatal stage warning with conventional fields.
func Warn(stage, statementID, msg string, fields ...any) {
	args := append([]any{"stage", stage, "statement_id", statementID}, fields...)
	Default().Warn(msg, args...)
}
