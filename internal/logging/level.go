package logging

import (
	"log/slog"
	"strings"
)

// DefaultLevel applies when no level is configured.
const DefaultLevel = slog.LevelInfo

// ParseLevel maps a configured level string onto a slog.Level.
// Recognized values (case-insensitive): debug, info, warn, warning,
// error. Unrecognized input yields (DefaultLevel, false).
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return DefaultLevel, false
}
