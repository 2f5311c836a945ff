package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input     string
		wantLevel slog.Level
		wantOK    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},

		// Case and whitespace tolerance
		{"DEBUG", slog.LevelDebug, true},
		{"Error", slog.LevelError, true},
		{"  info  ", slog.LevelInfo, true},

		// Rejected input falls back to the default
		{"", slog.LevelInfo, false},
		{"trace", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, ok := ParseLevel(tt.input)
			if ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if level != tt.wantLevel {
				t.Errorf("ParseLevel(%q) level = %v, want %v", tt.input, level, tt.wantLevel)
			}
		})
	}
}
