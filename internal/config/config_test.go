package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInit_DefaultsWithoutConfigFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	t.Setenv("WEBRELAY_CONFIG_DIR", dir)
	t.Setenv("HOME", dir)

	if err := Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ConfigFilePath() != "" {
		t.Errorf("expected no config file, got %s", ConfigFilePath())
	}
	if got := GetString("server.bind"); got != "127.0.0.1" {
		t.Errorf("expected default bind, got %s", got)
	}
	if got := GetInt("server.port"); got != 8931 {
		t.Errorf("expected default port 8931, got %d", got)
	}
	if got := GetDuration("monitor.sweep_interval"); got != 5*time.Second {
		t.Errorf("expected default sweep interval 5s, got %s", got)
	}
	if got := GetDuration("classifier.debounce"); got != 100*time.Millisecond {
		t.Errorf("expected default debounce 100ms, got %s", got)
	}
}

func TestInit_ReadsConfigFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	content := "server:\n  port: 9040\nrelay:\n  base_url: http://relay.internal:9040\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("WEBRELAY_CONFIG_DIR", dir)
	t.Setenv("HOME", dir)

	if err := Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ConfigFilePath() == "" {
		t.Error("expected config file path to be recorded")
	}
	if got := GetInt("server.port"); got != 9040 {
		t.Errorf("expected configured port 9040, got %d", got)
	}
	if got := GetString("relay.base_url"); got != "http://relay.internal:9040" {
		t.Errorf("unexpected base url %s", got)
	}
	// Values the file omits keep their defaults
	if got := GetString("server.bind"); got != "127.0.0.1" {
		t.Errorf("expected default bind, got %s", got)
	}
}

func TestInit_EnvOverridesFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	content := "relay:\n  retries: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("WEBRELAY_CONFIG_DIR", dir)
	t.Setenv("HOME", dir)
	t.Setenv("WEBRELAY_RELAY_RETRIES", "7")

	if err := Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := GetInt("relay.retries"); got != 7 {
		t.Errorf("expected env to win, got %d", got)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(":\tnot yaml ["), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("WEBRELAY_CONFIG_DIR", dir)
	t.Setenv("HOME", dir)

	if err := Init(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/logs/webrelay.log", filepath.Join(home, "logs", "webrelay.log")},
		{"~user/file", "~user/file"},
		{"/var/log/webrelay.log", "/var/log/webrelay.log"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
