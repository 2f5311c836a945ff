// Package config provides the viper-backed configuration subsystem.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// configFilePath stores the path to the loaded config file
var configFilePath string

// Init initializes the configuration subsystem.
// It searches for configuration files in priority order:
//  1. Directory specified by WEBRELAY_CONFIG_DIR environment variable
//  2. ~/.config/webrelay/
//  3. Current working directory (.)
//
// If no config file is found, sensible defaults are used.
// If a config file exists but is invalid or unreadable, Init returns an error.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("WEBRELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if envPath := os.Getenv("WEBRELAY_CONFIG_DIR"); envPath != "" {
		viper.AddConfigPath(envPath)
	}
	if home := os.Getenv("HOME"); home != "" {
		viper.AddConfigPath(filepath.Join(home, ".config", "webrelay"))
	}
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		// A missing config file is acceptable - defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			configFilePath = ""
			return nil
		}

		return fmt.Errorf("failed to read config; %w", err)
	}

	configFilePath = viper.ConfigFileUsed()
	slog.Info("config initialized", "file", configFilePath)

	return nil
}

func setDefaults() {
	// Relay server
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8931)
	viper.SetDefault("server.api_key", "")

	// Client side
	viper.SetDefault("relay.base_url", "http://127.0.0.1:8931")
	viper.SetDefault("relay.api_key", "")
	viper.SetDefault("relay.timeout", 30*time.Second)
	viper.SetDefault("relay.retries", 3)
	viper.SetDefault("relay.rate_limit", 5.0)
	viper.SetDefault("relay.rate_burst", 10)

	// Browser agent addressing
	viper.SetDefault("agent.extension_id", "")
	viper.SetDefault("agent.tab_id", 0)

	// Monitor windows
	viper.SetDefault("monitor.sweep_interval", 5*time.Second)
	viper.SetDefault("monitor.liveness_window", 30*time.Second)
	viper.SetDefault("monitor.stuck_after", 60*time.Second)
	viper.SetDefault("monitor.retention", time.Hour)

	// State classifier
	viper.SetDefault("classifier.debounce", 100*time.Millisecond)
	viper.SetDefault("classifier.poll_interval", 25*time.Millisecond)
	viper.SetDefault("classifier.pass_budget", 100*time.Millisecond)
	viper.SetDefault("classifier.snapshot_max_age", time.Second)

	// Logging
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_file", defaultLogFile())
}

func defaultLogFile() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "state", "webrelay", "webrelay.log")
	}
	return filepath.Join(os.TempDir(), "webrelay.log")
}

// ConfigFilePath returns the path to the loaded config file,
// or empty string if using defaults only.
func ConfigFilePath() string {
	return configFilePath
}

// Reset clears the configuration state for testing purposes.
func Reset() {
	viper.Reset()
	configFilePath = ""
}

// GetString returns the string value for the given key.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns the integer value for the given key.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetFloat64 returns the float value for the given key.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetPath returns the string value for the given key with a leading ~
// expanded to the user's home directory.
func GetPath(key string) string {
	return expandHome(viper.GetString(key))
}

// expandHome expands a leading ~ in path to the user's home directory.
// Only expands "~" alone or "~/..." patterns. Patterns like "~user" are not expanded.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	if len(path) > 1 && path[1] != '/' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// GetDuration returns the duration value for the given key.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// SetDefault sets a default value for the given key.
func SetDefault(key string, value any) {
	viper.SetDefault(key, value)
}

// Set sets a value for the given key, overriding defaults and config
// file values. Primarily used for testing.
func Set(key string, value any) {
	viper.Set(key, value)
}

// AllSettings returns the effective configuration as a nested map.
func AllSettings() map[string]any {
	return viper.AllSettings()
}
