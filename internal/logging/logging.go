package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for the JSON file sink.
const (
	maxSizeMB  = 20
	maxBackups = 5
	maxAgeDays = 30
)

// Manager owns the process-wide logger. It starts in bootstrap mode
// (text to stderr) so early startup failures are visible, and upgrades
// to stderr+rotating-JSON-file once config has been loaded. The logger
// handed out by Logger stays valid across the upgrade.
type Manager struct {
	swap   *SwappableHandler
	logger *slog.Logger
	level  *slog.LevelVar

	mu   sync.Mutex
	file *lumberjack.Logger
}

// NewManager returns a Manager in bootstrap mode at Info level.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	swap := NewSwappableHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	)

	return &Manager{
		swap:   swap,
		logger: slog.New(swap),
		level:  level,
	}
}

// Logger returns the shared logger. Safe to retain; handler swaps
// apply to it transparently.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade switches to full mode: text on stderr plus rotating JSON at
// path. The file is opened lazily on first write. Errors only when the
// log directory cannot be created.
func (m *Manager) Upgrade(path string, level slog.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q; %w", filepath.Dir(path), err)
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	if m.file != nil {
		_ = m.file.Close()
	}
	m.file = file

	m.level.Set(level)
	m.swap.Swap(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: m.level}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: m.level}),
	))
	return nil
}

// SetLevel adjusts the minimum level for both sinks at runtime.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close releases the file sink. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
