package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Manager owns the logging channels of an application
type Manager struct {
	channels       map[string]*channel
	closers        []io.Closer
	defaultChannel string
	mutex          sync.RWMutex
}

// NewManager creates an empty log manager
func NewManager() *Manager {
	return &Manager{
		channels:       make(map[string]*channel),
		defaultChannel: "console",
	}
}

// FromConfig builds the console, file and null channels described by cfg
func FromConfig(cfg Config) (*Manager, error) {
	m := NewManager()
	level := ParseLogLevel(cfg.Level)

	m.AddChannel("console", NewConsoleHandler(os.Stderr), level)
	m.AddChannel("null", slog.NewTextHandler(io.Discard, nil), ErrorLevel+1)

	if cfg.File.Path != "" {
		handler, closer, err := NewFileHandler(cfg.File)
		if err != nil {
			return nil, err
		}
		m.AddChannel("file", handler, level)
		m.closers = append(m.closers, closer)
	}

	if cfg.DefaultChannel != "" {
		if _, ok := m.channels[cfg.DefaultChannel]; !ok {
			return nil, fmt.Errorf("log channel %q is not configured", cfg.DefaultChannel)
		}
		m.defaultChannel = cfg.DefaultChannel
	}
	return m, nil
}

// AddChannel adds a new logging channel
func (m *Manager) AddChannel(name string, handler slog.Handler, level LogLevel) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.channels[name] = &channel{
		name:    name,
		handler: handler,
		level:   level,
		context: make(map[string]interface{}),
	}
}

// Channel gets a specific logging channel, falling back to the default
func (m *Manager) Channel(name string) Logger {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if ch, exists := m.channels[name]; exists {
		return ch
	}
	if ch, exists := m.channels[m.defaultChannel]; exists {
		return ch
	}
	return nullLogger{}
}

// SetDefaultChannel sets the default logging channel
func (m *Manager) SetDefaultChannel(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.defaultChannel = name
}

// Default returns the default logging channel
func (m *Manager) Default() Logger {
	m.mutex.RLock()
	name := m.defaultChannel
	m.mutex.RUnlock()
	return m.Channel(name)
}

// Close releases file handles held by channels
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

var logLevelNames = map[LogLevel]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warning",
	ErrorLevel: "error",
}

// GetLevelName returns the string name for a log level
func GetLevelName(level LogLevel) string {
	if name, exists := logLevelNames[level]; exists {
		return name
	}
	return "unknown"
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
