package logging

import (
	"context"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger interface defines the logging contract with context support
type Logger interface {
	Debug(message string, context ...map[string]interface{})
	Info(message string, context ...map[string]interface{})
	Warn(message string, context ...map[string]interface{})
	Error(message string, context ...map[string]interface{})
	Log(level LogLevel, message string, context ...map[string]interface{})

	// LogContext adds the request ID carried by ctx, if any
	LogContext(ctx context.Context, level LogLevel, message string, context ...map[string]interface{})

	// Logger modifiers
	WithContext(context map[string]interface{}) Logger
	WithChannel(channel string) Logger
}

// Config represents logging configuration
type Config struct {
	DefaultChannel string        `mapstructure:"channel"`
	Level          string        `mapstructure:"level"`
	Console        ConsoleConfig `mapstructure:"console"`
	File           FileConfig    `mapstructure:"file"`
}

// ConsoleConfig represents console logging configuration
type ConsoleConfig struct {
	Colorize bool `mapstructure:"colorize"`
}

// FileConfig represents rotating file logging configuration
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type contextKey string

// RequestIDKey is the context key under which a request ID is stored
const RequestIDKey contextKey = "request_id"

// WithRequestID returns a context carrying id for LogContext
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
