package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "debug"},
		{InfoLevel, "info"},
		{WarnLevel, "warning"},
		{ErrorLevel, "error"},
	}

	for _, test := range tests {
		if GetLevelName(test.level) != test.expected {
			t.Errorf("Expected level name %s, got %s", test.expected, GetLevelName(test.level))
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
	}

	for _, test := range tests {
		if ParseLogLevel(test.input) != test.expected {
			t.Errorf("Expected level %v for input %s, got %v", test.expected, test.input, ParseLogLevel(test.input))
		}
	}
}

func TestManager(t *testing.T) {
	manager := NewManager()
	buffer := &bytes.Buffer{}
	manager.AddChannel("test", NewConsoleHandler(buffer), InfoLevel)

	logger := manager.Channel("test")
	logger.Info("test message")

	if !strings.Contains(buffer.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buffer.String())
	}
	if !strings.Contains(buffer.String(), "channel=test") {
		t.Errorf("Expected output to name the channel, got: %s", buffer.String())
	}

	manager.SetDefaultChannel("test")
	if manager.Default() == nil {
		t.Fatal("Expected default logger, got nil")
	}

	buffer.Reset()
	manager.Channel("nonexistent").Warn("fallback")
	if !strings.Contains(buffer.String(), "fallback") {
		t.Errorf("Unknown channels should fall back to the default, got: %s", buffer.String())
	}
}

func TestChannelWithContextData(t *testing.T) {
	buffer := &bytes.Buffer{}
	manager := NewManager()
	manager.AddChannel("json", slog.NewJSONHandler(buffer, &slog.HandlerOptions{Level: slog.LevelDebug}), DebugLevel)

	logger := manager.Channel("json").WithContext(map[string]interface{}{"component": "router"})
	logger.Info("user action", map[string]interface{}{"user_id": 123, "action": "login"})

	line := buffer.String()
	if gjson.Get(line, "msg").String() != "user action" {
		t.Errorf("Expected message in output, got: %s", line)
	}
	if gjson.Get(line, "user_id").Int() != 123 {
		t.Errorf("Expected user_id in output, got: %s", line)
	}
	if gjson.Get(line, "component").String() != "router" {
		t.Errorf("Expected logger context in output, got: %s", line)
	}
	if gjson.Get(line, "level").String() != "INFO" {
		t.Errorf("Expected INFO level, got: %s", line)
	}
}

func TestLogContextRequestID(t *testing.T) {
	buffer := &bytes.Buffer{}
	manager := NewManager()
	manager.AddChannel("json", slog.NewJSONHandler(buffer, &slog.HandlerOptions{Level: slog.LevelDebug}), DebugLevel)

	ctx := WithRequestID(context.Background(), "req-123")
	manager.Channel("json").LogContext(ctx, WarnLevel, "slow request")

	if gjson.Get(buffer.String(), "request_id").String() != "req-123" {
		t.Errorf("Expected request_id in output, got: %s", buffer.String())
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buffer := &bytes.Buffer{}
	manager := NewManager()
	manager.AddChannel("test", NewConsoleHandler(buffer), WarnLevel)

	logger := manager.Channel("test")
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buffer.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out")
	}
	if !strings.Contains(output, "warn message") {
		t.Errorf("Warn message should appear in output: %s", output)
	}
	if !strings.Contains(output, "error message") {
		t.Errorf("Error message should appear in output: %s", output)
	}
}

func TestWithChannel(t *testing.T) {
	buffer := &bytes.Buffer{}
	manager := NewManager()
	manager.AddChannel("test", NewConsoleHandler(buffer), DebugLevel)

	manager.Channel("test").WithChannel("security").Info("blocked")
	if !strings.Contains(buffer.String(), "channel=security") {
		t.Errorf("Expected renamed channel, got: %s", buffer.String())
	}
}

func TestFromConfigFileChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	manager, err := FromConfig(Config{
		DefaultChannel: "file",
		Level:          "debug",
		File:           FileConfig{Path: path, MaxSizeMB: 1},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	manager.Default().Debug("written to disk", map[string]interface{}{"n": 1})
	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if gjson.GetBytes(data, "msg").String() != "written to disk" {
		t.Errorf("Unexpected file contents: %s", data)
	}
}

func TestFromConfigUnknownChannel(t *testing.T) {
	if _, err := FromConfig(Config{DefaultChannel: "syslog"}); err == nil {
		t.Error("Expected error for unknown default channel")
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	logger.Error("ignored")
	if logger.WithChannel("x") == nil || logger.WithContext(nil) == nil {
		t.Error("Null logger modifiers should return a logger")
	}
}
