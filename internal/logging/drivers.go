package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewConsoleHandler writes human-readable text lines to w
func NewConsoleHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// NewFileHandler writes JSON lines to a size-rotated file. The returned
// closer releases the file.
func NewFileHandler(cfg FileConfig) (slog.Handler, io.Closer, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("file log channel needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   cfg.Compress,
	}
	return slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug}), rotator, nil
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
