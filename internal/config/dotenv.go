package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// WriteEnv sets name=value in the dotenv file at path, replacing an
// existing assignment or appending one. The file is created if missing.
func WriteEnv(path, name, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	line := name + "=" + quoteEnv(value)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(data) == 0 {
		lines = nil
	}

	replaced := false
	for i, l := range lines {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "export "))
		if key, _, ok := strings.Cut(trimmed, "="); ok && strings.TrimSpace(key) == name {
			lines[i] = line
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, line)
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func quoteEnv(value string) string {
	if strings.ContainsAny(value, " \t#\"'") {
		return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return value
}
