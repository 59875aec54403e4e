package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// DownPayload describes an active maintenance window
type DownPayload struct {
	Time    time.Time `json:"time"`
	Retry   int       `json:"retry,omitempty"`
	Allowed []string  `json:"allowed,omitempty"`
	Except  []string  `json:"except,omitempty"`
	Message string    `json:"message,omitempty"`
}

// MaintenanceStore reports whether the application is down
type MaintenanceStore interface {
	// Payload returns the active window, or nil when the application is up
	Payload() (*DownPayload, error)
}

// StaticMaintenance is a MaintenanceStore driven by configuration
type StaticMaintenance struct {
	Down   bool
	Window DownPayload
}

// Payload implements MaintenanceStore
func (s StaticMaintenance) Payload() (*DownPayload, error) {
	if !s.Down {
		return nil, nil
	}
	p := s.Window
	return &p, nil
}

// FileMaintenance keeps the maintenance flag in a JSON file, so the console
// can toggle it for a running server
type FileMaintenance struct {
	path string
}

// NewFileMaintenance creates a file-backed store, e.g. storage/framework/down
func NewFileMaintenance(path string) *FileMaintenance {
	return &FileMaintenance{path: path}
}

// Path returns the flag file location
func (m *FileMaintenance) Path() string {
	return m.path
}

// Down writes the flag file
func (m *FileMaintenance) Down(payload DownPayload) error {
	if payload.Time.IsZero() {
		payload.Time = time.Now()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode maintenance payload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create maintenance directory: %w", err)
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Up removes the flag file. It is not an error if the application is up.
func (m *FileMaintenance) Up() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IsDown reports whether the flag file exists
func (m *FileMaintenance) IsDown() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Payload implements MaintenanceStore
func (m *FileMaintenance) Payload() (*DownPayload, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read maintenance file: %w", err)
	}

	var payload DownPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid maintenance file %s: %w", m.path, err)
	}
	return &payload, nil
}

// MaintenanceMode answers 503 while the application is down, except for
// allowed client IPs and excepted paths
func (f *MiddlewareFactory) MaintenanceMode() httpInternal.Middleware {
	store := f.deps.Maintenance

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		if store == nil {
			return next(c)
		}

		payload, err := store.Payload()
		if err != nil {
			return nil, err
		}
		if payload == nil || contains(payload.Allowed, c.RemoteIP()) || pathExcepted(c.Path(), payload.Except) {
			return next(c)
		}

		message := payload.Message
		if message == "" {
			message = "The application is down for maintenance."
		}
		res, err := reject(c, http.StatusServiceUnavailable, "Service Unavailable", message)
		if err != nil {
			return nil, err
		}
		if payload.Retry > 0 {
			res.Header.Set("Retry-After", strconv.Itoa(payload.Retry))
		}
		return res, nil
	})
}
