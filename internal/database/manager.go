package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultConnection is the name of the connection built from the "db"
// configuration section
const DefaultConnection = "default"

// Manager opens named connections on first use and closes them together
type Manager struct {
	configs     map[string]Config
	connections map[string]*DB
	mutex       sync.Mutex
}

// NewManager creates a manager with cfg as the default connection
func NewManager(cfg Config) *Manager {
	return &Manager{
		configs:     map[string]Config{DefaultConnection: cfg},
		connections: make(map[string]*DB),
	}
}

// AddConnection registers another named connection
func (m *Manager) AddConnection(name string, cfg Config) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.configs[name] = cfg
}

// Connection returns the named connection, opening it if needed
func (m *Manager) Connection(ctx context.Context, name string) (*DB, error) {
	if name == "" {
		name = DefaultConnection
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if db, ok := m.connections[name]; ok {
		return db, nil
	}
	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("database connection %q is not configured", name)
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	m.connections[name] = db
	return db, nil
}

// Default returns the default connection
func (m *Manager) Default(ctx context.Context) (*DB, error) {
	return m.Connection(ctx, DefaultConnection)
}

// Config returns the configuration of a named connection
func (m *Manager) Config(name string) (Config, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// Close closes every open connection
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error
	for name, db := range m.connections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
		delete(m.connections, name)
	}
	return errors.Join(errs...)
}
