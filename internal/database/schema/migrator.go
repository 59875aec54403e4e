package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/onyx-go/dispatch/internal/database"
)

// Migration is one reversible schema change. Names sort chronologically,
// e.g. "2024_01_15_093000_create_users_table".
type Migration interface {
	Name() string
	Up(ctx context.Context, schema *Builder) error
	Down(ctx context.Context, schema *Builder) error
}

// Func builds a Migration from functions
type Func struct {
	ID     string
	UpFn   func(ctx context.Context, schema *Builder) error
	DownFn func(ctx context.Context, schema *Builder) error
}

func (m Func) Name() string { return m.ID }

func (m Func) Up(ctx context.Context, schema *Builder) error {
	if m.UpFn == nil {
		return nil
	}
	return m.UpFn(ctx, schema)
}

func (m Func) Down(ctx context.Context, schema *Builder) error {
	if m.DownFn == nil {
		return nil
	}
	return m.DownFn(ctx, schema)
}

// Status reports whether a migration has run
type Status struct {
	Name  string `json:"name" yaml:"name"`
	Ran   bool   `json:"ran" yaml:"ran"`
	Batch int    `json:"batch,omitempty" yaml:"batch,omitempty"`
}

// Migrator runs registered migrations and records them in a table. Each
// migration runs in its own transaction together with its record.
type Migrator struct {
	db         *database.DB
	schema     *Builder
	table      string
	migrations map[string]Migration
}

// NewMigrator creates a migrator recording runs in table ("migrations"
// when empty)
func NewMigrator(db *database.DB, table string) (*Migrator, error) {
	builder, err := NewBuilder(db)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = "migrations"
	}
	return &Migrator{
		db:         db,
		schema:     builder,
		table:      table,
		migrations: make(map[string]Migration),
	}, nil
}

// Register adds migrations. Registering a name twice is an error.
func (m *Migrator) Register(migrations ...Migration) error {
	for _, migration := range migrations {
		name := migration.Name()
		if name == "" {
			return fmt.Errorf("migration has no name")
		}
		if _, exists := m.migrations[name]; exists {
			return fmt.Errorf("migration %s is registered twice", name)
		}
		m.migrations[name] = migration
	}
	return nil
}

// Schema returns the builder migrations run against
func (m *Migrator) Schema() *Builder {
	return m.schema
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	exists, err := m.schema.HasTable(ctx, m.table)
	if err != nil || exists {
		return err
	}
	return m.schema.Create(ctx, m.table, func(t *Blueprint) {
		t.ID()
		t.String("migration")
		t.Integer("batch")
		t.Timestamp("ran_at").Nullable()
	})
}

// ran returns executed migrations with their batch
func (m *Migrator) ran(ctx context.Context) (map[string]int, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SELECT migration, batch FROM %s", m.table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.table, err)
	}
	defer rows.Close()

	ran := make(map[string]int)
	for rows.Next() {
		var name string
		var batch int
		if err := rows.Scan(&name, &batch); err != nil {
			return nil, err
		}
		ran[name] = batch
	}
	return ran, rows.Err()
}

func (m *Migrator) sortedNames() []string {
	names := make([]string, 0, len(m.migrations))
	for name := range m.migrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes pending migrations in name order as one new batch and
// returns the names it ran
func (m *Migrator) Run(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	ran, err := m.ran(ctx)
	if err != nil {
		return nil, err
	}

	batch := 0
	for _, b := range ran {
		batch = max(batch, b)
	}
	batch++

	var executed []string
	for _, name := range m.sortedNames() {
		if _, done := ran[name]; done {
			continue
		}
		err := m.db.Transaction(ctx, func(tx *database.Tx) error {
			if err := m.migrations[name].Up(ctx, m.schema.WithExecutor(tx)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (migration, batch, ran_at) VALUES (?, ?, ?)", m.table),
				name, batch, time.Now().UTC())
			return err
		})
		if err != nil {
			return executed, fmt.Errorf("migration %s failed: %w", name, err)
		}
		executed = append(executed, name)
	}
	return executed, nil
}

// Rollback reverts the last steps batches (at least one) in reverse order
// and returns the names it reverted
func (m *Migrator) Rollback(ctx context.Context, steps int) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	ran, err := m.ran(ctx)
	if err != nil {
		return nil, err
	}
	if steps < 1 {
		steps = 1
	}

	batches := make([]int, 0)
	seen := make(map[int]bool)
	for _, b := range ran {
		if !seen[b] {
			seen[b] = true
			batches = append(batches, b)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(batches)))
	if len(batches) > steps {
		batches = batches[:steps]
	}
	target := make(map[int]bool, len(batches))
	for _, b := range batches {
		target[b] = true
	}

	var names []string
	for name, b := range ran {
		if target[b] {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var reverted []string
	for _, name := range names {
		migration, ok := m.migrations[name]
		if !ok {
			return reverted, fmt.Errorf("migration %s has run but is not registered", name)
		}
		err := m.db.Transaction(ctx, func(tx *database.Tx) error {
			if err := migration.Down(ctx, m.schema.WithExecutor(tx)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE migration = ?", m.table), name)
			return err
		})
		if err != nil {
			return reverted, fmt.Errorf("rollback of %s failed: %w", name, err)
		}
		reverted = append(reverted, name)
	}
	return reverted, nil
}

// Reset reverts every migration that has run
func (m *Migrator) Reset(ctx context.Context) ([]string, error) {
	ran, err := m.ranOrEmpty(ctx)
	if err != nil {
		return nil, err
	}
	batches := make(map[int]bool)
	for _, b := range ran {
		batches[b] = true
	}
	return m.Rollback(ctx, max(len(batches), 1))
}

func (m *Migrator) ranOrEmpty(ctx context.Context) (map[string]int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	return m.ran(ctx)
}

// Status lists every registered or recorded migration in name order
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	ran, err := m.ranOrEmpty(ctx)
	if err != nil {
		return nil, err
	}

	names := m.sortedNames()
	for name := range ran {
		if _, registered := m.migrations[name]; !registered {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		batch, done := ran[name]
		statuses = append(statuses, Status{Name: name, Ran: done, Batch: batch})
	}
	return statuses, nil
}
