package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	return Config{Driver: SQLite, Database: filepath.Join(t.TempDir(), "test.sqlite")}
}

func TestDSN(t *testing.T) {
	dsn, err := Config{Driver: MySQL, Host: "db", Database: "app", Username: "root", Password: "secret", Charset: "utf8mb4"}.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "root:secret@tcp(db:3306)/app")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	dsn, err = Config{Driver: Postgres, Host: "pg", Port: 6543, Database: "app", Username: "u", Password: "p@ss", SSLMode: "disable"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p%40ss@pg:6543/app?sslmode=disable", dsn)

	dsn, err = Config{Driver: SQLite, Database: "storage/app.db"}.DSN()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:storage/app.db?"))

	_, err = Config{Driver: SQLite}.DSN()
	assert.Error(t, err)
	_, err = Config{Driver: "oracle"}.DSN()
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM users WHERE id = ? AND note = 'why?' AND role = ?"

	assert.Equal(t, query, Rebind(MySQL, query))
	assert.Equal(t, query, Rebind(SQLite, query))
	assert.Equal(t, "SELECT * FROM users WHERE id = $1 AND note = 'why?' AND role = $2", Rebind(Postgres, query))
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, sqliteConfig(t))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, SQLite, db.Driver())

	_, err = db.ExecContext(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "first")
	require.NoError(t, err)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM items WHERE id = ?", 1).Scan(&name))
	assert.Equal(t, "first", name)
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: SQLite, Database: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE t (v TEXT)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t (v) VALUES (?)", "x")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, sqliteConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE logs (msg TEXT)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO logs (msg) VALUES (?)", "rolled back"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO logs (msg) VALUES (?)", "kept")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager(sqliteConfig(t))
	m.AddConnection("reports", sqliteConfig(t))

	first, err := m.Default(ctx)
	require.NoError(t, err)
	again, err := m.Connection(ctx, "")
	require.NoError(t, err)
	assert.Same(t, first, again)

	reports, err := m.Connection(ctx, "reports")
	require.NoError(t, err)
	assert.NotSame(t, first, reports)

	_, err = m.Connection(ctx, "missing")
	assert.Error(t, err)

	cfg, ok := m.Config("reports")
	assert.True(t, ok)
	assert.Equal(t, SQLite, cfg.Driver)

	require.NoError(t, m.Close())
	assert.Error(t, first.PingContext(ctx))
}
