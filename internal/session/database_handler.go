package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onyx-go/dispatch/internal/database"
	"github.com/onyx-go/dispatch/internal/database/schema"
)

// DefaultTable is the table DatabaseHandler stores sessions in
const DefaultTable = "sessions"

// DatabaseHandler stores sessions in a SQL table with columns id, payload
// and last_activity (unix seconds)
type DatabaseHandler struct {
	db    *database.DB
	table string
	now   func() time.Time
}

// NewDatabaseHandler creates a handler over table ("sessions" when empty)
func NewDatabaseHandler(db *database.DB, table string) *DatabaseHandler {
	if table == "" {
		table = DefaultTable
	}
	return &DatabaseHandler{db: db, table: table, now: time.Now}
}

// WithClock replaces the handler's time source
func (h *DatabaseHandler) WithClock(now func() time.Time) *DatabaseHandler {
	h.now = now
	return h
}

// Migration creates the sessions table
func (h *DatabaseHandler) Migration() schema.Migration {
	return schema.Func{
		ID: "0000_00_00_000000_create_" + h.table + "_table",
		UpFn: func(ctx context.Context, s *schema.Builder) error {
			return s.Create(ctx, h.table, func(t *schema.Blueprint) {
				t.String("id").Primary()
				t.Text("payload")
				t.BigInteger("last_activity").Index()
			})
		},
		DownFn: func(ctx context.Context, s *schema.Builder) error {
			return s.DropIfExists(ctx, h.table)
		},
	}
}

// Read returns the stored payload; unknown IDs yield empty data
func (h *DatabaseHandler) Read(ctx context.Context, sessionID string) ([]byte, error) {
	var payload string
	err := h.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", h.table), sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return []byte(payload), nil
}

// Write inserts or replaces the payload and touches last_activity
func (h *DatabaseHandler) Write(ctx context.Context, sessionID string, data []byte) error {
	now := h.now().Unix()
	return h.db.Transaction(ctx, func(tx *database.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", h.table), sessionID)
		if err != nil {
			return fmt.Errorf("write session: %w", err)
		}
		exists := rows.Next()
		rows.Close()

		if exists {
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET payload = ?, last_activity = ? WHERE id = ?", h.table),
				string(data), now, sessionID)
		} else {
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (id, payload, last_activity) VALUES (?, ?, ?)", h.table),
				sessionID, string(data), now)
		}
		if err != nil {
			return fmt.Errorf("write session: %w", err)
		}
		return nil
	})
}

// Destroy deletes a session
func (h *DatabaseHandler) Destroy(ctx context.Context, sessionID string) error {
	_, err := h.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", h.table), sessionID)
	return err
}

// Exists reports whether a session row exists
func (h *DatabaseHandler) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := h.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", h.table), sessionID).Scan(&count)
	return count > 0, err
}

// GC deletes sessions idle for longer than maxLifetime
func (h *DatabaseHandler) GC(ctx context.Context, maxLifetime time.Duration) (int, error) {
	cutoff := h.now().Add(-maxLifetime).Unix()
	result, err := h.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE last_activity < ?", h.table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("session gc: %w", err)
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// Count returns the number of stored sessions
func (h *DatabaseHandler) Count(ctx context.Context) (int, error) {
	var count int
	err := h.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", h.table)).Scan(&count)
	return count, err
}

var _ Handler = (*DatabaseHandler)(nil)
