package schema

import (
	"context"
	"fmt"

	"github.com/onyx-go/dispatch/internal/database"
)

// Builder applies blueprints to a connection
type Builder struct {
	db      database.Executor
	grammar Grammar
}

// NewBuilder creates a schema builder for db's driver
func NewBuilder(db database.Executor) (*Builder, error) {
	grammar, err := GrammarFor(db.Driver())
	if err != nil {
		return nil, err
	}
	return &Builder{db: db, grammar: grammar}, nil
}

// Grammar returns the SQL grammar in use
func (s *Builder) Grammar() Grammar {
	return s.grammar
}

// WithExecutor returns a builder that runs statements on exec, e.g. a
// transaction
func (s *Builder) WithExecutor(exec database.Executor) *Builder {
	return &Builder{db: exec, grammar: s.grammar}
}

// Create creates a table described by define
func (s *Builder) Create(ctx context.Context, table string, define func(*Blueprint)) error {
	b := NewBlueprint(table, true)
	define(b)
	statements, err := s.grammar.CompileCreate(b)
	if err != nil {
		return err
	}
	return s.exec(ctx, statements...)
}

// Table alters an existing table
func (s *Builder) Table(ctx context.Context, table string, define func(*Blueprint)) error {
	b := NewBlueprint(table, false)
	define(b)
	statements, err := s.grammar.CompileAlter(b)
	if err != nil {
		return err
	}
	return s.exec(ctx, statements...)
}

// Drop drops a table
func (s *Builder) Drop(ctx context.Context, table string) error {
	return s.exec(ctx, s.grammar.CompileDrop(table, false))
}

// DropIfExists drops a table when it exists
func (s *Builder) DropIfExists(ctx context.Context, table string) error {
	return s.exec(ctx, s.grammar.CompileDrop(table, true))
}

// Rename renames a table
func (s *Builder) Rename(ctx context.Context, from, to string) error {
	return s.exec(ctx, s.grammar.CompileRename(from, to))
}

// HasTable reports whether table exists
func (s *Builder) HasTable(ctx context.Context, table string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, s.grammar.CompileHasTable(), table)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, err
		}
	}
	return count > 0, rows.Err()
}

// ColumnListing returns the column names of table in declaration order
func (s *Builder) ColumnListing(ctx context.Context, table string) ([]string, error) {
	query, args := s.grammar.CompileColumnListing(table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// HasColumn reports whether table has column
func (s *Builder) HasColumn(ctx context.Context, table, column string) (bool, error) {
	columns, err := s.ColumnListing(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range columns {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

func (s *Builder) exec(ctx context.Context, statements ...string) error {
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("schema statement failed: %s: %w", statement, err)
		}
	}
	return nil
}
