package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/onyx-go/dispatch/internal/database"
)

// Grammar turns blueprints into SQL for one driver
type Grammar interface {
	CompileCreate(b *Blueprint) ([]string, error)
	CompileAlter(b *Blueprint) ([]string, error)
	CompileDrop(table string, ifExists bool) string
	CompileRename(from, to string) string
	// CompileHasTable returns a query counting tables named by its one argument
	CompileHasTable() string
	// CompileColumnListing returns a query whose first column is the column name
	CompileColumnListing(table string) (string, []interface{})
}

// GrammarFor returns the grammar of a driver
func GrammarFor(driver string) (Grammar, error) {
	switch driver {
	case database.MySQL:
		return &mysqlGrammar{base{quote: "`", types: mysqlTypes}}, nil
	case database.Postgres:
		return &postgresGrammar{base{quote: `"`, types: postgresTypes}}, nil
	case database.SQLite:
		return &sqliteGrammar{base{quote: `"`, types: sqliteTypes}}, nil
	default:
		return nil, fmt.Errorf("no schema grammar for driver %q", driver)
	}
}

var mysqlTypes = map[string]string{
	TypeBigIncrements: "BIGINT UNSIGNED",
	TypeString:        "VARCHAR(%d)",
	TypeText:          "TEXT",
	TypeInteger:       "INT",
	TypeBigInteger:    "BIGINT",
	TypeBoolean:       "TINYINT(1)",
	TypeDecimal:       "DECIMAL(%d,%d)",
	TypeFloat:         "DOUBLE",
	TypeDate:          "DATE",
	TypeTimestamp:     "TIMESTAMP",
	TypeJSON:          "JSON",
	TypeUUID:          "CHAR(36)",
	TypeBinary:        "BLOB",
}

var postgresTypes = map[string]string{
	TypeBigIncrements: "BIGSERIAL",
	TypeString:        "VARCHAR(%d)",
	TypeText:          "TEXT",
	TypeInteger:       "INTEGER",
	TypeBigInteger:    "BIGINT",
	TypeBoolean:       "BOOLEAN",
	TypeDecimal:       "DECIMAL(%d,%d)",
	TypeFloat:         "DOUBLE PRECISION",
	TypeDate:          "DATE",
	TypeTimestamp:     "TIMESTAMP(0) WITHOUT TIME ZONE",
	TypeJSON:          "JSONB",
	TypeUUID:          "UUID",
	TypeBinary:        "BYTEA",
}

var sqliteTypes = map[string]string{
	TypeBigIncrements: "INTEGER",
	TypeString:        "VARCHAR",
	TypeText:          "TEXT",
	TypeInteger:       "INTEGER",
	TypeBigInteger:    "INTEGER",
	TypeBoolean:       "TINYINT(1)",
	TypeDecimal:       "NUMERIC",
	TypeFloat:         "FLOAT",
	TypeDate:          "DATE",
	TypeTimestamp:     "DATETIME",
	TypeJSON:          "TEXT",
	TypeUUID:          "VARCHAR",
	TypeBinary:        "BLOB",
}

// base holds what the grammars share
type base struct {
	quote string
	types map[string]string
}

func (g base) wrap(name string) string {
	return g.quote + strings.ReplaceAll(name, g.quote, g.quote+g.quote) + g.quote
}

func (g base) wrapAll(names []string) string {
	wrapped := make([]string, len(names))
	for i, n := range names {
		wrapped[i] = g.wrap(n)
	}
	return strings.Join(wrapped, ", ")
}

func (g base) typeOf(c *Column) (string, error) {
	pattern, ok := g.types[c.Type]
	if !ok {
		return "", fmt.Errorf("unsupported column type %q for column %s", c.Type, c.Name)
	}
	switch strings.Count(pattern, "%d") {
	case 1:
		return fmt.Sprintf(pattern, c.Length), nil
	case 2:
		precision, scale := c.Precision, c.Scale
		if precision == 0 {
			precision, scale = 8, 2
		}
		return fmt.Sprintf(pattern, precision, scale), nil
	}
	return pattern, nil
}

// modifiers renders NULL handling and the default
func (g base) modifiers(c *Column) string {
	var b strings.Builder
	if c.IsNull {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultLiteral(c.Default))
	}
	return b.String()
}

func defaultLiteral(value interface{}) string {
	switch v := value.(type) {
	case Expression:
		return string(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g base) foreignKey(fk *ForeignKey) string {
	sql := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", g.wrap(fk.Column), g.wrap(fk.On), g.wrap(fk.References))
	if fk.OnDelete != "" {
		sql += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		sql += " ON UPDATE " + fk.OnUpdate
	}
	return sql
}

func (g base) createIndex(table string, idx Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, g.wrap(idx.Name), g.wrap(table), g.wrapAll(idx.Columns))
}

// compileCreate builds CREATE TABLE with the column renderer of a dialect
func (g base) compileCreate(b *Blueprint, column func(*Column) (string, error), inlinePrimary bool) ([]string, error) {
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", b.table)
	}

	var parts, primary []string
	for _, c := range b.columns {
		def, err := column(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, def)
		if c.IsPrimary && !(inlinePrimary && c.Type == TypeBigIncrements) {
			primary = append(primary, c.Name)
		}
	}
	if len(primary) > 0 {
		parts = append(parts, "PRIMARY KEY ("+g.wrapAll(primary)+")")
	}
	for _, fk := range b.foreign {
		parts = append(parts, g.foreignKey(fk))
	}

	statements := []string{fmt.Sprintf("CREATE TABLE %s (%s)", g.wrap(b.table), strings.Join(parts, ", "))}
	for _, idx := range b.allIndexes() {
		statements = append(statements, g.createIndex(b.table, idx))
	}
	return statements, nil
}

func (g base) compileAlter(b *Blueprint, column func(*Column) (string, error), dropIndex func(table, name string) string, foreign bool) ([]string, error) {
	var statements []string
	table := g.wrap(b.table)

	for _, c := range b.columns {
		def, err := column(c)
		if err != nil {
			return nil, err
		}
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def))
	}
	for _, r := range b.renames {
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, g.wrap(r.from), g.wrap(r.to)))
	}
	for _, name := range b.drops {
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, g.wrap(name)))
	}
	for _, idx := range b.allIndexes() {
		statements = append(statements, g.createIndex(b.table, idx))
	}
	for _, name := range b.dropIdx {
		statements = append(statements, dropIndex(b.table, name))
	}
	if len(b.foreign) > 0 {
		if !foreign {
			return nil, fmt.Errorf("adding foreign keys to an existing table is not supported on this driver")
		}
		for _, fk := range b.foreign {
			name := indexName(b.table, "foreign", []string{fk.Column})
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", table, g.wrap(name), g.foreignKey(fk)))
		}
	}
	return statements, nil
}

func (g base) CompileDrop(table string, ifExists bool) string {
	if ifExists {
		return "DROP TABLE IF EXISTS " + g.wrap(table)
	}
	return "DROP TABLE " + g.wrap(table)
}

func (g base) CompileRename(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", g.wrap(from), g.wrap(to))
}

type mysqlGrammar struct{ base }

func (g *mysqlGrammar) column(c *Column) (string, error) {
	typ, err := g.typeOf(c)
	if err != nil {
		return "", err
	}
	if c.Unsigned && c.Type != TypeBigIncrements && (c.Type == TypeInteger || c.Type == TypeBigInteger) {
		typ += " UNSIGNED"
	}
	def := g.wrap(c.Name) + " " + typ + g.modifiers(c)
	if c.Type == TypeBigIncrements {
		def += " AUTO_INCREMENT"
	}
	return def, nil
}

func (g *mysqlGrammar) CompileCreate(b *Blueprint) ([]string, error) {
	statements, err := g.compileCreate(b, g.column, false)
	if err != nil {
		return nil, err
	}
	statements[0] += " DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	return statements, nil
}

func (g *mysqlGrammar) CompileAlter(b *Blueprint) ([]string, error) {
	return g.compileAlter(b, g.column, func(table, name string) string {
		return fmt.Sprintf("DROP INDEX %s ON %s", g.wrap(name), g.wrap(table))
	}, true)
}

func (g *mysqlGrammar) CompileRename(from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", g.wrap(from), g.wrap(to))
}

func (g *mysqlGrammar) CompileHasTable() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (g *mysqlGrammar) CompileColumnListing(table string) (string, []interface{}) {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []interface{}{table}
}

type postgresGrammar struct{ base }

func (g *postgresGrammar) column(c *Column) (string, error) {
	typ, err := g.typeOf(c)
	if err != nil {
		return "", err
	}
	if c.Type == TypeBoolean && c.Default != nil {
		if v, ok := c.Default.(bool); ok {
			return g.wrap(c.Name) + " " + typ + notNull(c) + " DEFAULT " + strconv.FormatBool(v), nil
		}
	}
	return g.wrap(c.Name) + " " + typ + g.modifiers(c), nil
}

func notNull(c *Column) string {
	if c.IsNull {
		return " NULL"
	}
	return " NOT NULL"
}

func (g *postgresGrammar) CompileCreate(b *Blueprint) ([]string, error) {
	return g.compileCreate(b, g.column, false)
}

func (g *postgresGrammar) CompileAlter(b *Blueprint) ([]string, error) {
	return g.compileAlter(b, g.column, func(_, name string) string {
		return "DROP INDEX " + g.wrap(name)
	}, true)
}

func (g *postgresGrammar) CompileHasTable() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (g *postgresGrammar) CompileColumnListing(table string) (string, []interface{}) {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position", []interface{}{table}
}

type sqliteGrammar struct{ base }

func (g *sqliteGrammar) column(c *Column) (string, error) {
	typ, err := g.typeOf(c)
	if err != nil {
		return "", err
	}
	if c.Type == TypeBigIncrements {
		return g.wrap(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL", nil
	}
	return g.wrap(c.Name) + " " + typ + g.modifiers(c), nil
}

func (g *sqliteGrammar) CompileCreate(b *Blueprint) ([]string, error) {
	return g.compileCreate(b, g.column, true)
}

func (g *sqliteGrammar) CompileAlter(b *Blueprint) ([]string, error) {
	return g.compileAlter(b, g.column, func(_, name string) string {
		return "DROP INDEX " + g.wrap(name)
	}, false)
}

func (g *sqliteGrammar) CompileHasTable() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (g *sqliteGrammar) CompileColumnListing(table string) (string, []interface{}) {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []interface{}{table}
}
