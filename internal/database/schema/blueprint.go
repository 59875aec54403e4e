// Package schema builds and alters tables through a driver-neutral
// Blueprint, and runs ordered migrations recorded in a migrations table.
package schema

// Column types understood by every grammar
const (
	TypeBigIncrements = "bigincrements"
	TypeString        = "string"
	TypeText          = "text"
	TypeInteger       = "integer"
	TypeBigInteger    = "biginteger"
	TypeBoolean       = "boolean"
	TypeDecimal       = "decimal"
	TypeFloat         = "float"
	TypeDate          = "date"
	TypeTimestamp     = "timestamp"
	TypeJSON          = "json"
	TypeUUID          = "uuid"
	TypeBinary        = "binary"
)

// Foreign key actions
const (
	Cascade  = "CASCADE"
	Restrict = "RESTRICT"
	SetNull  = "SET NULL"
	NoAction = "NO ACTION"
)

// Column describes one column; its setters chain
type Column struct {
	Name      string
	Type      string
	Length    int
	Precision int
	Scale     int
	IsNull    bool
	Default   interface{}
	Unsigned  bool
	IsPrimary bool
	IsUnique  bool
	IsIndex   bool
}

// Nullable allows NULL values
func (c *Column) Nullable() *Column {
	c.IsNull = true
	return c
}

// DefaultValue sets the column default. Raw expressions such as
// CURRENT_TIMESTAMP are passed through Expression.
func (c *Column) DefaultValue(value interface{}) *Column {
	c.Default = value
	return c
}

// Unique adds a unique index on the column
func (c *Column) Unique() *Column {
	c.IsUnique = true
	return c
}

// Index adds a plain index on the column
func (c *Column) Index() *Column {
	c.IsIndex = true
	return c
}

// Primary makes the column the primary key
func (c *Column) Primary() *Column {
	c.IsPrimary = true
	return c
}

// UnsignedValue marks numeric columns unsigned where the driver supports it
func (c *Column) UnsignedValue() *Column {
	c.Unsigned = true
	return c
}

// Expression is a default value emitted without quoting
type Expression string

// Index describes a plain, unique or primary index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey describes a foreign key constraint
type ForeignKey struct {
	Column     string
	References string
	On         string
	OnDelete   string
	OnUpdate   string
}

// CascadeOnDelete deletes the row when the referenced row is deleted
func (f *ForeignKey) CascadeOnDelete() *ForeignKey {
	f.OnDelete = Cascade
	return f
}

// NullOnDelete sets the column to NULL when the referenced row is deleted
func (f *ForeignKey) NullOnDelete() *ForeignKey {
	f.OnDelete = SetNull
	return f
}

type rename struct{ from, to string }

// Blueprint collects the changes to one table
type Blueprint struct {
	table   string
	create  bool
	columns []*Column
	indexes []Index
	foreign []*ForeignKey
	drops   []string
	renames []rename
	dropIdx []string
}

// NewBlueprint starts a blueprint for table. create selects CREATE TABLE
// instead of ALTER TABLE.
func NewBlueprint(table string, create bool) *Blueprint {
	return &Blueprint{table: table, create: create}
}

// Table returns the table name
func (b *Blueprint) Table() string { return b.table }

// Columns returns the added columns
func (b *Blueprint) Columns() []*Column { return b.columns }

func (b *Blueprint) add(name, typ string) *Column {
	c := &Column{Name: name, Type: typ}
	b.columns = append(b.columns, c)
	return c
}

// ID adds an auto-incrementing big integer primary key named "id"
func (b *Blueprint) ID() *Column {
	c := b.add("id", TypeBigIncrements)
	c.IsPrimary = true
	c.Unsigned = true
	return c
}

// String adds a VARCHAR column, 255 long unless length is given
func (b *Blueprint) String(name string, length ...int) *Column {
	c := b.add(name, TypeString)
	c.Length = 255
	if len(length) > 0 && length[0] > 0 {
		c.Length = length[0]
	}
	return c
}

func (b *Blueprint) Text(name string) *Column { return b.add(name, TypeText) }

func (b *Blueprint) Integer(name string) *Column { return b.add(name, TypeInteger) }

func (b *Blueprint) BigInteger(name string) *Column { return b.add(name, TypeBigInteger) }

func (b *Blueprint) Boolean(name string) *Column { return b.add(name, TypeBoolean) }

func (b *Blueprint) Float(name string) *Column { return b.add(name, TypeFloat) }

func (b *Blueprint) Date(name string) *Column { return b.add(name, TypeDate) }

func (b *Blueprint) Timestamp(name string) *Column { return b.add(name, TypeTimestamp) }

func (b *Blueprint) JSON(name string) *Column { return b.add(name, TypeJSON) }

func (b *Blueprint) UUID(name string) *Column { return b.add(name, TypeUUID) }

func (b *Blueprint) Binary(name string) *Column { return b.add(name, TypeBinary) }

// Decimal adds a fixed-point column
func (b *Blueprint) Decimal(name string, precision, scale int) *Column {
	c := b.add(name, TypeDecimal)
	c.Precision = precision
	c.Scale = scale
	return c
}

// Timestamps adds nullable created_at and updated_at columns
func (b *Blueprint) Timestamps() {
	b.Timestamp("created_at").Nullable()
	b.Timestamp("updated_at").Nullable()
}

// SoftDeletes adds a nullable deleted_at column
func (b *Blueprint) SoftDeletes() {
	b.Timestamp("deleted_at").Nullable()
}

// RememberToken adds a nullable remember_token column
func (b *Blueprint) RememberToken() {
	b.String("remember_token", 100).Nullable()
}

// ForeignID adds an unsigned big integer column to hold a foreign key.
// Add the constraint with Foreign.
func (b *Blueprint) ForeignID(name string) *Column {
	c := b.add(name, TypeBigInteger)
	c.Unsigned = true
	return c
}

// Foreign adds a foreign key constraint on column
func (b *Blueprint) Foreign(column, references, on string) *ForeignKey {
	fk := &ForeignKey{Column: column, References: references, On: on}
	b.foreign = append(b.foreign, fk)
	return fk
}

// IndexOn adds an index over columns with a generated name
func (b *Blueprint) IndexOn(columns ...string) {
	b.indexes = append(b.indexes, Index{Name: indexName(b.table, "index", columns), Columns: columns})
}

// UniqueOn adds a unique index over columns with a generated name
func (b *Blueprint) UniqueOn(columns ...string) {
	b.indexes = append(b.indexes, Index{Name: indexName(b.table, "unique", columns), Columns: columns, Unique: true})
}

// DropColumn removes columns
func (b *Blueprint) DropColumn(names ...string) {
	b.drops = append(b.drops, names...)
}

// RenameColumn renames a column
func (b *Blueprint) RenameColumn(from, to string) {
	b.renames = append(b.renames, rename{from: from, to: to})
}

// DropIndex removes an index by name
func (b *Blueprint) DropIndex(name string) {
	b.dropIdx = append(b.dropIdx, name)
}

// allIndexes returns explicit indexes plus those declared on columns
func (b *Blueprint) allIndexes() []Index {
	indexes := append([]Index(nil), b.indexes...)
	for _, c := range b.columns {
		switch {
		case c.IsUnique:
			indexes = append(indexes, Index{Name: indexName(b.table, "unique", []string{c.Name}), Columns: []string{c.Name}, Unique: true})
		case c.IsIndex:
			indexes = append(indexes, Index{Name: indexName(b.table, "index", []string{c.Name}), Columns: []string{c.Name}})
		}
	}
	return indexes
}

func indexName(table, kind string, columns []string) string {
	name := table
	for _, c := range columns {
		name += "_" + c
	}
	return name + "_" + kind
}
