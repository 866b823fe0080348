// Package model describes the physical relational schema shared by the
// operation compiler and the schema diff engine. Tables and columns live in an
// arena owned by a Database; every cross-reference (foreign keys, column paths,
// relations) is an identifier lookup into that arena, so self-referential and
// cyclic schemas need no ownership links.
package model

import (
	"sort"
)

// DefaultSchema is the PostgreSQL schema used when none is configured.
const DefaultSchema = "public"

// TableID identifies a table within a Database.
type TableID int

// ColumnID identifies a column by its owning table and ordinal position.
type ColumnID struct {
	Table TableID
	Index int
}

// Table is a physical table. Column order is significant: it is the order in
// which columns are declared in DDL and reported by introspection.
type Table struct {
	Name    string
	Columns []Column
}

// Column is a physical column of a table.
type Column struct {
	Table             TableID
	Name              string
	Type              ColumnType
	IsPK              bool
	IsAutoIncrement   bool
	IsNullable        bool
	UniqueConstraints []string
	Default           *string
}

// Database is an immutable snapshot of a schema. Instances are produced by a
// Builder and never modified afterwards, so they are safe to share between
// goroutines.
type Database struct {
	schema string
	tables []Table
	byName map[string]TableID
}

// Empty returns a snapshot without tables, used as the "existing" side when
// generating DDL for a fresh database.
func Empty(schema string) *Database {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Database{schema: schema, byName: map[string]TableID{}}
}

// SchemaName returns the PostgreSQL schema the tables belong to.
func (d *Database) SchemaName() string { return d.schema }

// TableIDs returns the identifiers of all tables in declaration order.
func (d *Database) TableIDs() []TableID {
	ids := make([]TableID, len(d.tables))
	for i := range d.tables {
		ids[i] = TableID(i)
	}
	return ids
}

// Table returns the table with the given identifier.
func (d *Database) Table(id TableID) *Table {
	return &d.tables[id]
}

// TableByName looks up a table identifier by table name.
func (d *Database) TableByName(name string) (TableID, bool) {
	id, ok := d.byName[name]
	return id, ok
}

// Column returns the column with the given identifier.
func (d *Database) Column(id ColumnID) *Column {
	return &d.tables[id.Table].Columns[id.Index]
}

// ColumnByName looks up a column of table t by name.
func (d *Database) ColumnByName(t TableID, name string) (ColumnID, bool) {
	for i, c := range d.tables[t].Columns {
		if c.Name == name {
			return ColumnID{Table: t, Index: i}, true
		}
	}
	return ColumnID{}, false
}

// PKColumn returns the first primary key column of table t.
func (d *Database) PKColumn(t TableID) (ColumnID, bool) {
	for i, c := range d.tables[t].Columns {
		if c.IsPK {
			return ColumnID{Table: t, Index: i}, true
		}
	}
	return ColumnID{}, false
}

// ColumnIDs returns the identifiers of every column of table t in order.
func (d *Database) ColumnIDs(t TableID) []ColumnID {
	cols := d.tables[t].Columns
	ids := make([]ColumnID, len(cols))
	for i := range cols {
		ids[i] = ColumnID{Table: t, Index: i}
	}
	return ids
}

// QualifiedName returns a human readable "table.column" for col.
func (d *Database) QualifiedName(col ColumnID) string {
	return d.tables[col.Table].Name + "." + d.Column(col).Name
}

// NamedUniqueConstraints groups the table's columns by the named unique
// constraints they participate in. Column names are sorted.
func (t *Table) NamedUniqueConstraints() map[string][]string {
	out := make(map[string][]string)
	for _, c := range t.Columns {
		for _, name := range c.UniqueConstraints {
			out[name] = append(out[name], c.Name)
		}
	}
	for name := range out {
		sort.Strings(out[name])
	}
	return out
}

// RequiredExtensions returns the PostgreSQL extensions the table's column
// types depend on, sorted by name.
func (t *Table) RequiredExtensions() []string {
	set := map[string]bool{}
	for _, c := range t.Columns {
		for _, ext := range typeExtensions(c.Type) {
			set[ext] = true
		}
	}
	return sortedKeys(set)
}

// RequiredExtensions returns the union of every table's required extensions.
func (d *Database) RequiredExtensions() []string {
	set := map[string]bool{}
	for i := range d.tables {
		for _, ext := range d.tables[i].RequiredExtensions() {
			set[ext] = true
		}
	}
	return sortedKeys(set)
}

func typeExtensions(t ColumnType) []string {
	switch t := t.(type) {
	case UUIDType:
		return []string{"pgcrypto"}
	case ArrayType:
		return typeExtensions(t.Elem)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
