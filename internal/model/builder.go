package model

import (
	"errors"
	"fmt"
)

// ErrCompositePrimaryKey is reported by Build for a table with more than
// one primary key column. Relations and generated DDL assume a single key.
var ErrCompositePrimaryKey = errors.New("composite primary keys are not supported")

// Reference names the target of a foreign key column while a Database is
// being built. An empty Column means the target table's primary key.
type Reference struct {
	Table  TableID
	Column string
}

// ColumnDef declares a column for Builder.AddColumn. Type is ignored when
// References is set; the column's type is then derived from the target.
type ColumnDef struct {
	Name              string
	Type              ColumnType
	References        *Reference
	IsPK              bool
	IsAutoIncrement   bool
	IsNullable        bool
	UniqueConstraints []string
	Default           *string
}

// Builder assembles a Database in two phases. AddTable allocates a stable
// TableID for every table first; AddColumn then fills in columns and may
// reference any table allocated so far, including ones whose columns are
// not declared yet. Build resolves the references and returns the snapshot.
type Builder struct {
	schema string
	tables []Table
	byName map[string]TableID
	refs   map[ColumnID]Reference
	errs   []error
}

// NewBuilder returns a Builder for the given PostgreSQL schema.
func NewBuilder(schema string) *Builder {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Builder{
		schema: schema,
		byName: make(map[string]TableID),
		refs:   make(map[ColumnID]Reference),
	}
}

// AddTable allocates a placeholder for a table. Adding the same name twice
// returns the existing identifier and records an error.
func (b *Builder) AddTable(name string) TableID {
	if id, ok := b.byName[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("duplicate table %q", name))
		return id
	}
	id := TableID(len(b.tables))
	b.tables = append(b.tables, Table{Name: name})
	b.byName[name] = id
	return id
}

// TableID returns the identifier allocated for a table name.
func (b *Builder) TableID(name string) (TableID, bool) {
	id, ok := b.byName[name]
	return id, ok
}

// AddColumn appends a column to table t.
func (b *Builder) AddColumn(t TableID, def ColumnDef) ColumnID {
	table := &b.tables[t]
	for _, c := range table.Columns {
		if c.Name == def.Name {
			b.errs = append(b.errs, fmt.Errorf("duplicate column %q in table %q", def.Name, table.Name))
		}
	}

	id := ColumnID{Table: t, Index: len(table.Columns)}
	table.Columns = append(table.Columns, Column{
		Table:             t,
		Name:              def.Name,
		Type:              def.Type,
		IsPK:              def.IsPK,
		IsAutoIncrement:   def.IsAutoIncrement,
		IsNullable:        def.IsNullable,
		UniqueConstraints: append([]string(nil), def.UniqueConstraints...),
		Default:           def.Default,
	})
	if def.References != nil {
		b.refs[id] = *def.References
	}
	return id
}

// Build validates identifiers, resolves every foreign key reference and
// returns the finished snapshot. The Builder must not be used afterwards.
func (b *Builder) Build() (*Database, error) {
	errs := append([]error(nil), b.errs...)

	for _, t := range b.tables {
		if err := ValidateIdentifier(t.Name); err != nil {
			errs = append(errs, fmt.Errorf("table: %w", err))
		}
		pks := 0
		for _, c := range t.Columns {
			if err := ValidateIdentifier(c.Name); err != nil {
				errs = append(errs, fmt.Errorf("column of %q: %w", t.Name, err))
			}
			if c.IsPK {
				pks++
			}
		}
		if pks > 1 {
			errs = append(errs, fmt.Errorf("table %q has %d primary key columns: %w", t.Name, pks, ErrCompositePrimaryKey))
		}
	}

	for i := range b.tables {
		for j := range b.tables[i].Columns {
			id := ColumnID{Table: TableID(i), Index: j}
			if _, ok := b.refs[id]; ok {
				typ, err := b.resolveReference(id, map[ColumnID]bool{})
				if err != nil {
					errs = append(errs, err)
					continue
				}
				b.tables[i].Columns[j].Type = typ
			} else if b.tables[i].Columns[j].Type == nil {
				errs = append(errs, fmt.Errorf("column %s.%s has no type", b.tables[i].Name, b.tables[i].Columns[j].Name))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Database{
		schema: b.schema,
		tables: b.tables,
		byName: b.byName,
	}, nil
}

// resolveReference locates the column referenced by id and determines its
// type, following chains of references down to a scalar type.
func (b *Builder) resolveReference(id ColumnID, visiting map[ColumnID]bool) (ColumnReference, error) {
	col := b.tables[id.Table].Columns[id.Index]
	ref := b.refs[id]
	if int(ref.Table) < 0 || int(ref.Table) >= len(b.tables) {
		return ColumnReference{}, fmt.Errorf("column %s.%s references an unknown table", b.tables[id.Table].Name, col.Name)
	}
	if visiting[id] {
		return ColumnReference{}, fmt.Errorf("column %s.%s has a cyclic reference type", b.tables[id.Table].Name, col.Name)
	}
	visiting[id] = true

	target, ok := b.lookupTarget(ref)
	if !ok {
		want := ref.Column
		if want == "" {
			want = "<primary key>"
		}
		return ColumnReference{}, fmt.Errorf("column %s.%s references missing column %s.%s",
			b.tables[id.Table].Name, col.Name, b.tables[ref.Table].Name, want)
	}

	if _, chained := b.refs[target]; chained {
		inner, err := b.resolveReference(target, visiting)
		if err != nil {
			return ColumnReference{}, err
		}
		return ColumnReference{Column: target, PKType: inner.PKType}, nil
	}

	pkType := b.tables[target.Table].Columns[target.Index].Type
	if pkType == nil {
		return ColumnReference{}, fmt.Errorf("referenced column %s.%s has no type",
			b.tables[target.Table].Name, b.tables[target.Table].Columns[target.Index].Name)
	}
	if existing, ok := pkType.(ColumnReference); ok {
		pkType = existing.PKType
	}
	return ColumnReference{Column: target, PKType: pkType}, nil
}

func (b *Builder) lookupTarget(ref Reference) (ColumnID, bool) {
	for i, c := range b.tables[ref.Table].Columns {
		if (ref.Column == "" && c.IsPK) || (ref.Column != "" && c.Name == ref.Column) {
			return ColumnID{Table: ref.Table, Index: i}, true
		}
	}
	return ColumnID{}, false
}
