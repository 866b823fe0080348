package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/exosql/exosql/internal/model"
)

// Statement is the DDL for one Op. Pre statements of every op in a
// migration run before any Statement, and Post statements after all of
// them.
type Statement struct {
	Pre       []string
	Statement string
	Post      []string
}

// Op is one structural schema change.
type Op interface {
	Statement() Statement
	// Destructive reports whether applying the op can lose data.
	Destructive() bool
	schemaOp()
}

// CreateExtension installs a PostgreSQL extension.
type CreateExtension struct{ Name string }

// RemoveExtension drops a PostgreSQL extension.
type RemoveExtension struct{ Name string }

// CreateTable creates a table with all of its columns and constraints.
type CreateTable struct {
	DB    *model.Database
	Table model.TableID
}

// DeleteTable drops a table.
type DeleteTable struct {
	DB    *model.Database
	Table model.TableID
}

// CreateColumn adds a column to an existing table. Recreated marks the
// re-add of a column dropped by the same migration.
type CreateColumn struct {
	DB        *model.Database
	Column    model.ColumnID
	Recreated bool
}

// DeleteColumn drops a column.
type DeleteColumn struct {
	DB     *model.Database
	Column model.ColumnID
}

// SetNotNull adds a NOT NULL constraint to a column.
type SetNotNull struct {
	DB     *model.Database
	Column model.ColumnID
}

// UnsetNotNull drops the NOT NULL constraint of a column.
type UnsetNotNull struct {
	DB     *model.Database
	Column model.ColumnID
}

// SetColumnDefault sets the default expression of a column to the one
// the column declares.
type SetColumnDefault struct {
	DB     *model.Database
	Column model.ColumnID
}

// UnsetColumnDefault drops the default expression of a column.
type UnsetColumnDefault struct {
	DB     *model.Database
	Column model.ColumnID
}

// CreateUniqueConstraint adds a named unique constraint. Columns are
// sorted. Restored marks a constraint that exists now but is dropped
// along with one of its columns by the same migration.
type CreateUniqueConstraint struct {
	DB       *model.Database
	Table    model.TableID
	Name     string
	Columns  []string
	Restored bool
}

// RemoveUniqueConstraint drops a named unique constraint.
type RemoveUniqueConstraint struct {
	DB    *model.Database
	Table model.TableID
	Name  string
}

func (CreateExtension) schemaOp()        {}
func (RemoveExtension) schemaOp()        {}
func (CreateTable) schemaOp()            {}
func (DeleteTable) schemaOp()            {}
func (CreateColumn) schemaOp()           {}
func (DeleteColumn) schemaOp()           {}
func (SetNotNull) schemaOp()             {}
func (UnsetNotNull) schemaOp()           {}
func (SetColumnDefault) schemaOp()       {}
func (UnsetColumnDefault) schemaOp()     {}
func (CreateUniqueConstraint) schemaOp() {}
func (RemoveUniqueConstraint) schemaOp() {}

func (CreateExtension) Destructive() bool          { return false }
func (RemoveExtension) Destructive() bool          { return true }
func (CreateTable) Destructive() bool              { return false }
func (DeleteTable) Destructive() bool              { return true }
func (o CreateColumn) Destructive() bool           { return o.Recreated }
func (DeleteColumn) Destructive() bool             { return true }
func (SetNotNull) Destructive() bool               { return false }
func (UnsetNotNull) Destructive() bool             { return false }
func (SetColumnDefault) Destructive() bool         { return false }
func (UnsetColumnDefault) Destructive() bool       { return false }
func (o CreateUniqueConstraint) Destructive() bool { return o.Restored }
func (RemoveUniqueConstraint) Destructive() bool   { return false }

func (o CreateExtension) Statement() Statement {
	return Statement{Statement: fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", model.QuoteIdentifier(o.Name))}
}

func (o RemoveExtension) Statement() Statement {
	return Statement{Statement: fmt.Sprintf("DROP EXTENSION %s;", model.QuoteIdentifier(o.Name))}
}

func (o CreateTable) Statement() Statement {
	t := o.DB.Table(o.Table)
	var post []string
	defs := make([]string, 0, len(t.Columns))
	for _, id := range o.DB.ColumnIDs(o.Table) {
		def, fks := columnSQL(o.DB, id)
		defs = append(defs, def)
		post = append(post, fks...)
	}
	uniques := t.NamedUniqueConstraints()
	for _, name := range sortedNames(uniques) {
		post = append(post, uniqueSQL(o.DB, o.Table, name, uniques[name]))
	}
	return Statement{
		Statement: fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);", qualified(o.DB, o.Table), strings.Join(defs, ",\n\t")),
		Post:      post,
	}
}

func (o DeleteTable) Statement() Statement {
	var pre []string
	for _, name := range sortedNames(o.DB.Table(o.Table).NamedUniqueConstraints()) {
		pre = append(pre, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", qualified(o.DB, o.Table), model.QuoteIdentifier(name)))
	}
	return Statement{
		Pre:       pre,
		Statement: fmt.Sprintf("DROP TABLE %s CASCADE;", qualified(o.DB, o.Table)),
	}
}

func (o CreateColumn) Statement() Statement {
	def, fks := columnSQL(o.DB, o.Column)
	return Statement{
		Statement: fmt.Sprintf("ALTER TABLE %s ADD %s;", qualified(o.DB, o.Column.Table), def),
		Post:      fks,
	}
}

func (o DeleteColumn) Statement() Statement {
	return alterColumn(o.DB, o.Column, "DROP COLUMN %s;")
}

func (o SetNotNull) Statement() Statement {
	return alterColumn(o.DB, o.Column, "ALTER COLUMN %s SET NOT NULL;")
}

func (o UnsetNotNull) Statement() Statement {
	return alterColumn(o.DB, o.Column, "ALTER COLUMN %s DROP NOT NULL;")
}

func (o SetColumnDefault) Statement() Statement {
	def := ""
	if d := o.DB.Column(o.Column).Default; d != nil {
		def = *d
	}
	return Statement{Statement: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
		qualified(o.DB, o.Column.Table), model.QuoteIdentifier(o.DB.Column(o.Column).Name), def)}
}

func (o UnsetColumnDefault) Statement() Statement {
	return alterColumn(o.DB, o.Column, "ALTER COLUMN %s DROP DEFAULT;")
}

func (o CreateUniqueConstraint) Statement() Statement {
	return Statement{Statement: uniqueSQL(o.DB, o.Table, o.Name, o.Columns)}
}

func (o RemoveUniqueConstraint) Statement() Statement {
	// IF EXISTS: dropping one of the constraint's columns drops it too.
	return Statement{Statement: fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;",
		qualified(o.DB, o.Table), model.QuoteIdentifier(o.Name))}
}

func qualified(db *model.Database, t model.TableID) string {
	return model.QuoteIdentifier(db.SchemaName()) + "." + model.QuoteIdentifier(db.Table(t).Name)
}

func alterColumn(db *model.Database, col model.ColumnID, format string) Statement {
	return Statement{Statement: fmt.Sprintf("ALTER TABLE %s "+format,
		qualified(db, col.Table), model.QuoteIdentifier(db.Column(col).Name))}
}

// columnSQL renders a column definition and the statements adding its
// foreign key.
func columnSQL(db *model.Database, id model.ColumnID) (string, []string) {
	c := db.Column(id)
	var b strings.Builder
	b.WriteString(model.QuoteIdentifier(c.Name))
	b.WriteByte(' ')
	b.WriteString(model.TypeSQL(c.Type, c.IsAutoIncrement))
	if c.IsPK {
		b.WriteString(" PRIMARY KEY")
	} else if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && !c.IsAutoIncrement {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}

	var post []string
	if ref, ok := c.Type.(model.ColumnReference); ok {
		table := db.Table(id.Table).Name
		post = append(post, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
			qualified(db, id.Table),
			model.QuoteIdentifier(table+"_"+c.Name+"_fk"),
			model.QuoteIdentifier(c.Name),
			qualified(db, ref.Column.Table),
			model.QuoteIdentifier(db.Column(ref.Column).Name)))
	}
	return b.String(), post
}

func uniqueSQL(db *model.Database, t model.TableID, name string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);",
		qualified(db, t), model.QuoteIdentifier(name), sortedColumnList(columns))
}

// sortedColumnList renders quoted column names in sorted order.
func sortedColumnList(columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	for i, c := range sorted {
		sorted[i] = model.QuoteIdentifier(c)
	}
	return strings.Join(sorted, ", ")
}

func sortedNames(m map[string][]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
