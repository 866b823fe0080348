// Package transform compiles abstract operations into PostgreSQL statement
// trees. Relations are followed with correlated sub-selects, JSON results are
// assembled with json_build_object/json_agg and mutations with nested child
// operations become a single statement of data-modifying CTEs.
package transform

import (
	"errors"
	"fmt"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/sqltree"
)

var (
	// ErrNotPhysicalPath is returned when a column path that must address a
	// physical column is empty or a literal.
	ErrNotPhysicalPath = errors.New("column path does not address a physical column")

	// ErrUnscopedNestedMutation is returned for a nested update or delete
	// without a predicate of its own. Such an operation would touch every
	// child of the parent rows.
	ErrUnscopedNestedMutation = errors.New("nested update or delete requires a predicate")
)

// Postgres compiles abstract operations against one schema snapshot. It
// holds no mutable state and is safe for concurrent use.
type Postgres struct {
	db *model.Database
}

// New returns a compiler for db.
func New(db *model.Database) *Postgres {
	return &Postgres{db: db}
}

// CompileSelect compiles s into a SELECT statement.
func (p *Postgres) CompileSelect(s asql.AbstractSelect) (sqltree.Statement, error) {
	c := p.newCompiler()
	return c.selectStmt(s, c.physicalSource(s.Table), nil, true)
}

// Compile is a convenience wrapper that compiles any abstract operation and
// renders it.
func (p *Postgres) Compile(op interface{}) (string, []interface{}, error) {
	var (
		stmt sqltree.Statement
		err  error
	)
	switch op := op.(type) {
	case asql.AbstractSelect:
		stmt, err = p.CompileSelect(op)
	case asql.AbstractInsert:
		stmt, err = p.CompileInsert(op)
	case asql.AbstractUpdate:
		stmt, err = p.CompileUpdate(op)
	case asql.AbstractDelete:
		stmt, err = p.CompileDelete(op)
	default:
		return "", nil, fmt.Errorf("unsupported operation %T", op)
	}
	if err != nil {
		return "", nil, err
	}
	sql, args := sqltree.Render(stmt)
	return sql, args, nil
}

// compiler carries the state of one compilation: the names handed out so
// far, so every table alias and CTE name is unique within the statement.
type compiler struct {
	db   *model.Database
	used map[string]bool
	next map[string]int
}

func (p *Postgres) newCompiler() *compiler {
	return &compiler{db: p.db, used: map[string]bool{}, next: map[string]int{}}
}

// name returns base, or base_N for the first N that has not been used yet.
func (c *compiler) name(base string) string {
	for {
		n := c.next[base] + 1
		c.next[base] = n
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		if !c.used[candidate] {
			c.used[candidate] = true
			return candidate
		}
	}
}

func (c *compiler) alias() string { return c.name("t") }

func (c *compiler) tableName(t model.TableID) string { return c.db.Table(t).Name }

// physical returns the schema-qualified table. CTE references are left
// unqualified, so a CTE never shadows a physical table.
func (c *compiler) physical(t model.TableID, alias string) sqltree.Table {
	return sqltree.Table{Schema: c.db.SchemaName(), Name: c.tableName(t), Alias: alias}
}

type sourceFunc func(alias string) sqltree.Source

func (c *compiler) physicalSource(t model.TableID) sourceFunc {
	return func(alias string) sqltree.Source { return c.physical(t, alias) }
}

func cteSource(names []string) sourceFunc {
	return func(alias string) sqltree.Source {
		if len(names) == 1 {
			return sqltree.Table{Name: names[0], Alias: alias}
		}
		return sqltree.UnionAll{Names: names, Alias: alias}
	}
}

// column references col through alias after checking it belongs to table.
func (c *compiler) column(col model.ColumnID, table model.TableID, alias string) (sqltree.ColumnRef, error) {
	if col.Table != table {
		return sqltree.ColumnRef{}, fmt.Errorf("column %s does not belong to table %s", c.db.QualifiedName(col), c.tableName(table))
	}
	return sqltree.ColumnRef{Alias: alias, Name: c.db.Column(col).Name}, nil
}

func (c *compiler) ref(alias string, col model.ColumnID) sqltree.ColumnRef {
	return sqltree.ColumnRef{Alias: alias, Name: c.db.Column(col).Name}
}

func and(a, b sqltree.Predicate) sqltree.Predicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return sqltree.And{Left: a, Right: b}
}

func int64Param(v *int64) sqltree.Expr {
	if v == nil {
		return nil
	}
	return sqltree.Param{Value: *v}
}
