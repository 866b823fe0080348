package transform

import (
	"fmt"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/sqltree"
)

// parentRef scopes a nested operation to the rows produced by the parent's
// CTE: child.fk must hold one of the parent CTE's primary keys.
type parentRef struct {
	cte string
	fk  model.ColumnID
	pk  model.ColumnID
}

// CompileInsert compiles ins into WITH <inserts> SELECT <selection>. Rows
// with nested insertions get a CTE each, so children can be linked to the
// primary key generated for their parent.
func (p *Postgres) CompileInsert(ins asql.AbstractInsert) (sqltree.Statement, error) {
	c := p.newCompiler()
	var ctes []sqltree.CTE
	names, err := c.insertRows(ins.Table, ins.Rows, nil, &ctes)
	if err != nil {
		return nil, err
	}
	sel, err := c.selectStmt(asql.AbstractSelect{Table: ins.Table, Selection: ins.Selection}, cteSource(names), nil, true)
	if err != nil {
		return nil, err
	}
	return &sqltree.With{CTEs: ctes, Select: sel}, nil
}

// CompileUpdate compiles u and its nested operations into one statement.
func (p *Postgres) CompileUpdate(u asql.AbstractUpdate) (sqltree.Statement, error) {
	c := p.newCompiler()
	var ctes []sqltree.CTE
	name, err := c.update(u, nil, &ctes)
	if err != nil {
		return nil, err
	}
	sel, err := c.selectStmt(asql.AbstractSelect{Table: u.Table, Selection: u.Selection}, cteSource([]string{name}), nil, true)
	if err != nil {
		return nil, err
	}
	return &sqltree.With{CTEs: ctes, Select: sel}, nil
}

// CompileDelete compiles d into WITH <delete> SELECT <selection>, so the
// deleted rows can be returned in the same shape as a select.
func (p *Postgres) CompileDelete(d asql.AbstractDelete) (sqltree.Statement, error) {
	c := p.newCompiler()
	var ctes []sqltree.CTE
	name, err := c.delete(d, nil, &ctes)
	if err != nil {
		return nil, err
	}
	sel, err := c.selectStmt(asql.AbstractSelect{Table: d.Table, Selection: d.Selection}, cteSource([]string{name}), nil, true)
	if err != nil {
		return nil, err
	}
	return &sqltree.With{CTEs: ctes, Select: sel}, nil
}

func (c *compiler) insertRows(table model.TableID, rows []asql.InsertionRow, parent *parentRef, ctes *[]sqltree.CTE) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s has no rows", c.tableName(table))
	}

	if parent == nil && len(rows) > 1 && !hasNested(rows) {
		cols, err := c.insertColumns(table, rows)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			name := c.name(c.tableName(table))
			*ctes = append(*ctes, sqltree.CTE{Name: name, Statement: c.valuesInsert(table, cols, rows)})
			return []string{name}, nil
		}
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, err := c.insertRow(table, row, parent, ctes)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func hasNested(rows []asql.InsertionRow) bool {
	for _, r := range rows {
		if len(r.Nested) > 0 {
			return true
		}
	}
	return false
}

// insertColumns returns the union of the columns set by rows in first-seen
// order.
func (c *compiler) insertColumns(table model.TableID, rows []asql.InsertionRow) ([]model.ColumnID, error) {
	seen := map[model.ColumnID]bool{}
	var cols []model.ColumnID
	for _, row := range rows {
		for _, v := range row.Values {
			if v.Column.Table != table {
				return nil, fmt.Errorf("column %s does not belong to table %s", c.db.QualifiedName(v.Column), c.tableName(table))
			}
			if !seen[v.Column] {
				seen[v.Column] = true
				cols = append(cols, v.Column)
			}
		}
	}
	return cols, nil
}

// valuesInsert writes all rows in one VALUES list; columns a row leaves out
// take their DEFAULT.
func (c *compiler) valuesInsert(table model.TableID, cols []model.ColumnID, rows []asql.InsertionRow) *sqltree.Insert {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.db.Column(col).Name
	}
	values := make([][]sqltree.Expr, 0, len(rows))
	for _, row := range rows {
		set := map[model.ColumnID]interface{}{}
		for _, v := range row.Values {
			set[v.Column] = v.Value
		}
		exprs := make([]sqltree.Expr, len(cols))
		for i, col := range cols {
			v, ok := set[col]
			switch {
			case !ok:
				exprs[i] = sqltree.Default{}
			case v == nil:
				exprs[i] = sqltree.Null{}
			default:
				exprs[i] = sqltree.Param{Value: v}
			}
		}
		values = append(values, exprs)
	}
	return &sqltree.Insert{
		Table:     c.physical(table, ""),
		Columns:   names,
		Values:    values,
		Returning: []sqltree.Expr{sqltree.Star{}},
	}
}

// insertRow inserts one row in its own CTE and then its nested children.
// Under a parent the row is inserted once per parent row with
// INSERT ... SELECT parent.pk, ... FROM parent_cte.
func (c *compiler) insertRow(table model.TableID, row asql.InsertionRow, parent *parentRef, ctes *[]sqltree.CTE) (string, error) {
	cols, err := c.insertColumns(table, []asql.InsertionRow{row})
	if err != nil {
		return "", err
	}
	name := c.name(c.tableName(table))

	var stmt *sqltree.Insert
	if parent == nil {
		stmt = c.valuesInsert(table, cols, []asql.InsertionRow{row})
	} else {
		parentAlias := c.alias()
		names := []string{c.db.Column(parent.fk).Name}
		exprs := []sqltree.SelectColumn{{Expr: c.ref(parentAlias, parent.pk)}}
		for _, v := range row.Values {
			if v.Column == parent.fk {
				continue
			}
			col := c.db.Column(v.Column)
			names = append(names, col.Name)
			var e sqltree.Expr = sqltree.Null{}
			if v.Value != nil {
				e = sqltree.Cast{Expr: sqltree.Param{Value: v.Value}, Type: model.TypeSQL(col.Type, false)}
			}
			exprs = append(exprs, sqltree.SelectColumn{Expr: e})
		}
		stmt = &sqltree.Insert{
			Table:   c.physical(table, ""),
			Columns: names,
			Query: &sqltree.Select{
				Columns: exprs,
				From:    sqltree.Table{Name: parent.cte, Alias: parentAlias},
			},
			Returning: []sqltree.Expr{sqltree.Star{}},
		}
	}
	*ctes = append(*ctes, sqltree.CTE{Name: name, Statement: stmt})

	for _, n := range row.Nested {
		if n.Relation.SelfPKColumn.Table != table {
			return "", fmt.Errorf("nested insertion relation starts at %s, not at table %s",
				c.db.QualifiedName(n.Relation.SelfPKColumn), c.tableName(table))
		}
		child := &parentRef{cte: name, fk: n.Relation.ForeignColumn, pk: n.Relation.SelfPKColumn}
		if _, err := c.insertRows(n.Relation.ForeignColumn.Table, n.Rows, child, ctes); err != nil {
			return "", err
		}
	}
	return name, nil
}

// scope returns child.fk IN (SELECT parent.pk FROM parent_cte).
func (c *compiler) scope(parent *parentRef, alias string) sqltree.Predicate {
	parentAlias := c.alias()
	return sqltree.InSelect{
		Left: c.ref(alias, parent.fk),
		Select: &sqltree.Select{
			Columns: []sqltree.SelectColumn{{Expr: c.ref(parentAlias, parent.pk)}},
			From:    sqltree.Table{Name: parent.cte, Alias: parentAlias},
		},
	}
}

// nestedParent validates that rel points from a child table back at table
// and returns the scope for the child operation.
func (c *compiler) nestedParent(rel asql.NestedElementRelation, child, table model.TableID, cte string) (*parentRef, error) {
	if rel.Column.Table != rel.Table || rel.Table != child {
		return nil, fmt.Errorf("nested relation column %s does not belong to table %s",
			c.db.QualifiedName(rel.Column), c.tableName(child))
	}
	ref, ok := c.db.Column(rel.Column).Type.(model.ColumnReference)
	if !ok || ref.Column.Table != table {
		return nil, fmt.Errorf("nested relation column %s does not reference table %s",
			c.db.QualifiedName(rel.Column), c.tableName(table))
	}
	return &parentRef{cte: cte, fk: rel.Column, pk: ref.Column}, nil
}

func (c *compiler) update(u asql.AbstractUpdate, parent *parentRef, ctes *[]sqltree.CTE) (string, error) {
	if parent != nil && asql.IsTrue(u.Predicate) {
		return "", fmt.Errorf("%w: update of %s", ErrUnscopedNestedMutation, c.tableName(u.Table))
	}

	alias := c.alias()
	where, err := c.where(u.Predicate, u.Table, alias)
	if err != nil {
		return "", err
	}
	if parent != nil {
		where = and(c.scope(parent, alias), where)
	}

	var stmt sqltree.Statement
	if len(u.Set) == 0 {
		// Nothing to set on this table; the CTE only scopes nested operations.
		stmt = &sqltree.Select{
			Columns: []sqltree.SelectColumn{{Expr: sqltree.Star{Alias: alias}}},
			From:    c.physical(u.Table, alias),
			Where:   where,
		}
	} else {
		set := make([]sqltree.Assignment, 0, len(u.Set))
		for _, v := range u.Set {
			col, err := c.column(v.Column, u.Table, alias)
			if err != nil {
				return "", err
			}
			var e sqltree.Expr = sqltree.Null{}
			if v.Value != nil {
				e = sqltree.Param{Value: v.Value}
			}
			set = append(set, sqltree.Assignment{Column: col.Name, Value: e})
		}
		stmt = &sqltree.Update{
			Table:     c.physical(u.Table, alias),
			Set:       set,
			Where:     where,
			Returning: []sqltree.Expr{sqltree.Star{}},
		}
	}

	name := c.name(c.tableName(u.Table))
	*ctes = append(*ctes, sqltree.CTE{Name: name, Statement: stmt})

	for _, n := range u.NestedUpdates {
		scope, err := c.nestedParent(n.Relation, n.Update.Table, u.Table, name)
		if err != nil {
			return "", err
		}
		if _, err := c.update(n.Update, scope, ctes); err != nil {
			return "", err
		}
	}
	for _, n := range u.NestedInserts {
		scope, err := c.nestedParent(n.Relation, n.Insert.Table, u.Table, name)
		if err != nil {
			return "", err
		}
		if _, err := c.insertRows(n.Insert.Table, n.Insert.Rows, scope, ctes); err != nil {
			return "", err
		}
	}
	for _, n := range u.NestedDeletes {
		scope, err := c.nestedParent(n.Relation, n.Delete.Table, u.Table, name)
		if err != nil {
			return "", err
		}
		if _, err := c.delete(n.Delete, scope, ctes); err != nil {
			return "", err
		}
	}
	return name, nil
}

func (c *compiler) delete(d asql.AbstractDelete, parent *parentRef, ctes *[]sqltree.CTE) (string, error) {
	if parent != nil && asql.IsTrue(d.Predicate) {
		return "", fmt.Errorf("%w: delete from %s", ErrUnscopedNestedMutation, c.tableName(d.Table))
	}

	alias := c.alias()
	where, err := c.where(d.Predicate, d.Table, alias)
	if err != nil {
		return "", err
	}
	if parent != nil {
		where = and(c.scope(parent, alias), where)
	}

	name := c.name(c.tableName(d.Table))
	*ctes = append(*ctes, sqltree.CTE{Name: name, Statement: &sqltree.Delete{
		Table:     c.physical(d.Table, alias),
		Where:     where,
		Returning: []sqltree.Expr{sqltree.Star{}},
	}})
	return name, nil
}
