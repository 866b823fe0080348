package transform

import (
	"fmt"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/sqltree"
)

func (c *compiler) orderBy(ob asql.AbstractOrderBy, table model.TableID, alias string) ([]sqltree.OrderBy, error) {
	if len(ob) == 0 {
		return nil, nil
	}
	out := make([]sqltree.OrderBy, 0, len(ob))
	for _, el := range ob {
		e, err := c.orderExpr(el.Path, table, alias)
		if err != nil {
			return nil, err
		}
		out = append(out, sqltree.OrderBy{Expr: e, Desc: el.Ordering == asql.Desc})
	}
	return out, nil
}

// orderExpr resolves the leaf of path. Many-to-one hops become scalar
// sub-selects; a one-to-many hop has no single value to order by and is
// rejected.
func (c *compiler) orderExpr(path model.PhysicalColumnPath, table model.TableID, alias string) (sqltree.Expr, error) {
	if path.IsEmpty() {
		return nil, ErrNotPhysicalPath
	}
	if path.Len() == 1 {
		return c.column(path.Leaf(), table, alias)
	}

	head, rest := path.Head()
	if head.IsLeaf() {
		return nil, fmt.Errorf("column path hop %s is a leaf but is followed by more hops", c.db.QualifiedName(head.SelfColumn))
	}
	ref, ok := c.db.Column(head.SelfColumn).Type.(model.ColumnReference)
	if !ok || ref.Column != *head.LinkedColumn {
		return nil, fmt.Errorf("cannot order by %s across a one-to-many relation", c.db.QualifiedName(path.Leaf()))
	}
	self, err := c.column(head.SelfColumn, table, alias)
	if err != nil {
		return nil, err
	}

	next := head.LinkedColumn.Table
	nextAlias := c.alias()
	inner, err := c.orderExpr(rest, next, nextAlias)
	if err != nil {
		return nil, err
	}
	return sqltree.Subquery{Select: &sqltree.Select{
		Columns: []sqltree.SelectColumn{{Expr: inner}},
		From:    c.physical(next, nextAlias),
		Where:   sqltree.Compare{Op: sqltree.OpEq, Left: c.ref(nextAlias, *head.LinkedColumn), Right: self},
	}}, nil
}
