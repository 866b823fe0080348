package transform

import (
	"fmt"
	"strings"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/sqltree"
)

// where compiles p for a WHERE clause; a trivially true predicate yields
// nil so no clause is emitted.
func (c *compiler) where(p asql.AbstractPredicate, table model.TableID, alias string) (sqltree.Predicate, error) {
	if asql.IsTrue(p) {
		return nil, nil
	}
	return c.predicate(p, table, alias)
}

func (c *compiler) predicate(p asql.AbstractPredicate, table model.TableID, alias string) (sqltree.Predicate, error) {
	switch p := p.(type) {
	case nil, asql.True:
		return sqltree.True{}, nil
	case asql.False:
		return sqltree.False{}, nil
	case asql.Eq:
		return c.compare(sqltree.OpEq, p.Left, p.Right, table, alias)
	case asql.Neq:
		return c.compare(sqltree.OpNeq, p.Left, p.Right, table, alias)
	case asql.Lt:
		return c.compare(sqltree.OpLt, p.Left, p.Right, table, alias)
	case asql.Lte:
		return c.compare(sqltree.OpLte, p.Left, p.Right, table, alias)
	case asql.Gt:
		return c.compare(sqltree.OpGt, p.Left, p.Right, table, alias)
	case asql.Gte:
		return c.compare(sqltree.OpGte, p.Left, p.Right, table, alias)
	case asql.StringLike:
		op := sqltree.OpILike
		if p.CaseSensitive {
			op = sqltree.OpLike
		}
		return c.compare(op, p.Left, p.Right, table, alias)
	case asql.StringStartsWith:
		return c.affix(p.Left, p.Right, false, table, alias)
	case asql.StringEndsWith:
		return c.affix(p.Left, p.Right, true, table, alias)
	case asql.In:
		lit, ok := p.Right.(model.LiteralPath)
		if !ok {
			return nil, fmt.Errorf("IN requires a literal list, got %T", p.Right)
		}
		return c.across(p.Left, table, alias, func(left sqltree.Expr, _ model.TableID, _ string) (sqltree.Predicate, error) {
			return sqltree.AnyOf{Left: left, Right: sqltree.Param{Value: lit.Value}}, nil
		})
	case asql.And:
		l, err := c.predicate(p.Left, table, alias)
		if err != nil {
			return nil, err
		}
		r, err := c.predicate(p.Right, table, alias)
		if err != nil {
			return nil, err
		}
		return sqltree.And{Left: l, Right: r}, nil
	case asql.Or:
		l, err := c.predicate(p.Left, table, alias)
		if err != nil {
			return nil, err
		}
		r, err := c.predicate(p.Right, table, alias)
		if err != nil {
			return nil, err
		}
		return sqltree.Or{Left: l, Right: r}, nil
	case asql.Not:
		inner, err := c.predicate(p.Inner, table, alias)
		if err != nil {
			return nil, err
		}
		return sqltree.Not{Inner: inner}, nil
	}
	return nil, fmt.Errorf("unsupported predicate %T", p)
}

var flipped = map[sqltree.CompareOp]sqltree.CompareOp{
	sqltree.OpEq:  sqltree.OpEq,
	sqltree.OpNeq: sqltree.OpNeq,
	sqltree.OpLt:  sqltree.OpGt,
	sqltree.OpLte: sqltree.OpGte,
	sqltree.OpGt:  sqltree.OpLt,
	sqltree.OpGte: sqltree.OpLte,
}

func (c *compiler) compare(op sqltree.CompareOp, left, right model.ColumnPath, table model.TableID, alias string) (sqltree.Predicate, error) {
	if _, ok := left.(model.PhysicalColumnPath); !ok {
		if _, ok := right.(model.PhysicalColumnPath); ok {
			f, ok := flipped[op]
			if !ok {
				return nil, fmt.Errorf("%w: left operand of %s", ErrNotPhysicalPath, op)
			}
			op, left, right = f, right, left
		}
	}
	if _, isNull := right.(model.NullPath); isNull {
		switch op {
		case sqltree.OpEq:
			return c.across(left, table, alias, func(l sqltree.Expr, _ model.TableID, _ string) (sqltree.Predicate, error) {
				return sqltree.IsNull{Expr: l}, nil
			})
		case sqltree.OpNeq:
			return c.across(left, table, alias, func(l sqltree.Expr, _ model.TableID, _ string) (sqltree.Predicate, error) {
				return sqltree.IsNull{Expr: l, Negate: true}, nil
			})
		}
		return nil, fmt.Errorf("cannot compare with NULL using %s", op)
	}
	return c.across(left, table, alias, func(l sqltree.Expr, leafTable model.TableID, leafAlias string) (sqltree.Predicate, error) {
		r, err := c.operand(right, leafTable, leafAlias)
		if err != nil {
			return nil, err
		}
		return sqltree.Compare{Op: op, Left: l, Right: r}, nil
	})
}

// affix compiles starts-with (suffix false) and ends-with (suffix true).
// Literal patterns are escaped so wildcards in the value match literally.
func (c *compiler) affix(left, right model.ColumnPath, suffix bool, table model.TableID, alias string) (sqltree.Predicate, error) {
	return c.across(left, table, alias, func(l sqltree.Expr, leafTable model.TableID, leafAlias string) (sqltree.Predicate, error) {
		if lit, ok := right.(model.LiteralPath); ok {
			if s, ok := lit.Value.(string); ok {
				pattern := escapeLike(s) + "%"
				if suffix {
					pattern = "%" + escapeLike(s)
				}
				return sqltree.Compare{Op: sqltree.OpLike, Left: l, Right: sqltree.Param{Value: pattern}}, nil
			}
		}
		r, err := c.operand(right, leafTable, leafAlias)
		if err != nil {
			return nil, err
		}
		parts := []sqltree.Expr{r, sqltree.StringLiteral{Value: "%"}}
		if suffix {
			parts = []sqltree.Expr{sqltree.StringLiteral{Value: "%"}, r}
		}
		return sqltree.Compare{Op: sqltree.OpLike, Left: l, Right: sqltree.Concat{Parts: parts}}, nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// across lowers a predicate whose left operand is path. A path through
// relation hops becomes root.self IN (SELECT next.linked FROM next WHERE
// ...), nested once per hop; leaf receives the leaf column expression along
// with the table and alias it was resolved against.
func (c *compiler) across(path model.ColumnPath, table model.TableID, alias string,
	leaf func(left sqltree.Expr, table model.TableID, alias string) (sqltree.Predicate, error)) (sqltree.Predicate, error) {

	p, ok := path.(model.PhysicalColumnPath)
	if !ok || p.Len() <= 1 {
		e, err := c.operand(path, table, alias)
		if err != nil {
			return nil, err
		}
		return leaf(e, table, alias)
	}

	head, rest := p.Head()
	if head.IsLeaf() {
		return nil, fmt.Errorf("column path hop %s is a leaf but is followed by more hops", c.db.QualifiedName(head.SelfColumn))
	}
	self, err := c.column(head.SelfColumn, table, alias)
	if err != nil {
		return nil, err
	}
	next := head.LinkedColumn.Table
	nextAlias := c.alias()
	inner, err := c.across(rest, next, nextAlias, leaf)
	if err != nil {
		return nil, err
	}
	return sqltree.InSelect{
		Left: self,
		Select: &sqltree.Select{
			Columns: []sqltree.SelectColumn{{Expr: c.ref(nextAlias, *head.LinkedColumn)}},
			From:    c.physical(next, nextAlias),
			Where:   inner,
		},
	}, nil
}

// operand lowers a single-hop path, a literal or NULL.
func (c *compiler) operand(path model.ColumnPath, table model.TableID, alias string) (sqltree.Expr, error) {
	switch p := path.(type) {
	case model.PhysicalColumnPath:
		if p.IsEmpty() {
			return nil, ErrNotPhysicalPath
		}
		if p.Len() > 1 {
			return nil, fmt.Errorf("comparing against a column of a related table is not supported (%s)", c.db.QualifiedName(p.Leaf()))
		}
		return c.column(p.Leaf(), table, alias)
	case model.LiteralPath:
		return sqltree.Param{Value: p.Value}, nil
	case model.NullPath:
		return sqltree.Null{}, nil
	case nil:
		return nil, ErrNotPhysicalPath
	}
	return nil, fmt.Errorf("unsupported column path %T", path)
}
