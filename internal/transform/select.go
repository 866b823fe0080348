package transform

import (
	"fmt"
	"strings"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/sqltree"
)

// selectStmt compiles s reading rows from source. correlate, when set, ties
// the rows to the enclosing query. Top-level JSON results are cast to text
// so drivers hand them back as a plain string.
func (c *compiler) selectStmt(s asql.AbstractSelect, source sourceFunc, correlate func(alias string) sqltree.Predicate, topLevel bool) (*sqltree.Select, error) {
	alias := c.alias()

	where, err := c.where(s.Predicate, s.Table, alias)
	if err != nil {
		return nil, err
	}
	if correlate != nil {
		where = and(correlate(alias), where)
	}
	orderBy, err := c.orderBy(s.OrderBy, s.Table, alias)
	if err != nil {
		return nil, err
	}

	switch sel := s.Selection.(type) {
	case asql.SelectionSeq:
		cols := make([]sqltree.SelectColumn, 0, len(sel.Columns))
		for _, el := range sel.Columns {
			e, err := c.element(el.Element, s.Table, alias)
			if err != nil {
				return nil, fmt.Errorf("selection %q: %w", el.Alias, err)
			}
			cols = append(cols, sqltree.SelectColumn{Expr: e, Alias: el.Alias})
		}
		return &sqltree.Select{
			Columns: cols,
			From:    source(alias),
			Where:   where,
			OrderBy: orderBy,
			Limit:   int64Param(s.Limit),
			Offset:  int64Param(s.Offset),
		}, nil

	case asql.SelectionJSON:
		obj, err := c.jsonObject(sel.Elements, s.Table, alias)
		if err != nil {
			return nil, err
		}
		var out sqltree.Expr = obj
		if sel.Cardinality == asql.Many {
			out = sqltree.JSONAgg{Expr: obj}
		}
		if topLevel {
			out = sqltree.Cast{Expr: out, Type: "text"}
		}
		rows := &sqltree.Select{
			Columns: []sqltree.SelectColumn{{Expr: sqltree.Star{Alias: alias}}},
			From:    source(alias),
			Where:   where,
			OrderBy: orderBy,
			Limit:   int64Param(s.Limit),
			Offset:  int64Param(s.Offset),
		}
		return &sqltree.Select{
			Columns: []sqltree.SelectColumn{{Expr: out}},
			From:    sqltree.Derived{Select: rows, Alias: alias},
		}, nil

	case nil:
		return nil, fmt.Errorf("select on %s has no selection", c.tableName(s.Table))
	}
	return nil, fmt.Errorf("unsupported selection %T", s.Selection)
}

func (c *compiler) jsonObject(elements []asql.AliasedElement, table model.TableID, alias string) (sqltree.JSONObject, error) {
	fields := make([]sqltree.JSONField, 0, len(elements))
	for _, el := range elements {
		e, err := c.element(el.Element, table, alias)
		if err != nil {
			return sqltree.JSONObject{}, fmt.Errorf("field %q: %w", el.Alias, err)
		}
		fields = append(fields, sqltree.JSONField{Key: el.Alias, Value: e})
	}
	return sqltree.JSONObject{Fields: fields}, nil
}

func (c *compiler) element(el asql.SelectionElement, table model.TableID, alias string) (sqltree.Expr, error) {
	switch el := el.(type) {
	case asql.Physical:
		return c.column(el.Column, table, alias)
	case asql.Function:
		if err := model.ValidateIdentifier(el.Name); err != nil {
			return nil, fmt.Errorf("function name: %w", err)
		}
		col, err := c.column(el.Column, table, alias)
		if err != nil {
			return nil, err
		}
		return sqltree.Func{Name: strings.ToLower(el.Name), Args: []sqltree.Expr{col}}, nil
	case asql.Constant:
		return sqltree.StringLiteral{Value: el.Value}, nil
	case asql.Object:
		return c.jsonObject(el.Elements, table, alias)
	case asql.SubSelect:
		return c.subSelect(el, table, alias)
	}
	return nil, fmt.Errorf("unsupported selection element %T", el)
}

// subSelect compiles a correlated sub-select across a relation. A
// one-to-many relation correlates on parent.pk = child.fk, a many-to-one
// relation on parent.fk = child.pk.
func (c *compiler) subSelect(el asql.SubSelect, table model.TableID, parentAlias string) (sqltree.Expr, error) {
	var parentCol, childCol model.ColumnID
	switch r := el.Relation.(type) {
	case asql.OneToManyRelation:
		parentCol, childCol = r.SelfPKColumn, r.ForeignColumn
	case asql.ManyToOneRelation:
		parentCol, childCol = r.SelfColumn, r.ForeignPKColumn
	default:
		return nil, fmt.Errorf("unsupported relation %T", el.Relation)
	}
	if parentCol.Table != table {
		return nil, fmt.Errorf("relation starts at %s, not at table %s", c.db.QualifiedName(parentCol), c.tableName(table))
	}
	if childCol.Table != el.Select.Table {
		return nil, fmt.Errorf("relation leads to %s but the sub-select reads %s", c.db.QualifiedName(childCol), c.tableName(el.Select.Table))
	}
	if _, ok := el.Select.Selection.(asql.SelectionJSON); !ok {
		return nil, fmt.Errorf("sub-select on %s must produce JSON", c.tableName(el.Select.Table))
	}

	correlate := func(alias string) sqltree.Predicate {
		return sqltree.Compare{Op: sqltree.OpEq, Left: c.ref(parentAlias, parentCol), Right: c.ref(alias, childCol)}
	}
	sel, err := c.selectStmt(el.Select, c.physicalSource(el.Select.Table), correlate, false)
	if err != nil {
		return nil, err
	}
	return sqltree.Subquery{Select: sel}, nil
}
