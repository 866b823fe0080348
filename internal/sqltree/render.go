package sqltree

import (
	"fmt"
	"strings"

	"github.com/exosql/exosql/internal/model"
)

// Render turns stmt into SQL text. Arguments are numbered $1, $2, ... in the
// order they appear in the text.
func Render(stmt Statement) (string, []interface{}) {
	r := &renderer{}
	r.statement(stmt)
	return r.b.String(), r.args
}

type renderer struct {
	b    strings.Builder
	args []interface{}
}

func (r *renderer) write(s string) { r.b.WriteString(s) }

func (r *renderer) ident(name string) { r.b.WriteString(model.QuoteIdentifier(name)) }

func (r *renderer) statement(stmt Statement) {
	switch s := stmt.(type) {
	case *Select:
		r.selectStmt(s)
	case *Insert:
		r.insert(s)
	case *Update:
		r.update(s)
	case *Delete:
		r.delete(s)
	case *With:
		r.write("WITH ")
		for i, cte := range s.CTEs {
			if i > 0 {
				r.write(", ")
			}
			r.ident(cte.Name)
			r.write(" AS (")
			r.statement(cte.Statement)
			r.write(")")
		}
		r.write(" ")
		r.selectStmt(s.Select)
	default:
		panic(fmt.Sprintf("sqltree: unknown statement %T", stmt))
	}
}

func (r *renderer) selectStmt(s *Select) {
	r.write("SELECT ")
	for i, c := range s.Columns {
		if i > 0 {
			r.write(", ")
		}
		r.expr(c.Expr)
		if c.Alias != "" {
			r.write(" AS ")
			r.ident(c.Alias)
		}
	}
	if s.From != nil {
		r.write(" FROM ")
		r.source(s.From)
	}
	if s.Where != nil {
		r.write(" WHERE ")
		r.predicate(s.Where)
	}
	if len(s.OrderBy) > 0 {
		r.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				r.write(", ")
			}
			r.expr(o.Expr)
			if o.Desc {
				r.write(" DESC")
			} else {
				r.write(" ASC")
			}
		}
	}
	if s.Limit != nil {
		r.write(" LIMIT ")
		r.expr(s.Limit)
	}
	if s.Offset != nil {
		r.write(" OFFSET ")
		r.expr(s.Offset)
	}
}

func (r *renderer) insert(s *Insert) {
	r.write("INSERT INTO ")
	r.tableName(s.Table)
	if len(s.Columns) > 0 {
		r.write(" (")
		for i, c := range s.Columns {
			if i > 0 {
				r.write(", ")
			}
			r.ident(c)
		}
		r.write(")")
	}
	switch {
	case s.Query != nil:
		r.write(" ")
		r.selectStmt(s.Query)
	case len(s.Columns) == 0:
		r.write(" DEFAULT VALUES")
	default:
		r.write(" VALUES ")
		for i, row := range s.Values {
			if i > 0 {
				r.write(", ")
			}
			r.exprList(row)
		}
	}
	r.returning(s.Returning)
}

func (r *renderer) update(s *Update) {
	r.write("UPDATE ")
	r.table(s.Table)
	r.write(" SET ")
	for i, a := range s.Set {
		if i > 0 {
			r.write(", ")
		}
		r.ident(a.Column)
		r.write(" = ")
		r.expr(a.Value)
	}
	if s.Where != nil {
		r.write(" WHERE ")
		r.predicate(s.Where)
	}
	r.returning(s.Returning)
}

func (r *renderer) delete(s *Delete) {
	r.write("DELETE FROM ")
	r.table(s.Table)
	if s.Where != nil {
		r.write(" WHERE ")
		r.predicate(s.Where)
	}
	r.returning(s.Returning)
}

func (r *renderer) returning(exprs []Expr) {
	if len(exprs) == 0 {
		return
	}
	r.write(" RETURNING ")
	for i, e := range exprs {
		if i > 0 {
			r.write(", ")
		}
		r.expr(e)
	}
}

func (r *renderer) tableName(t Table) {
	if t.Schema != "" {
		r.ident(t.Schema)
		r.write(".")
	}
	r.ident(t.Name)
}

func (r *renderer) table(t Table) {
	r.tableName(t)
	if t.Alias != "" && t.Alias != t.Name {
		r.write(" AS ")
		r.ident(t.Alias)
	}
}

func (r *renderer) source(src Source) {
	switch s := src.(type) {
	case Table:
		r.table(s)
	case Derived:
		r.write("(")
		r.selectStmt(s.Select)
		r.write(") AS ")
		r.ident(s.Alias)
	case UnionAll:
		r.write("(")
		for i, name := range s.Names {
			if i > 0 {
				r.write(" UNION ALL ")
			}
			r.write("SELECT * FROM ")
			r.ident(name)
		}
		r.write(") AS ")
		r.ident(s.Alias)
	default:
		panic(fmt.Sprintf("sqltree: unknown source %T", src))
	}
}

func (r *renderer) exprList(exprs []Expr) {
	r.write("(")
	for i, e := range exprs {
		if i > 0 {
			r.write(", ")
		}
		r.expr(e)
	}
	r.write(")")
}

func (r *renderer) expr(e Expr) {
	switch e := e.(type) {
	case ColumnRef:
		if e.Alias != "" {
			r.ident(e.Alias)
			r.write(".")
		}
		r.ident(e.Name)
	case Star:
		if e.Alias != "" {
			r.ident(e.Alias)
			r.write(".")
		}
		r.write("*")
	case Param:
		r.args = append(r.args, e.Value)
		r.write(fmt.Sprintf("$%d", len(r.args)))
	case StringLiteral:
		r.write(QuoteString(e.Value))
	case Null:
		r.write("NULL")
	case Default:
		r.write("DEFAULT")
	case Func:
		r.write(e.Name)
		r.exprList(e.Args)
	case Cast:
		r.expr(e.Expr)
		r.write("::")
		r.write(e.Type)
	case Concat:
		r.write("(")
		for i, p := range e.Parts {
			if i > 0 {
				r.write(" || ")
			}
			r.expr(p)
		}
		r.write(")")
	case JSONObject:
		r.write("json_build_object(")
		for i, f := range e.Fields {
			if i > 0 {
				r.write(", ")
			}
			r.write(QuoteString(f.Key))
			r.write(", ")
			r.expr(f.Value)
		}
		r.write(")")
	case JSONAgg:
		r.write("COALESCE(json_agg(")
		r.expr(e.Expr)
		r.write("), '[]'::json)")
	case Subquery:
		r.write("(")
		r.selectStmt(e.Select)
		r.write(")")
	default:
		panic(fmt.Sprintf("sqltree: unknown expression %T", e))
	}
}

func (r *renderer) predicate(p Predicate) {
	switch p := p.(type) {
	case True:
		r.write("TRUE")
	case False:
		r.write("FALSE")
	case Compare:
		r.expr(p.Left)
		r.write(" ")
		r.write(string(p.Op))
		r.write(" ")
		r.expr(p.Right)
	case IsNull:
		r.expr(p.Expr)
		if p.Negate {
			r.write(" IS NOT NULL")
		} else {
			r.write(" IS NULL")
		}
	case AnyOf:
		r.expr(p.Left)
		r.write(" = ANY(")
		r.expr(p.Right)
		r.write(")")
	case InSelect:
		r.expr(p.Left)
		r.write(" IN (")
		r.selectStmt(p.Select)
		r.write(")")
	case And:
		r.write("(")
		r.predicate(p.Left)
		r.write(" AND ")
		r.predicate(p.Right)
		r.write(")")
	case Or:
		r.write("(")
		r.predicate(p.Left)
		r.write(" OR ")
		r.predicate(p.Right)
		r.write(")")
	case Not:
		r.write("NOT (")
		r.predicate(p.Inner)
		r.write(")")
	default:
		panic(fmt.Sprintf("sqltree: unknown predicate %T", p))
	}
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
