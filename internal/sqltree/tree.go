// Package sqltree is a small PostgreSQL statement tree. The compiler builds
// trees out of these closed variant types and Render turns them into SQL
// text with $N placeholders plus the bound arguments.
package sqltree

// Expr is a value expression.
type Expr interface {
	expr()
}

type (
	// ColumnRef is "alias"."name", or "name" when Alias is empty.
	ColumnRef struct {
		Alias string
		Name  string
	}

	// Star is "alias".*, or * when Alias is empty.
	Star struct {
		Alias string
	}

	// Param is a bound argument.
	Param struct {
		Value interface{}
	}

	// StringLiteral is an inline quoted string, used for JSON keys and
	// constants that must not become untyped parameters.
	StringLiteral struct {
		Value string
	}

	// Null is the NULL literal.
	Null struct{}

	// Default is the DEFAULT keyword in an INSERT value list.
	Default struct{}

	// Func is name(args...).
	Func struct {
		Name string
		Args []Expr
	}

	// Cast is expr::type.
	Cast struct {
		Expr Expr
		Type string
	}

	// Concat is (a || b || ...).
	Concat struct {
		Parts []Expr
	}

	// JSONObject is json_build_object('key', value, ...).
	JSONObject struct {
		Fields []JSONField
	}

	// JSONAgg is COALESCE(json_agg(expr), '[]'::json).
	JSONAgg struct {
		Expr Expr
	}

	// Subquery is a scalar (SELECT ...).
	Subquery struct {
		Select *Select
	}
)

// JSONField is one key/value pair of a JSONObject.
type JSONField struct {
	Key   string
	Value Expr
}

func (ColumnRef) expr()     {}
func (Star) expr()          {}
func (Param) expr()         {}
func (StringLiteral) expr() {}
func (Null) expr()          {}
func (Default) expr()       {}
func (Func) expr()          {}
func (Cast) expr()          {}
func (Concat) expr()        {}
func (JSONObject) expr()    {}
func (JSONAgg) expr()       {}
func (Subquery) expr()      {}

// Predicate is a boolean condition.
type Predicate interface {
	predicate()
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq    CompareOp = "="
	OpNeq   CompareOp = "<>"
	OpLt    CompareOp = "<"
	OpLte   CompareOp = "<="
	OpGt    CompareOp = ">"
	OpGte   CompareOp = ">="
	OpLike  CompareOp = "LIKE"
	OpILike CompareOp = "ILIKE"
)

type (
	True  struct{}
	False struct{}

	// Compare is left op right.
	Compare struct {
		Op          CompareOp
		Left, Right Expr
	}

	// IsNull is expr IS NULL, or IS NOT NULL when Negate is set.
	IsNull struct {
		Expr   Expr
		Negate bool
	}

	// AnyOf is left = ANY(right), right being an array expression.
	AnyOf struct {
		Left, Right Expr
	}

	// InSelect is left IN (SELECT ...).
	InSelect struct {
		Left   Expr
		Select *Select
	}

	And struct{ Left, Right Predicate }
	Or  struct{ Left, Right Predicate }
	Not struct{ Inner Predicate }
)

func (True) predicate()     {}
func (False) predicate()    {}
func (Compare) predicate()  {}
func (IsNull) predicate()   {}
func (AnyOf) predicate()    {}
func (InSelect) predicate() {}
func (And) predicate()      {}
func (Or) predicate()       {}
func (Not) predicate()      {}

// Source is a FROM item.
type Source interface {
	source()
}

type (
	// Table is a physical table, schema-qualified when Schema is set. CTE
	// references leave Schema empty.
	Table struct {
		Schema string
		Name   string
		Alias  string
	}

	// Derived is (SELECT ...) AS alias.
	Derived struct {
		Select *Select
		Alias  string
	}

	// UnionAll is (SELECT * FROM a UNION ALL SELECT * FROM b ...) AS alias
	// over CTE names.
	UnionAll struct {
		Names []string
		Alias string
	}
)

func (Table) source()    {}
func (Derived) source()  {}
func (UnionAll) source() {}

// SelectColumn is an output column, AS alias when Alias is set.
type SelectColumn struct {
	Expr  Expr
	Alias string
}

// OrderBy orders by Expr.
type OrderBy struct {
	Expr Expr
	Desc bool
}

// Assignment is column = value in an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// CTE is one WITH item.
type CTE struct {
	Name      string
	Statement Statement
}

// Statement is a complete SQL statement.
type Statement interface {
	statement()
}

// Select is a SELECT statement. Nil Where means no WHERE clause.
type Select struct {
	Columns []SelectColumn
	From    Source
	Where   Predicate
	OrderBy []OrderBy
	Limit   Expr
	Offset  Expr
}

// Insert inserts either Values rows or the rows of Query.
type Insert struct {
	Table     Table
	Columns   []string
	Values    [][]Expr
	Query     *Select
	Returning []Expr
}

// Update is UPDATE table AS alias SET ... WHERE ... RETURNING ...
type Update struct {
	Table     Table
	Set       []Assignment
	Where     Predicate
	Returning []Expr
}

// Delete is DELETE FROM table AS alias WHERE ... RETURNING ...
type Delete struct {
	Table     Table
	Where     Predicate
	Returning []Expr
}

// With is WITH ctes SELECT ...
type With struct {
	CTEs   []CTE
	Select *Select
}

func (*Select) statement() {}
func (*Insert) statement() {}
func (*Update) statement() {}
func (*Delete) statement() {}
func (*With) statement()   {}
