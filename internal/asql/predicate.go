package asql

import "github.com/exosql/exosql/internal/model"

// AbstractPredicate is a boolean condition over column paths. The set of
// implementations is closed.
type AbstractPredicate interface {
	predicate()
}

type (
	// True matches every row.
	True struct{}
	// False matches no row.
	False struct{}

	Eq  struct{ Left, Right model.ColumnPath }
	Neq struct{ Left, Right model.ColumnPath }
	Lt  struct{ Left, Right model.ColumnPath }
	Lte struct{ Left, Right model.ColumnPath }
	Gt  struct{ Left, Right model.ColumnPath }
	Gte struct{ Left, Right model.ColumnPath }

	// In matches when Left equals any element of Right, which must be a
	// LiteralPath holding a slice.
	In struct{ Left, Right model.ColumnPath }

	// StringLike matches Left against the LIKE pattern Right.
	StringLike struct {
		Left, Right   model.ColumnPath
		CaseSensitive bool
	}
	StringStartsWith struct{ Left, Right model.ColumnPath }
	StringEndsWith   struct{ Left, Right model.ColumnPath }

	And struct{ Left, Right AbstractPredicate }
	Or  struct{ Left, Right AbstractPredicate }
	Not struct{ Inner AbstractPredicate }
)

func (True) predicate()             {}
func (False) predicate()            {}
func (Eq) predicate()               {}
func (Neq) predicate()              {}
func (Lt) predicate()               {}
func (Lte) predicate()              {}
func (Gt) predicate()               {}
func (Gte) predicate()              {}
func (In) predicate()               {}
func (StringLike) predicate()       {}
func (StringStartsWith) predicate() {}
func (StringEndsWith) predicate()   {}
func (And) predicate()              {}
func (Or) predicate()               {}
func (Not) predicate()              {}

// AndPredicates conjoins a and b, folding True and False operands away.
// A nil operand counts as True.
func AndPredicates(a, b AbstractPredicate) AbstractPredicate {
	switch {
	case IsTrue(a):
		return orTrue(b)
	case IsTrue(b):
		return a
	case isFalse(a) || isFalse(b):
		return False{}
	}
	return And{Left: a, Right: b}
}

// OrPredicates disjoins a and b, folding True and False operands away.
// A nil operand counts as False.
func OrPredicates(a, b AbstractPredicate) AbstractPredicate {
	switch {
	case a == nil || isFalse(a):
		if b == nil {
			return False{}
		}
		return b
	case b == nil || isFalse(b):
		return a
	case IsTrue(a) || IsTrue(b):
		return True{}
	}
	return Or{Left: a, Right: b}
}

// IsTrue reports whether p is nil or the True predicate.
func IsTrue(p AbstractPredicate) bool {
	if p == nil {
		return true
	}
	_, ok := p.(True)
	return ok
}

func isFalse(p AbstractPredicate) bool {
	_, ok := p.(False)
	return ok
}

func orTrue(p AbstractPredicate) AbstractPredicate {
	if p == nil {
		return True{}
	}
	return p
}
