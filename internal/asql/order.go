package asql

import "github.com/exosql/exosql/internal/model"

// Ordering is the direction of one order-by element.
type Ordering int

const (
	Asc Ordering = iota
	Desc
)

func (o Ordering) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderByElement orders by the leaf column of Path.
type OrderByElement struct {
	Path     model.PhysicalColumnPath
	Ordering Ordering
}

// AbstractOrderBy is an ordered list of order-by elements; earlier elements
// take precedence.
type AbstractOrderBy []OrderByElement

// ExtendPath returns parent with link appended. A nil parent starts a new
// path. parent itself is never modified, so sibling extensions of the same
// parent do not share storage.
func ExtendPath(parent *model.PhysicalColumnPath, link model.ColumnPathLink) model.PhysicalColumnPath {
	if parent == nil {
		return model.PhysicalColumnPath{}.Push(link)
	}
	return parent.Push(link)
}
