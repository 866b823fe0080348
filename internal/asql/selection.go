package asql

import "github.com/exosql/exosql/internal/model"

// Cardinality tells whether a JSON selection produces one object or an
// array of objects.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// Selection is what an operation returns: either a flat list of columns or
// a single JSON document.
type Selection interface {
	selection()
}

// SelectionSeq returns one SQL column per element.
type SelectionSeq struct {
	Columns []AliasedElement
}

// SelectionJSON returns a JSON object per row, aggregated into an array when
// Cardinality is Many.
type SelectionJSON struct {
	Elements    []AliasedElement
	Cardinality Cardinality
}

func (SelectionSeq) selection()  {}
func (SelectionJSON) selection() {}

// AliasedElement names a selection element in the output.
type AliasedElement struct {
	Alias   string
	Element SelectionElement
}

// SelectionElement is one output value. The set of implementations is
// closed.
type SelectionElement interface {
	selectionElement()
}

type (
	// Physical selects a column of the operation's table.
	Physical struct {
		Column model.ColumnID
	}

	// Function applies a SQL function to a column of the operation's table.
	Function struct {
		Name   string
		Column model.ColumnID
	}

	// Constant is a string constant such as a GraphQL __typename.
	Constant struct {
		Value string
	}

	// Object groups elements into a nested JSON object without changing the
	// row being read.
	Object struct {
		Elements []AliasedElement
	}

	// SubSelect reads rows of a related table correlated to the current row.
	SubSelect struct {
		Relation Relation
		Select   AbstractSelect
	}
)

func (Physical) selectionElement()  {}
func (Function) selectionElement()  {}
func (Constant) selectionElement()  {}
func (Object) selectionElement()    {}
func (SubSelect) selectionElement() {}

// Relation is the foreign key a SubSelect follows from the current table.
type Relation interface {
	relation()
}

// OneToManyRelation selects the rows whose foreign key holds the current
// row's primary key.
type OneToManyRelation struct {
	model.OneToMany
}

// ManyToOneRelation selects the row the current row's foreign key points at.
type ManyToOneRelation struct {
	model.ManyToOne
}

func (OneToManyRelation) relation() {}
func (ManyToOneRelation) relation() {}
