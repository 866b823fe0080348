// Package asql holds the abstract operations the compiler consumes: selects,
// inserts, updates and deletes rooted at one table and expressed over column
// paths rather than SQL. Values in this package are plain data; validation
// happens when they are compiled.
package asql

import "github.com/exosql/exosql/internal/model"

// AbstractSelect reads rows of Table. A nil Predicate selects every row.
type AbstractSelect struct {
	Table     model.TableID
	Selection Selection
	Predicate AbstractPredicate
	OrderBy   AbstractOrderBy
	Offset    *int64
	Limit     *int64
}

// ColumnValue assigns Value to Column. A nil Value writes NULL.
type ColumnValue struct {
	Column model.ColumnID
	Value  any
}

// InsertionRow is one row to insert, along with child rows to create for it.
type InsertionRow struct {
	Values []ColumnValue
	Nested []NestedInsertion
}

// NestedInsertion creates rows in the table on the many side of Relation,
// with the foreign key set to the new parent row's primary key.
type NestedInsertion struct {
	Relation model.OneToMany
	Rows     []InsertionRow
}

// AbstractInsert inserts Rows into Table and returns Selection over the
// inserted rows.
type AbstractInsert struct {
	Table     model.TableID
	Rows      []InsertionRow
	Selection Selection
}

// AbstractUpdate sets columns on the rows of Table matching Predicate and
// applies nested operations to their children.
type AbstractUpdate struct {
	Table     model.TableID
	Predicate AbstractPredicate
	Set       []ColumnValue

	NestedUpdates []NestedAbstractUpdate
	NestedInserts []NestedAbstractInsert
	NestedDeletes []NestedAbstractDelete

	Selection Selection
}

// AbstractDelete deletes the rows of Table matching Predicate.
type AbstractDelete struct {
	Table     model.TableID
	Predicate AbstractPredicate
	Selection Selection
}

// NestedElementRelation identifies the child side of a nested operation:
// Column is the foreign key in Table that points at the parent's primary
// key.
type NestedElementRelation struct {
	Column model.ColumnID
	Table  model.TableID
}

// NestedAbstractUpdate updates children of the rows matched by the enclosing
// update. The child's Selection is ignored.
type NestedAbstractUpdate struct {
	Relation NestedElementRelation
	Update   AbstractUpdate
}

// NestedAbstractInsert creates children for every row matched by the
// enclosing update. Values for the relation column are ignored.
type NestedAbstractInsert struct {
	Relation NestedElementRelation
	Insert   AbstractInsert
}

// NestedAbstractDelete deletes children of the rows matched by the enclosing
// update. The child's Selection is ignored.
type NestedAbstractDelete struct {
	Relation NestedElementRelation
	Delete   AbstractDelete
}
