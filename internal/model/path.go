package model

import (
	"fmt"
)

// ManyToOne is the relation carried by a foreign key column: SelfColumn
// holds the key, ForeignPKColumn is the primary key it points at.
type ManyToOne struct {
	SelfColumn      ColumnID
	ForeignPKColumn ColumnID
}

// OneToMany is the reverse of a ManyToOne: rows of the table owning
// SelfPKColumn relate to every row whose ForeignColumn holds their key.
// It is never stored; it is reconstructed from the foreign key column.
type OneToMany struct {
	SelfPKColumn  ColumnID
	ForeignColumn ColumnID
}

// ManyToOne returns the relation carried by the foreign key column col.
func (d *Database) ManyToOne(col ColumnID) (ManyToOne, error) {
	ref, ok := d.Column(col).Type.(ColumnReference)
	if !ok {
		return ManyToOne{}, fmt.Errorf("column %s is not a foreign key", d.QualifiedName(col))
	}
	return ManyToOne{SelfColumn: col, ForeignPKColumn: ref.Column}, nil
}

// OneToMany returns the one-to-many relation whose many side is the foreign
// key column fkCol.
func (d *Database) OneToMany(fkCol ColumnID) (OneToMany, error) {
	m, err := d.ManyToOne(fkCol)
	if err != nil {
		return OneToMany{}, err
	}
	return m.Reverse(), nil
}

// Reverse returns the one-to-many view of the relation.
func (r ManyToOne) Reverse() OneToMany {
	return OneToMany{SelfPKColumn: r.ForeignPKColumn, ForeignColumn: r.SelfColumn}
}

// Reverse returns the many-to-one view of the relation.
func (r OneToMany) Reverse() ManyToOne {
	return ManyToOne{SelfColumn: r.ForeignColumn, ForeignPKColumn: r.SelfPKColumn}
}

// Link returns the column path hop from the foreign key's table to the
// referenced table.
func (r ManyToOne) Link() ColumnPathLink {
	linked := r.ForeignPKColumn
	return ColumnPathLink{SelfColumn: r.SelfColumn, LinkedColumn: &linked}
}

// Link returns the column path hop from the referenced table to the table
// holding the foreign key.
func (r OneToMany) Link() ColumnPathLink {
	linked := r.ForeignColumn
	return ColumnPathLink{SelfColumn: r.SelfPKColumn, LinkedColumn: &linked}
}

// ColumnPathLink is one hop of a column path. A hop with a LinkedColumn
// moves from SelfColumn's table to LinkedColumn's table; a hop without one
// is the leaf.
type ColumnPathLink struct {
	SelfColumn   ColumnID
	LinkedColumn *ColumnID
}

// LeafLink returns a terminal hop on col.
func LeafLink(col ColumnID) ColumnPathLink {
	return ColumnPathLink{SelfColumn: col}
}

// IsLeaf reports whether the hop terminates the path.
func (l ColumnPathLink) IsLeaf() bool { return l.LinkedColumn == nil }

// ColumnPath addresses a value in an operation: a physical column reached
// through zero or more relation hops, a literal, or SQL NULL.
type ColumnPath interface {
	columnPath()
}

// PhysicalColumnPath is a sequence of hops ending in a leaf column. The zero
// value is an empty path which is only valid as a composition seed.
type PhysicalColumnPath struct {
	links []ColumnPathLink
}

// LiteralPath is a literal operand bound as a query parameter.
type LiteralPath struct {
	Value any
}

// NullPath is the SQL NULL operand.
type NullPath struct{}

func (PhysicalColumnPath) columnPath() {}
func (LiteralPath) columnPath()        {}
func (NullPath) columnPath()           {}

// LeafPath returns the single-hop path addressing col in its own table.
func LeafPath(col ColumnID) PhysicalColumnPath {
	return PhysicalColumnPath{links: []ColumnPathLink{LeafLink(col)}}
}

// NewPhysicalColumnPath validates links against d: every non-leaf hop must
// follow a foreign key (in either direction) into the next hop's table and
// only the last hop may be a leaf.
func NewPhysicalColumnPath(d *Database, links ...ColumnPathLink) (PhysicalColumnPath, error) {
	if len(links) == 0 {
		return PhysicalColumnPath{}, fmt.Errorf("column path must have at least one hop")
	}
	for i, l := range links {
		last := i == len(links)-1
		if last {
			if !l.IsLeaf() {
				return PhysicalColumnPath{}, fmt.Errorf("column path hop %d (%s) must be a leaf", i, d.QualifiedName(l.SelfColumn))
			}
			continue
		}
		if l.IsLeaf() {
			return PhysicalColumnPath{}, fmt.Errorf("column path hop %d (%s) is a leaf but is followed by %d more", i, d.QualifiedName(l.SelfColumn), len(links)-1-i)
		}
		if l.LinkedColumn.Table != links[i+1].SelfColumn.Table {
			return PhysicalColumnPath{}, fmt.Errorf("column path hop %d links to %s but the next hop starts in %s",
				i, d.Table(l.LinkedColumn.Table).Name, d.Table(links[i+1].SelfColumn.Table).Name)
		}
		if !d.isRelationLink(l) {
			return PhysicalColumnPath{}, fmt.Errorf("column path hop %s -> %s does not follow a foreign key",
				d.QualifiedName(l.SelfColumn), d.QualifiedName(*l.LinkedColumn))
		}
	}
	return PhysicalColumnPath{links: append([]ColumnPathLink(nil), links...)}, nil
}

func (d *Database) isRelationLink(l ColumnPathLink) bool {
	if ref, ok := d.Column(l.SelfColumn).Type.(ColumnReference); ok && ref.Column == *l.LinkedColumn {
		return true
	}
	if ref, ok := d.Column(*l.LinkedColumn).Type.(ColumnReference); ok && ref.Column == l.SelfColumn {
		return true
	}
	return false
}

// Links returns the hops of the path. The slice must not be modified.
func (p PhysicalColumnPath) Links() []ColumnPathLink { return p.links }

// Len returns the number of hops.
func (p PhysicalColumnPath) Len() int { return len(p.links) }

// IsEmpty reports whether the path has no hops.
func (p PhysicalColumnPath) IsEmpty() bool { return len(p.links) == 0 }

// Leaf returns the column the path terminates in.
func (p PhysicalColumnPath) Leaf() ColumnID {
	return p.links[len(p.links)-1].SelfColumn
}

// Root returns the table the path starts from.
func (p PhysicalColumnPath) Root() TableID {
	return p.links[0].SelfColumn.Table
}

// Head returns the first hop and the remaining path.
func (p PhysicalColumnPath) Head() (ColumnPathLink, PhysicalColumnPath) {
	return p.links[0], PhysicalColumnPath{links: p.links[1:]}
}

// Push returns a new path with link appended; the receiver is unchanged.
// No validation happens here, the compiler rejects malformed paths.
func (p PhysicalColumnPath) Push(link ColumnPathLink) PhysicalColumnPath {
	links := make([]ColumnPathLink, 0, len(p.links)+1)
	links = append(links, p.links...)
	links = append(links, link)
	return PhysicalColumnPath{links: links}
}
