package schema

import (
	"github.com/exosql/exosql/internal/model"
)

// Diff returns the operations that turn existing into target: created
// extensions, changes to tables present in both (matched by name), created
// tables, deleted tables, then removed extensions. Diffing a snapshot
// against an identical one yields no operations.
func Diff(existing, target *model.Database) []Op {
	var ops []Op

	existingExt := toSet(existing.RequiredExtensions())
	targetExt := toSet(target.RequiredExtensions())
	for _, ext := range target.RequiredExtensions() {
		if !existingExt[ext] {
			ops = append(ops, CreateExtension{Name: ext})
		}
	}

	var deleted []Op
	for _, et := range existing.TableIDs() {
		tt, ok := target.TableByName(existing.Table(et).Name)
		if !ok {
			deleted = append(deleted, DeleteTable{DB: existing, Table: et})
			continue
		}
		ops = append(ops, diffTable(existing, et, target, tt)...)
	}

	for _, tt := range target.TableIDs() {
		if _, ok := existing.TableByName(target.Table(tt).Name); !ok {
			ops = append(ops, CreateTable{DB: target, Table: tt})
		}
	}
	ops = append(ops, deleted...)

	for _, ext := range existing.RequiredExtensions() {
		if !targetExt[ext] {
			ops = append(ops, RemoveExtension{Name: ext})
		}
	}
	return ops
}

// diffTable compares two versions of one table. Columns are visited in
// existing order, then target order; unique constraints by name.
func diffTable(existing *model.Database, et model.TableID, target *model.Database, tt model.TableID) []Op {
	var ops []Op
	dropped := map[string]bool{}

	for _, ec := range existing.ColumnIDs(et) {
		name := existing.Column(ec).Name
		tc, ok := target.ColumnByName(tt, name)
		if !ok {
			ops = append(ops, DeleteColumn{DB: existing, Column: ec})
			dropped[name] = true
			continue
		}
		colOps := diffColumn(existing, ec, target, tc)
		if len(colOps) > 0 {
			if _, recreated := colOps[0].(DeleteColumn); recreated {
				dropped[name] = true
			}
		}
		ops = append(ops, colOps...)
	}

	for _, tc := range target.ColumnIDs(tt) {
		if _, ok := existing.ColumnByName(et, target.Column(tc).Name); !ok {
			ops = append(ops, CreateColumn{DB: target, Column: tc})
		}
	}

	// Dropping a column drops every constraint involving it, so those
	// constraints no longer count as existing. Restoring one depends on the
	// drop having run.
	allUniques := existing.Table(et).NamedUniqueConstraints()
	existingUniques := withoutColumns(allUniques, dropped)
	targetUniques := target.Table(tt).NamedUniqueConstraints()

	for _, name := range sortedNames(existingUniques) {
		if _, ok := targetUniques[name]; !ok {
			ops = append(ops, RemoveUniqueConstraint{DB: target, Table: tt, Name: name})
		}
	}
	for _, name := range sortedNames(targetUniques) {
		columns := targetUniques[name]
		current, ok := existingUniques[name]
		_, lost := allUniques[name]
		switch {
		case !ok && lost:
			ops = append(ops, CreateUniqueConstraint{DB: target, Table: tt, Name: name, Columns: columns, Restored: true})
		case !ok:
			ops = append(ops, CreateUniqueConstraint{DB: target, Table: tt, Name: name, Columns: columns})
		case !sameColumns(current, columns):
			ops = append(ops,
				RemoveUniqueConstraint{DB: target, Table: tt, Name: name},
				CreateUniqueConstraint{DB: target, Table: tt, Name: name, Columns: columns})
		}
	}
	return ops
}

// diffColumn compares two versions of one column. A change of type or
// primary key membership recreates the column; the re-add is destructive
// along with the drop so the pair is applied or skipped as one.
func diffColumn(existing *model.Database, ec model.ColumnID, target *model.Database, tc model.ColumnID) []Op {
	e, t := existing.Column(ec), target.Column(tc)
	if existing.TypeSignature(e) != target.TypeSignature(t) || e.IsPK != t.IsPK {
		return []Op{DeleteColumn{DB: existing, Column: ec}, CreateColumn{DB: target, Column: tc, Recreated: true}}
	}

	var ops []Op
	if !t.IsPK {
		switch {
		case e.IsNullable && !t.IsNullable:
			ops = append(ops, SetNotNull{DB: target, Column: tc})
		case !e.IsNullable && t.IsNullable:
			ops = append(ops, UnsetNotNull{DB: target, Column: tc})
		}
	}
	if !t.IsAutoIncrement {
		switch {
		case t.Default == nil && e.Default != nil:
			ops = append(ops, UnsetColumnDefault{DB: target, Column: tc})
		case t.Default != nil && (e.Default == nil || *e.Default != *t.Default):
			ops = append(ops, SetColumnDefault{DB: target, Column: tc})
		}
	}
	return ops
}

// withoutColumns leaves out every constraint that involves a dropped
// column.
func withoutColumns(uniques map[string][]string, dropped map[string]bool) map[string][]string {
	if len(dropped) == 0 {
		return uniques
	}
	out := make(map[string][]string, len(uniques))
next:
	for name, cols := range uniques {
		for _, c := range cols {
			if dropped[c] {
				continue next
			}
		}
		out[name] = cols
	}
	return out
}

// sameColumns compares two sorted column lists.
func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set
}
