package schema

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/model"
)

// introspectConcurrency bounds the tables introspected at once.
const introspectConcurrency = 8

type liveTable struct {
	name        string
	constraints connector.Constraints
	columns     []connector.ColumnInfo
}

// Introspect reads the current schema through in. Tables are read
// concurrently; within a table constraints are read before columns. Any
// failure aborts the pass and no snapshot is returned.
func Introspect(ctx context.Context, in connector.Introspector, schemaName string, logger *slog.Logger) (WithIssues[*model.Database], error) {
	if logger == nil {
		logger = slog.Default()
	}

	names, err := in.TableNames(ctx)
	if err != nil {
		return WithIssues[*model.Database]{}, fmt.Errorf("introspect: %w", err)
	}

	tables := make([]liveTable, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(introspectConcurrency)
	for i, name := range names {
		g.Go(func() error {
			t, err := introspectTable(gctx, in, name)
			if err != nil {
				return err
			}
			tables[i] = t
			logger.Debug("introspected table", "table", name, "columns", len(t.columns))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WithIssues[*model.Database]{}, fmt.Errorf("introspect: %w", err)
	}

	db, issues, err := assemble(schemaName, tables)
	if err != nil {
		return WithIssues[*model.Database]{}, fmt.Errorf("introspect: %w", err)
	}
	return WithIssues[*model.Database]{Value: db, Issues: issues}, nil
}

func introspectTable(ctx context.Context, in connector.Introspector, name string) (liveTable, error) {
	t := liveTable{name: name}

	var err error
	if t.constraints, err = in.Constraints(ctx, name); err != nil {
		return t, err
	}
	columns, err := in.ColumnNames(ctx, name)
	if err != nil {
		return t, err
	}
	for _, col := range columns {
		info, err := in.ColumnInfo(ctx, name, col)
		if err != nil {
			return t, err
		}
		t.columns = append(t.columns, info)
	}
	return t, nil
}

// assemble builds the snapshot. Foreign keys become references by table
// name, so tables can be added in any order.
func assemble(schemaName string, tables []liveTable) (*model.Database, []Issue, error) {
	var issues []Issue
	b := model.NewBuilder(schemaName)
	ids := make([]model.TableID, len(tables))
	for i, t := range tables {
		ids[i] = b.AddTable(t.name)
	}

	for i, t := range tables {
		pk := toSet(t.constraints.PrimaryKey)
		switch {
		case len(pk) == 0:
			issues = append(issues, warningf("table %q has no primary key", t.name))
		case len(pk) > 1:
			issues = append(issues, warningf("composite primary key on %q is not supported; its columns are imported as plain columns", t.name))
			pk = nil
		}

		refs := map[string]*model.Reference{}
		for _, fk := range t.constraints.ForeignKeys {
			if len(fk.Columns) != 1 || len(fk.ForeignColumns) != 1 {
				issues = append(issues, warningf("composite foreign key %q on %q is not supported; its columns are imported as plain columns", fk.Name, t.name))
				continue
			}
			target, ok := b.TableID(fk.ForeignTable)
			if !ok {
				issues = append(issues, warningf("foreign key %q on %q references %q outside schema %q", fk.Name, t.name, fk.ForeignTable, schemaName))
				continue
			}
			refs[fk.Columns[0]] = &model.Reference{Table: target, Column: fk.ForeignColumns[0]}
		}

		for _, col := range t.columns {
			def := model.ColumnDef{
				Name:            col.Name,
				IsPK:            pk[col.Name],
				IsAutoIncrement: col.IsAutoIncrement,
				IsNullable:      col.IsNullable && !pk[col.Name],
				Default:         col.Default,
				References:      refs[col.Name],
			}
			for _, u := range t.constraints.Uniques {
				for _, c := range u.Columns {
					if c == col.Name {
						def.UniqueConstraints = append(def.UniqueConstraints, u.Name)
					}
				}
			}
			if def.References == nil {
				def.Type = model.ParseColumnType(col.UDTName, col.DataType, col.MaxLength, col.Precision, col.Scale)
				if !model.IsKnownType(col.UDTName, col.DataType) {
					issues = append(issues, warningf("column %s.%s has unsupported type %q; treated as TEXT", t.name, col.Name, col.UDTName))
				}
			}
			b.AddColumn(ids[i], def)
		}
	}

	db, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return db, issues, nil
}
