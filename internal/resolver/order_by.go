package resolver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/value"
)

// OrderByParameterType is the input type of an order-by argument. A
// primitive type takes an ordering token; a composite type takes an object
// of its Parameters.
type OrderByParameterType struct {
	Name       string
	Primitive  bool
	Parameters []OrderByParameter
}

// OrderByParameter is one field of an order-by input type (or the argument
// itself). Link is the column path hop the field contributes: a leaf link
// for primitive fields, a relation link for composite ones. The top-level
// argument has no Link.
type OrderByParameter struct {
	Name string
	Type *OrderByParameterType
	Link *model.ColumnPathLink
}

func (t *OrderByParameterType) parameter(name string) (*OrderByParameter, bool) {
	for i := range t.Parameters {
		if t.Parameters[i].Name == name {
			return &t.Parameters[i], true
		}
	}
	return nil, false
}

// MapOrderBy lowers arg, an object like {title: ASC, venue: {name: DESC}}
// or a list of such objects, into an ordered list of order-by elements.
// Sibling fields and list elements are lowered concurrently and joined in
// source order.
func MapOrderBy(ctx context.Context, param *OrderByParameter, arg value.Val, parent *model.PhysicalColumnPath) (asql.AbstractOrderBy, error) {
	switch arg.Kind {
	case value.Object:
		return gather(ctx, len(arg.Fields), func(ctx context.Context, i int) (asql.AbstractOrderBy, error) {
			f := arg.Fields[i]
			return orderByPair(ctx, param.Type, f.Name, f.Value, parent)
		})
	case value.List:
		return gather(ctx, len(arg.List), func(ctx context.Context, i int) (asql.AbstractOrderBy, error) {
			return MapOrderBy(ctx, param, arg.List[i], parent)
		})
	}
	return nil, fmt.Errorf("%w: order by %q must be an object or a list, got %s", ErrUnsupportedShape, param.Name, arg.Kind)
}

func orderByPair(ctx context.Context, typ *OrderByParameterType, name string, val value.Val, parent *model.PhysicalColumnPath) (asql.AbstractOrderBy, error) {
	if typ.Primitive {
		return nil, validationError(name, "Invalid primitive order by parameter")
	}
	param, ok := typ.parameter(name)
	if !ok {
		return nil, validationError(name, "Invalid order by parameter")
	}
	if param.Link == nil {
		return nil, fmt.Errorf("order by parameter %q has no column link", name)
	}

	path := asql.ExtendPath(parent, *param.Link)
	if param.Type.Primitive {
		ordering, err := ordering(val)
		if err != nil {
			return nil, err
		}
		return asql.AbstractOrderBy{{Path: path, Ordering: ordering}}, nil
	}
	return MapOrderBy(ctx, param, val, &path)
}

// ordering accepts exactly ASC or DESC, as an enum literal or as a string
// (variables carry enums as strings).
func ordering(val value.Val) (asql.Ordering, error) {
	if val.Kind == value.Enum || val.Kind == value.String {
		switch val.Str {
		case "ASC":
			return asql.Asc, nil
		case "DESC":
			return asql.Desc, nil
		}
	}
	return 0, validationError("", fmt.Sprintf("Cannot match %s as valid ordering", val))
}

// gather runs n independent lowerings concurrently and concatenates their
// results by index, so the output order never depends on completion order.
func gather(ctx context.Context, n int, fn func(ctx context.Context, i int) (asql.AbstractOrderBy, error)) (asql.AbstractOrderBy, error) {
	results := make([]asql.AbstractOrderBy, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ob, err := fn(ctx, i)
			if err != nil {
				return err
			}
			results[i] = ob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out asql.AbstractOrderBy
	for _, ob := range results {
		out = append(out, ob...)
	}
	return out, nil
}
