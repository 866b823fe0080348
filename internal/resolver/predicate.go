package resolver

import (
	"context"
	"fmt"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/reqctx"
	"github.com/exosql/exosql/internal/value"
)

// PredicateKind tells how a predicate parameter's value is interpreted.
type PredicateKind int

const (
	// ImplicitEqual compares the value for equality: {id: 5}.
	ImplicitEqual PredicateKind = iota
	// Operator takes an object of operators: {id: {gt: 5, lt: 10}}.
	Operator
	// Composite takes an object of fields plus and/or/not.
	Composite
)

// PredicateParameterType is the input type of a predicate parameter.
type PredicateParameterType struct {
	Name       string
	Kind       PredicateKind
	Parameters []PredicateParameter
}

// PredicateParameter is a where argument or one of its fields. Link is the
// column path hop the field contributes; the top-level argument has none.
type PredicateParameter struct {
	Name string
	Type *PredicateParameterType
	Link *model.ColumnPathLink
}

func (t *PredicateParameterType) parameter(name string) (*PredicateParameter, bool) {
	for i := range t.Parameters {
		if t.Parameters[i].Name == name {
			return &t.Parameters[i], true
		}
	}
	return nil, false
}

// MapPredicate lowers a where argument. parent is the path leading to the
// table param applies to, nil at the root. A null argument matches every
// row.
func MapPredicate(ctx context.Context, param *PredicateParameter, arg value.Val, parent *model.PhysicalColumnPath) (asql.AbstractPredicate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg.IsNull() && param.Type.Kind != ImplicitEqual {
		return asql.True{}, nil
	}

	switch param.Type.Kind {
	case ImplicitEqual:
		path, err := extend(param, parent)
		if err != nil {
			return nil, err
		}
		return asql.Eq{Left: path, Right: literal(arg)}, nil

	case Operator:
		if arg.Kind != value.Object {
			return nil, fmt.Errorf("%w: %q must be an object of operators, got %s", ErrUnsupportedShape, param.Name, arg.Kind)
		}
		path, err := extend(param, parent)
		if err != nil {
			return nil, err
		}
		var out asql.AbstractPredicate = asql.True{}
		for _, f := range arg.Fields {
			p, err := operator(f.Name, path, f.Value)
			if err != nil {
				return nil, err
			}
			out = asql.AndPredicates(out, p)
		}
		return out, nil

	case Composite:
		return composite(ctx, param, arg, parent)
	}
	return nil, fmt.Errorf("unknown predicate kind %d for %q", param.Type.Kind, param.Name)
}

func composite(ctx context.Context, param *PredicateParameter, arg value.Val, parent *model.PhysicalColumnPath) (asql.AbstractPredicate, error) {
	if arg.Kind != value.Object {
		return nil, fmt.Errorf("%w: %q must be an object, got %s", ErrUnsupportedShape, param.Name, arg.Kind)
	}
	base := parent
	if param.Link != nil {
		p := asql.ExtendPath(parent, *param.Link)
		base = &p
	}

	var out asql.AbstractPredicate = asql.True{}
	for _, f := range arg.Fields {
		var (
			p   asql.AbstractPredicate
			err error
		)
		switch f.Name {
		case "and", "or":
			p, err = logical(ctx, param, f.Name, f.Value, parent)
		case "not":
			var inner asql.AbstractPredicate
			inner, err = MapPredicate(ctx, param, f.Value, parent)
			p = asql.Not{Inner: inner}
		default:
			child, ok := param.Type.parameter(f.Name)
			if !ok {
				return nil, validationError(f.Name, "Invalid predicate parameter")
			}
			p, err = MapPredicate(ctx, child, f.Value, base)
		}
		if err != nil {
			return nil, err
		}
		out = asql.AndPredicates(out, p)
	}
	return out, nil
}

func logical(ctx context.Context, param *PredicateParameter, op string, val value.Val, parent *model.PhysicalColumnPath) (asql.AbstractPredicate, error) {
	if val.Kind != value.List {
		return nil, fmt.Errorf("%w: %q expects a list, got %s", ErrUnsupportedShape, op, val.Kind)
	}
	var out asql.AbstractPredicate
	if op == "and" {
		out = asql.True{}
	} else {
		out = asql.False{}
	}
	for _, item := range val.List {
		p, err := MapPredicate(ctx, param, item, parent)
		if err != nil {
			return nil, err
		}
		if op == "and" {
			out = asql.AndPredicates(out, p)
		} else {
			out = asql.OrPredicates(out, p)
		}
	}
	return out, nil
}

func extend(param *PredicateParameter, parent *model.PhysicalColumnPath) (model.PhysicalColumnPath, error) {
	if param.Link == nil {
		return model.PhysicalColumnPath{}, fmt.Errorf("predicate parameter %q has no column link", param.Name)
	}
	return asql.ExtendPath(parent, *param.Link), nil
}

func operator(name string, path model.PhysicalColumnPath, val value.Val) (asql.AbstractPredicate, error) {
	right := literal(val)
	switch name {
	case "eq":
		return asql.Eq{Left: path, Right: right}, nil
	case "neq":
		return asql.Neq{Left: path, Right: right}, nil
	case "lt":
		return asql.Lt{Left: path, Right: right}, nil
	case "lte":
		return asql.Lte{Left: path, Right: right}, nil
	case "gt":
		return asql.Gt{Left: path, Right: right}, nil
	case "gte":
		return asql.Gte{Left: path, Right: right}, nil
	case "in":
		if val.Kind != value.List {
			return nil, validationError(name, "Expected a list")
		}
		return asql.In{Left: path, Right: right}, nil
	case "like":
		return asql.StringLike{Left: path, Right: right, CaseSensitive: true}, nil
	case "ilike":
		return asql.StringLike{Left: path, Right: right}, nil
	case "startsWith":
		return asql.StringStartsWith{Left: path, Right: right}, nil
	case "endsWith":
		return asql.StringEndsWith{Left: path, Right: right}, nil
	}
	return nil, validationError(name, "Invalid predicate operator")
}

// literal turns an argument value into an operand. Homogeneous scalar
// lists become typed slices so the driver can bind them as arrays.
func literal(val value.Val) model.ColumnPath {
	if val.IsNull() {
		return model.NullPath{}
	}
	if val.Kind == value.List {
		return model.LiteralPath{Value: typedList(val.List)}
	}
	return model.LiteralPath{Value: val.Interface()}
}

func typedList(items []value.Val) interface{} {
	if len(items) == 0 {
		return []interface{}{}
	}
	kind := items[0].Kind
	for _, item := range items {
		if item.Kind != kind {
			return value.ListVal(items...).Interface()
		}
	}
	switch kind {
	case value.Int:
		out := make([]int64, len(items))
		for i, item := range items {
			out[i] = item.Int
		}
		return out
	case value.Float:
		out := make([]float64, len(items))
		for i, item := range items {
			out[i] = item.Float
		}
		return out
	case value.String, value.Enum:
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = item.Str
		}
		return out
	case value.Bool:
		out := make([]bool, len(items))
		for i, item := range items {
			out[i] = item.Bool
		}
		return out
	}
	return value.ListVal(items...).Interface()
}

// ContextPredicate restricts path to the request-context value named by
// annotation and key. When the request carries no such value nothing
// matches.
func ContextPredicate(ctx context.Context, rc *reqctx.RequestContext, path model.PhysicalColumnPath, annotation, key string) (asql.AbstractPredicate, error) {
	v, ok, err := rc.Value(ctx, annotation, key)
	if err != nil {
		return nil, fmt.Errorf("context %s.%s: %w", annotation, key, err)
	}
	if !ok {
		return asql.False{}, nil
	}
	return asql.Eq{Left: path, Right: model.LiteralPath{Value: v}}, nil
}

// ContextValue assigns the request-context value named by annotation and
// key to col. The value must be present.
func ContextValue(ctx context.Context, rc *reqctx.RequestContext, col model.ColumnID, annotation, key string) (asql.ColumnValue, error) {
	v, ok, err := rc.Value(ctx, annotation, key)
	if err != nil {
		return asql.ColumnValue{}, fmt.Errorf("context %s.%s: %w", annotation, key, err)
	}
	if !ok {
		return asql.ColumnValue{}, validationError(annotation+"."+key, "Missing context value")
	}
	return asql.ColumnValue{Column: col, Value: v}, nil
}
