package value

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// Variables holds request variables by name.
type Variables map[string]Val

// FromAST converts a GraphQL argument literal. Variable references are
// looked up in vars, falling back to the variable's declared default; an
// unbound variable is null.
func FromAST(v *ast.Value, vars Variables) (Val, error) {
	if v == nil {
		return Val{}, nil
	}
	switch v.Kind {
	case ast.Variable:
		if bound, ok := vars[v.Raw]; ok {
			return bound, nil
		}
		if v.VariableDefinition != nil && v.VariableDefinition.DefaultValue != nil {
			return FromAST(v.VariableDefinition.DefaultValue, vars)
		}
		return Val{}, nil
	case ast.IntValue:
		i, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return Val{}, fmt.Errorf("invalid int %q: %w", v.Raw, err)
		}
		return IntVal(i), nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return Val{}, fmt.Errorf("invalid float %q: %w", v.Raw, err)
		}
		return FloatVal(f), nil
	case ast.StringValue, ast.BlockValue:
		return StringVal(v.Raw), nil
	case ast.EnumValue:
		return EnumVal(v.Raw), nil
	case ast.BooleanValue:
		b, err := strconv.ParseBool(v.Raw)
		if err != nil {
			return Val{}, fmt.Errorf("invalid boolean %q: %w", v.Raw, err)
		}
		return BoolVal(b), nil
	case ast.NullValue:
		return Val{}, nil
	case ast.ListValue:
		items := make([]Val, 0, len(v.Children))
		for i, child := range v.Children {
			item, err := FromAST(child.Value, vars)
			if err != nil {
				return Val{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return ListVal(items...), nil
	case ast.ObjectValue:
		fields := make([]Field, 0, len(v.Children))
		for _, child := range v.Children {
			item, err := FromAST(child.Value, vars)
			if err != nil {
				return Val{}, fmt.Errorf("%s: %w", child.Name, err)
			}
			fields = append(fields, F(child.Name, item))
		}
		return ObjectVal(fields...), nil
	}
	return Val{}, fmt.Errorf("unsupported GraphQL value kind %d", v.Kind)
}
