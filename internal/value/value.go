// Package value is the generic argument form the resolver consumes: a
// tagged value whose object fields keep their source order. Values are built
// from GraphQL literals, from request variables or from JSON.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Val.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	Enum
	List
	Object
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "enum", "list", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one named member of an object.
type Field struct {
	Name  string
	Value Val
}

// Val is a generic argument value. The zero Val is null.
type Val struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string // String and Enum
	List   []Val
	Fields []Field
}

func NullVal() Val                  { return Val{} }
func BoolVal(b bool) Val            { return Val{Kind: Bool, Bool: b} }
func IntVal(i int64) Val            { return Val{Kind: Int, Int: i} }
func FloatVal(f float64) Val        { return Val{Kind: Float, Float: f} }
func StringVal(s string) Val        { return Val{Kind: String, Str: s} }
func EnumVal(s string) Val          { return Val{Kind: Enum, Str: s} }
func ListVal(items ...Val) Val      { return Val{Kind: List, List: items} }
func ObjectVal(fields ...Field) Val { return Val{Kind: Object, Fields: fields} }

// F is shorthand for building object fields.
func F(name string, v Val) Field { return Field{Name: name, Value: v} }

// IsNull reports whether v is null.
func (v Val) IsNull() bool { return v.Kind == Null }

// Get returns the named field of an object.
func (v Val) Get(name string) (Val, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Val{}, false
}

// Interface converts v to plain Go values suitable as query arguments:
// nil, bool, int64, float64, string, []interface{} or map[string]interface{}.
// Object field order is lost.
func (v Val) Interface() interface{} {
	switch v.Kind {
	case Bool:
		return v.Bool
	case Int:
		return v.Int
	case Float:
		return v.Float
	case String, Enum:
		return v.Str
	case List:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name] = f.Value.Interface()
		}
		return out
	}
	return nil
}

// String renders v in GraphQL literal syntax.
func (v Val) String() string {
	switch v.Kind {
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case String:
		return strconv.Quote(v.Str)
	case Enum:
		return v.Str
	case List:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.Name + ": " + f.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "null"
}

// FromAny converts plain Go values, such as decoded JSON, to a Val. Map keys
// have no order, so object fields are sorted by name; use DecodeJSON when
// source order matters.
func FromAny(x interface{}) (Val, error) {
	switch x := x.(type) {
	case nil:
		return Val{}, nil
	case Val:
		return x, nil
	case bool:
		return BoolVal(x), nil
	case int:
		return IntVal(int64(x)), nil
	case int32:
		return IntVal(int64(x)), nil
	case int64:
		return IntVal(x), nil
	case float32:
		return FloatVal(float64(x)), nil
	case float64:
		return FloatVal(x), nil
	case string:
		return StringVal(x), nil
	case []interface{}:
		items := make([]Val, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Val{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return ListVal(items...), nil
	case map[string]interface{}:
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]Field, len(names))
		for i, name := range names {
			v, err := FromAny(x[name])
			if err != nil {
				return Val{}, fmt.Errorf("%s: %w", name, err)
			}
			fields[i] = F(name, v)
		}
		return ObjectVal(fields...), nil
	}
	return Val{}, fmt.Errorf("unsupported value type %T", x)
}
