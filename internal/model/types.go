package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ColumnType is the logical type of a column. The set of implementations is
// closed; callers switch over the concrete types below.
type ColumnType interface {
	columnType()
}

// IntType is a signed integer of 16, 32 or 64 bits.
type IntType struct {
	Bits int
}

// FloatType is REAL (24 bits of precision) or DOUBLE PRECISION (53 bits).
type FloatType struct {
	Bits int
}

// NumericType is an arbitrary precision decimal.
type NumericType struct {
	Precision *int
	Scale     *int
}

// StringType is TEXT, or VARCHAR(n) when MaxLength is set.
type StringType struct {
	MaxLength *int
}

// BooleanType is BOOLEAN.
type BooleanType struct{}

// TimestampType is TIMESTAMP or TIMESTAMPTZ.
type TimestampType struct {
	Timezone bool
}

// DateType is DATE.
type DateType struct{}

// TimeType is TIME or TIMETZ.
type TimeType struct {
	Timezone bool
}

// JSONType is JSONB.
type JSONType struct{}

// BlobType is BYTEA.
type BlobType struct{}

// UUIDType is UUID.
type UUIDType struct{}

// ArrayType is a one dimensional array of Elem.
type ArrayType struct {
	Elem ColumnType
}

// ColumnReference marks a many-to-one foreign key. Column is the referenced
// primary key column and PKType its (non-reference) type.
type ColumnReference struct {
	Column ColumnID
	PKType ColumnType
}

func (IntType) columnType()         {}
func (FloatType) columnType()       {}
func (NumericType) columnType()     {}
func (StringType) columnType()      {}
func (BooleanType) columnType()     {}
func (TimestampType) columnType()   {}
func (DateType) columnType()        {}
func (TimeType) columnType()        {}
func (JSONType) columnType()        {}
func (BlobType) columnType()        {}
func (UUIDType) columnType()        {}
func (ArrayType) columnType()       {}
func (ColumnReference) columnType() {}

// TypeSQL renders the DDL type of t. Auto-increment integers render as the
// matching SERIAL pseudo-type.
func TypeSQL(t ColumnType, autoIncrement bool) string {
	switch t := t.(type) {
	case IntType:
		switch t.Bits {
		case 16:
			if autoIncrement {
				return "SMALLSERIAL"
			}
			return "SMALLINT"
		case 64:
			if autoIncrement {
				return "BIGSERIAL"
			}
			return "BIGINT"
		default:
			if autoIncrement {
				return "SERIAL"
			}
			return "INT"
		}
	case FloatType:
		if t.Bits <= 24 {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case NumericType:
		switch {
		case t.Precision != nil && t.Scale != nil:
			return fmt.Sprintf("NUMERIC(%d, %d)", *t.Precision, *t.Scale)
		case t.Precision != nil:
			return fmt.Sprintf("NUMERIC(%d)", *t.Precision)
		default:
			return "NUMERIC"
		}
	case StringType:
		if t.MaxLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *t.MaxLength)
		}
		return "TEXT"
	case BooleanType:
		return "BOOLEAN"
	case TimestampType:
		if t.Timezone {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case DateType:
		return "DATE"
	case TimeType:
		if t.Timezone {
			return "TIMETZ"
		}
		return "TIME"
	case JSONType:
		return "JSONB"
	case BlobType:
		return "BYTEA"
	case UUIDType:
		return "UUID"
	case ArrayType:
		return TypeSQL(t.Elem, false) + "[]"
	case ColumnReference:
		return TypeSQL(t.PKType, false)
	}
	return "TEXT"
}

// ParseColumnType maps an information_schema description back to a
// ColumnType. udtName is the PostgreSQL internal type name (int4, varchar,
// _int4 for arrays); dataType is information_schema.columns.data_type.
// Unknown types fall back to TEXT.
func ParseColumnType(udtName, dataType string, maxLength, precision, scale *int) ColumnType {
	udt := strings.ToLower(udtName)
	if strings.EqualFold(dataType, "ARRAY") || strings.HasPrefix(udt, "_") {
		return ArrayType{Elem: ParseColumnType(strings.TrimPrefix(udt, "_"), "", nil, nil, nil)}
	}
	if t, ok := parseUDT(udt, maxLength, precision, scale); ok {
		return t
	}
	return StringType{}
}

// IsKnownType reports whether ParseColumnType recognizes udtName rather
// than falling back to TEXT.
func IsKnownType(udtName, dataType string) bool {
	udt := strings.ToLower(udtName)
	if strings.EqualFold(dataType, "ARRAY") || strings.HasPrefix(udt, "_") {
		return IsKnownType(strings.TrimPrefix(udt, "_"), "")
	}
	_, ok := parseUDT(udt, nil, nil, nil)
	return ok
}

func parseUDT(udt string, maxLength, precision, scale *int) (ColumnType, bool) {
	switch udt {
	case "int2", "smallint", "smallserial":
		return IntType{Bits: 16}, true
	case "int4", "integer", "int", "serial":
		return IntType{Bits: 32}, true
	case "int8", "bigint", "bigserial":
		return IntType{Bits: 64}, true
	case "float4", "real":
		return FloatType{Bits: 24}, true
	case "float8", "double precision":
		return FloatType{Bits: 53}, true
	case "numeric", "decimal":
		return NumericType{Precision: precision, Scale: scale}, true
	case "varchar", "character varying", "bpchar", "char", "character":
		return StringType{MaxLength: maxLength}, true
	case "text", "citext", "name":
		return StringType{}, true
	case "bool", "boolean":
		return BooleanType{}, true
	case "timestamp", "timestamp without time zone":
		return TimestampType{}, true
	case "timestamptz", "timestamp with time zone":
		return TimestampType{Timezone: true}, true
	case "date":
		return DateType{}, true
	case "time", "time without time zone":
		return TimeType{}, true
	case "timetz", "time with time zone":
		return TimeType{Timezone: true}, true
	case "json", "jsonb":
		return JSONType{}, true
	case "bytea":
		return BlobType{}, true
	case "uuid":
		return UUIDType{}, true
	}
	return nil, false
}

var typeNameRegex = regexp.MustCompile(`^([a-z][a-z0-9 ]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?$`)

// ParseTypeName parses a DDL type as rendered by TypeSQL, such as
// "VARCHAR(255)", "NUMERIC(10, 2)" or "INT[]". The SERIAL pseudo-types
// report autoIncrement.
func ParseTypeName(name string) (typ ColumnType, autoIncrement bool, err error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if strings.HasSuffix(s, "[]") {
		elem, _, err := ParseTypeName(strings.TrimSuffix(s, "[]"))
		if err != nil {
			return nil, false, err
		}
		return ArrayType{Elem: elem}, false, nil
	}

	m := typeNameRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, false, fmt.Errorf("invalid column type %q", name)
	}
	var first, second *int
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		first = &n
	}
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		second = &n
	}

	base := m[1]
	switch base {
	case "serial", "smallserial", "bigserial":
		autoIncrement = true
	}
	var t ColumnType
	var ok bool
	switch base {
	case "numeric", "decimal":
		t, ok = NumericType{Precision: first, Scale: second}, true
	default:
		if second != nil {
			return nil, false, fmt.Errorf("invalid column type %q", name)
		}
		t, ok = parseUDT(base, first, nil, nil)
	}
	if !ok {
		return nil, false, fmt.Errorf("unknown column type %q", name)
	}
	return t, autoIncrement, nil
}

// TypeSignature renders a comparable description of col's type that is
// independent of arena identifiers, so columns from two snapshots can be
// compared. References include the referenced table and column name.
func (d *Database) TypeSignature(col *Column) string {
	sig := TypeSQL(col.Type, col.IsAutoIncrement)
	if ref, ok := col.Type.(ColumnReference); ok {
		sig += " REFERENCES " + d.QualifiedName(ref.Column)
	}
	return sig
}
