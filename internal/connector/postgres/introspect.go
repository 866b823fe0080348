package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/exosql/exosql/internal/connector"
)

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	ColumnName string  `db:"column_name"`
	UDTName    string  `db:"udt_name"`
	DataType   string  `db:"data_type"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	MaxLength  *int64  `db:"character_maximum_length"`
	Precision  *int64  `db:"numeric_precision"`
	Scale      *int64  `db:"numeric_scale"`
}

// keyRow holds one column of a key constraint.
type keyRow struct {
	ConstraintName string `db:"constraint_name"`
	ColumnName     string `db:"column_name"`
}

// fkRow holds one column pair of a foreign key constraint.
type fkRow struct {
	ConstraintName string `db:"constraint_name"`
	ColumnName     string `db:"column_name"`
	ForeignTable   string `db:"foreign_table"`
	ForeignColumn  string `db:"foreign_column"`
}

const tableNamesQuery = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

// Constraint names are only unique per table, so key columns are matched
// on the table as well.
const keyColumnsQuery = `SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = $3
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`

// foreignKeysQuery reads pg_constraint directly: information_schema only
// links a foreign key to its referenced columns by constraint name, which
// is ambiguous when two tables use the same name.
const foreignKeysQuery = `SELECT
			con.conname AS constraint_name,
			a.attname AS column_name,
			fcl.relname AS foreign_table,
			fa.attname AS foreign_column
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cl.relnamespace
		JOIN pg_class fcl ON fcl.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f'
			AND ns.nspname = $1
			AND cl.relname = $2
		ORDER BY con.conname, k.ord`

const columnNamesQuery = `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

const columnInfoQuery = `SELECT
			column_name,
			udt_name,
			data_type,
			is_nullable,
			column_default,
			character_maximum_length,
			numeric_precision,
			numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`

// TableNames returns a list of all base table names in the configured schema.
func (c *PostgresConnector) TableNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.db.SelectContext(ctx, &names, tableNamesQuery, c.schemaName); err != nil {
		return nil, &connector.DatabaseError{Op: "table names", Err: err}
	}
	return names, nil
}

// Constraints returns the primary key, foreign keys and named unique
// constraints of table.
func (c *PostgresConnector) Constraints(ctx context.Context, table string) (connector.Constraints, error) {
	var out connector.Constraints

	var pks []keyRow
	if err := c.db.SelectContext(ctx, &pks, keyColumnsQuery, c.schemaName, table, "PRIMARY KEY"); err != nil {
		return out, &connector.DatabaseError{Op: "primary key", Table: table, Err: err}
	}
	for _, pk := range pks {
		out.PrimaryKey = append(out.PrimaryKey, pk.ColumnName)
	}

	var fks []fkRow
	if err := c.db.SelectContext(ctx, &fks, foreignKeysQuery, c.schemaName, table); err != nil {
		return out, &connector.DatabaseError{Op: "foreign keys", Table: table, Err: err}
	}
	for _, fk := range fks {
		n := len(out.ForeignKeys)
		if n == 0 || out.ForeignKeys[n-1].Name != fk.ConstraintName {
			out.ForeignKeys = append(out.ForeignKeys, connector.ForeignKey{Name: fk.ConstraintName, ForeignTable: fk.ForeignTable})
			n++
		}
		// One row per key position, so the column lists stay paired.
		last := &out.ForeignKeys[n-1]
		last.Columns = append(last.Columns, fk.ColumnName)
		last.ForeignColumns = append(last.ForeignColumns, fk.ForeignColumn)
	}

	var uniques []keyRow
	if err := c.db.SelectContext(ctx, &uniques, keyColumnsQuery, c.schemaName, table, "UNIQUE"); err != nil {
		return out, &connector.DatabaseError{Op: "unique constraints", Table: table, Err: err}
	}
	for _, u := range uniques {
		n := len(out.Uniques)
		if n == 0 || out.Uniques[n-1].Name != u.ConstraintName {
			out.Uniques = append(out.Uniques, connector.UniqueConstraint{Name: u.ConstraintName})
			n++
		}
		out.Uniques[n-1].Columns = append(out.Uniques[n-1].Columns, u.ColumnName)
	}
	return out, nil
}

// ColumnNames returns the columns of table in ordinal order.
func (c *PostgresConnector) ColumnNames(ctx context.Context, table string) ([]string, error) {
	var names []string
	if err := c.db.SelectContext(ctx, &names, columnNamesQuery, c.schemaName, table); err != nil {
		return nil, &connector.DatabaseError{Op: "column names", Table: table, Err: err}
	}
	return names, nil
}

// ColumnInfo describes a single column. Defaults drawing from a sequence
// are reported as auto increment with no default.
func (c *PostgresConnector) ColumnInfo(ctx context.Context, table, column string) (connector.ColumnInfo, error) {
	var row columnRow
	if err := c.db.GetContext(ctx, &row, columnInfoQuery, c.schemaName, table, column); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("column %q not found", column)
		}
		return connector.ColumnInfo{}, &connector.DatabaseError{Op: "column info", Table: table, Err: err}
	}

	info := connector.ColumnInfo{
		Name:       row.ColumnName,
		UDTName:    row.UDTName,
		DataType:   row.DataType,
		IsNullable: row.IsNullable == "YES",
		MaxLength:  intPtr(row.MaxLength),
	}
	if strings.EqualFold(row.UDTName, "numeric") {
		info.Precision = intPtr(row.Precision)
		info.Scale = intPtr(row.Scale)
	}
	if row.Default != nil {
		if strings.Contains(*row.Default, "nextval(") {
			info.IsAutoIncrement = true
		} else {
			d := StripCast(*row.Default)
			info.Default = &d
		}
	}
	return info, nil
}

var castSuffix = regexp.MustCompile(`^(.*?)::[A-Za-z_][A-Za-z0-9_ ]*(\(\d+(,\s*\d+)?\))?(\[\])?$`)

// StripCast removes the trailing type cast PostgreSQL adds to literal
// defaults, so 'draft'::character varying reads back as 'draft'.
func StripCast(expr string) string {
	for {
		m := castSuffix.FindStringSubmatch(expr)
		if m == nil {
			return expr
		}
		expr = m[1]
	}
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
