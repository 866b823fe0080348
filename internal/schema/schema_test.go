package schema_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exosql/exosql/internal/config"
	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/model/modeltest"
	"github.com/exosql/exosql/internal/schema"
)

// people builds a single table "people" from column definitions.
func people(t *testing.T, cols ...model.ColumnDef) *model.Database {
	t.Helper()
	b := model.NewBuilder("")
	tid := b.AddTable("people")
	for _, c := range cols {
		b.AddColumn(tid, c)
	}
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

var (
	idCol   = model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true}
	nameCol = model.ColumnDef{Name: "name", Type: model.StringType{}}
	ageCol  = model.ColumnDef{Name: "age", Type: model.IntType{Bits: 32}}
)

func withUnique(c model.ColumnDef, names ...string) model.ColumnDef {
	c.UniqueConstraints = names
	return c
}

func statements(ops []schema.Op) []string {
	var out []string
	for _, op := range ops {
		s := op.Statement()
		out = append(out, s.Pre...)
		out = append(out, s.Statement)
		out = append(out, s.Post...)
	}
	return out
}

func TestDiff_IdenticalIsEmpty(t *testing.T) {
	require.Empty(t, schema.Diff(modeltest.Concerts(t), modeltest.Concerts(t)))

	withUUID := people(t, idCol, model.ColumnDef{Name: "token", Type: model.UUIDType{}, Default: strPtr("gen_random_uuid()")})
	require.Empty(t, schema.Diff(withUUID, withUUID))
}

func TestDiff_AddColumn(t *testing.T) {
	existing := people(t, idCol, nameCol)
	target := people(t, idCol, nameCol, ageCol)

	ops := schema.Diff(existing, target)
	require.Len(t, ops, 1)
	create, ok := ops[0].(schema.CreateColumn)
	require.True(t, ok, "got %T", ops[0])
	require.Equal(t, "age", target.Column(create.Column).Name)
	require.Equal(t, `ALTER TABLE "public"."people" ADD "age" INT NOT NULL;`, create.Statement().Statement)
	require.False(t, create.Destructive())
}

func TestDiff_ReplaceUniqueConstraint(t *testing.T) {
	existing := people(t, idCol, withUnique(nameCol, "person_identity"))
	target := people(t, idCol, withUnique(nameCol, "person_identity"), withUnique(ageCol, "person_identity"))

	ops := schema.Diff(existing, target)
	require.Len(t, ops, 3)
	require.IsType(t, schema.CreateColumn{}, ops[0])
	remove, ok := ops[1].(schema.RemoveUniqueConstraint)
	require.True(t, ok, "got %T", ops[1])
	require.Equal(t, "person_identity", remove.Name)
	create, ok := ops[2].(schema.CreateUniqueConstraint)
	require.True(t, ok, "got %T", ops[2])
	require.Equal(t, []string{"age", "name"}, create.Columns)

	require.Equal(t, []string{
		`ALTER TABLE "public"."people" ADD "age" INT NOT NULL;`,
		`ALTER TABLE "public"."people" DROP CONSTRAINT IF EXISTS "person_identity";`,
		`ALTER TABLE "public"."people" ADD CONSTRAINT "person_identity" UNIQUE ("age", "name");`,
	}, statements(ops))
}

func TestDiff_Constraints(t *testing.T) {
	tests := []struct {
		name     string
		existing []model.ColumnDef
		target   []model.ColumnDef
		want     []string
	}{
		{
			name:     "new constraint",
			existing: []model.ColumnDef{idCol, nameCol},
			target:   []model.ColumnDef{idCol, withUnique(nameCol, "uniq_name")},
			want:     []string{`ALTER TABLE "public"."people" ADD CONSTRAINT "uniq_name" UNIQUE ("name");`},
		},
		{
			name:     "dropped constraint",
			existing: []model.ColumnDef{idCol, withUnique(nameCol, "uniq_name")},
			target:   []model.ColumnDef{idCol, nameCol},
			want:     []string{`ALTER TABLE "public"."people" DROP CONSTRAINT IF EXISTS "uniq_name";`},
		},
		{
			name:     "constraint on dropped column",
			existing: []model.ColumnDef{idCol, withUnique(nameCol, "uniq_name")},
			target:   []model.ColumnDef{idCol},
			want:     []string{`ALTER TABLE "public"."people" DROP COLUMN "name";`},
		},
		{
			name:     "constraint on recreated column",
			existing: []model.ColumnDef{idCol, withUnique(nameCol, "uniq_name")},
			target:   []model.ColumnDef{idCol, withUnique(model.ColumnDef{Name: "name", Type: model.StringType{MaxLength: intPtr(80)}}, "uniq_name")},
			want: []string{
				`ALTER TABLE "public"."people" DROP COLUMN "name";`,
				`ALTER TABLE "public"."people" ADD "name" VARCHAR(80) NOT NULL;`,
				`ALTER TABLE "public"."people" ADD CONSTRAINT "uniq_name" UNIQUE ("name");`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := schema.Diff(people(t, tt.existing...), people(t, tt.target...))
			require.Equal(t, tt.want, statements(ops))
		})
	}
}

func TestDiff_DroppedColumnRestoresConstraint(t *testing.T) {
	a := model.ColumnDef{Name: "a", Type: model.IntType{Bits: 32}}
	b := model.ColumnDef{Name: "b", Type: model.IntType{Bits: 32}}
	existing := people(t, idCol, withUnique(a, "u"), withUnique(b, "u"))
	target := people(t, idCol, withUnique(a, "u"))

	ops := schema.Diff(existing, target)
	require.Equal(t, []string{
		`ALTER TABLE "public"."people" DROP COLUMN "b";`,
		`ALTER TABLE "public"."people" ADD CONSTRAINT "u" UNIQUE ("a");`,
	}, statements(ops))

	// The constraint only needs restoring once the drop has run.
	m := schema.FromOps(ops)
	require.Empty(t, m.Executable(false))
	require.Len(t, m.Executable(true), 2)

	// A constraint that loses a column and is not wanted any more goes
	// away with the column.
	require.Equal(t, []string{`ALTER TABLE "public"."people" DROP COLUMN "b";`},
		statements(schema.Diff(existing, people(t, idCol, a))))
}

func TestMigration_RecreatedColumnIsOneUnit(t *testing.T) {
	tests := []struct {
		name     string
		existing []model.ColumnDef
		target   []model.ColumnDef
		want     []string
	}{
		{
			name:     "type change",
			existing: []model.ColumnDef{idCol, ageCol},
			target:   []model.ColumnDef{idCol, {Name: "age", Type: model.IntType{Bits: 64}}},
			want: []string{
				`ALTER TABLE "public"."people" DROP COLUMN "age";`,
				`ALTER TABLE "public"."people" ADD "age" BIGINT NOT NULL;`,
			},
		},
		{
			name:     "type change with constraint",
			existing: []model.ColumnDef{idCol, withUnique(nameCol, "uniq_name")},
			target:   []model.ColumnDef{idCol, withUnique(model.ColumnDef{Name: "name", Type: model.StringType{MaxLength: intPtr(80)}}, "uniq_name")},
			want: []string{
				`ALTER TABLE "public"."people" DROP COLUMN "name";`,
				`ALTER TABLE "public"."people" ADD "name" VARCHAR(80) NOT NULL;`,
				`ALTER TABLE "public"."people" ADD CONSTRAINT "uniq_name" UNIQUE ("name");`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := schema.NewMigration(people(t, tt.existing...), people(t, tt.target...))
			require.True(t, m.HasDestructiveChanges())
			require.Empty(t, m.Executable(false))
			require.Equal(t, tt.want, m.Executable(true))

			var buf bytes.Buffer
			require.NoError(t, m.Write(&buf, false))
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if line != "" {
					require.True(t, strings.HasPrefix(line, "-- "), "line %q is not commented out", line)
				}
			}
		})
	}
}

func TestDiff_ColumnChanges(t *testing.T) {
	tests := []struct {
		name     string
		existing model.ColumnDef
		target   model.ColumnDef
		want     []string
	}{
		{
			name:     "set not null",
			existing: model.ColumnDef{Name: "name", Type: model.StringType{}, IsNullable: true},
			target:   nameCol,
			want:     []string{`ALTER TABLE "public"."people" ALTER COLUMN "name" SET NOT NULL;`},
		},
		{
			name:     "drop not null",
			existing: nameCol,
			target:   model.ColumnDef{Name: "name", Type: model.StringType{}, IsNullable: true},
			want:     []string{`ALTER TABLE "public"."people" ALTER COLUMN "name" DROP NOT NULL;`},
		},
		{
			name:     "set default",
			existing: nameCol,
			target:   model.ColumnDef{Name: "name", Type: model.StringType{}, Default: strPtr("'anonymous'")},
			want:     []string{`ALTER TABLE "public"."people" ALTER COLUMN "name" SET DEFAULT 'anonymous';`},
		},
		{
			name:     "change default",
			existing: model.ColumnDef{Name: "name", Type: model.StringType{}, Default: strPtr("'a'")},
			target:   model.ColumnDef{Name: "name", Type: model.StringType{}, Default: strPtr("'b'")},
			want:     []string{`ALTER TABLE "public"."people" ALTER COLUMN "name" SET DEFAULT 'b';`},
		},
		{
			name:     "drop default",
			existing: model.ColumnDef{Name: "name", Type: model.StringType{}, Default: strPtr("'a'")},
			target:   nameCol,
			want:     []string{`ALTER TABLE "public"."people" ALTER COLUMN "name" DROP DEFAULT;`},
		},
		{
			name:     "type change recreates",
			existing: nameCol,
			target:   model.ColumnDef{Name: "name", Type: model.JSONType{}, IsNullable: true},
			want: []string{
				`ALTER TABLE "public"."people" DROP COLUMN "name";`,
				`ALTER TABLE "public"."people" ADD "name" JSONB;`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := schema.Diff(people(t, idCol, tt.existing), people(t, idCol, tt.target))
			require.Equal(t, tt.want, statements(ops))
		})
	}
}

func TestDiff_Extensions(t *testing.T) {
	plain := people(t, idCol)
	withUUID := people(t, idCol, model.ColumnDef{Name: "token", Type: model.UUIDType{}})

	ops := schema.Diff(plain, withUUID)
	require.Equal(t, schema.CreateExtension{Name: "pgcrypto"}, ops[0])
	require.IsType(t, schema.CreateColumn{}, ops[1])

	ops = schema.Diff(withUUID, plain)
	require.IsType(t, schema.DeleteColumn{}, ops[0])
	require.Equal(t, schema.RemoveExtension{Name: "pgcrypto"}, ops[len(ops)-1])
	require.True(t, ops[len(ops)-1].Destructive())
}

func TestCreationSQL(t *testing.T) {
	b := model.NewBuilder("")
	concerts := b.AddTable("concerts")
	venues := b.AddTable("venues")
	b.AddColumn(concerts, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 64}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(concerts, model.ColumnDef{Name: "title", Type: model.StringType{MaxLength: intPtr(120)}, UniqueConstraints: []string{"title_venue"}})
	b.AddColumn(concerts, model.ColumnDef{Name: "venue_id", References: &model.Reference{Table: venues}, UniqueConstraints: []string{"title_venue"}})
	b.AddColumn(concerts, model.ColumnDef{Name: "ticket", Type: model.UUIDType{}, IsNullable: true, Default: strPtr("gen_random_uuid()")})
	b.AddColumn(venues, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(venues, model.ColumnDef{Name: "name", Type: model.StringType{}})
	db, err := b.Build()
	require.NoError(t, err)

	want := `CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE "public"."concerts" (
	"id" BIGSERIAL PRIMARY KEY,
	"title" VARCHAR(120) NOT NULL,
	"venue_id" INT NOT NULL,
	"ticket" UUID DEFAULT gen_random_uuid()
);

CREATE TABLE "public"."venues" (
	"id" SERIAL PRIMARY KEY,
	"name" TEXT NOT NULL
);

ALTER TABLE "public"."concerts" ADD CONSTRAINT "concerts_venue_id_fk" FOREIGN KEY ("venue_id") REFERENCES "public"."venues" ("id");

ALTER TABLE "public"."concerts" ADD CONSTRAINT "title_venue" UNIQUE ("title", "venue_id");
`
	require.Equal(t, want, schema.CreationSQL(db))
}

func TestMigration_ForeignKeysFollowTables(t *testing.T) {
	m := schema.NewMigration(model.Empty(""), modeltest.Concerts(t))

	lastCreate, firstFK := -1, len(m.Statements)
	for i, s := range m.Statements {
		if strings.HasPrefix(s.SQL, "CREATE TABLE") {
			lastCreate = i
		}
		if strings.Contains(s.SQL, "FOREIGN KEY") && i < firstFK {
			firstFK = i
		}
	}
	require.Less(t, lastCreate, firstFK)
	require.False(t, m.HasDestructiveChanges())
}

func TestMigration_DeletionIsCommentedOut(t *testing.T) {
	m := schema.NewMigration(modeltest.Concerts(t), model.Empty(""))
	require.True(t, m.HasDestructiveChanges())
	require.Empty(t, m.Executable(false))
	require.Equal(t, `ALTER TABLE "public"."venues" DROP CONSTRAINT "venue_name";`, m.Statements[0].SQL)
	require.Equal(t, `DROP TABLE "public"."concerts" CASCADE;`, m.Statements[1].SQL)

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, false))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line != "" {
			require.True(t, strings.HasPrefix(line, "-- "), "line %q is not commented out", line)
		}
	}

	buf.Reset()
	require.NoError(t, m.Write(&buf, true))
	require.Contains(t, buf.String(), "\nDROP TABLE \"public\".\"employees\" CASCADE;\n")
	require.Len(t, m.Executable(true), 6)
}

func TestMigration_MixedScript(t *testing.T) {
	existing := people(t, idCol, nameCol)
	target := people(t, idCol, ageCol)

	m := schema.NewMigration(existing, target)
	require.Equal(t, []string{`ALTER TABLE "public"."people" ADD "age" INT NOT NULL;`}, m.Executable(false))

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, false))
	require.Equal(t, `-- ALTER TABLE "public"."people" DROP COLUMN "name";

ALTER TABLE "public"."people" ADD "age" INT NOT NULL;
`, buf.String())
}

func TestVerify(t *testing.T) {
	require.NoError(t, schema.Verify(modeltest.Concerts(t), modeltest.Concerts(t)))

	err := schema.Verify(people(t, idCol), people(t, idCol, nameCol))
	require.True(t, errors.Is(err, schema.ErrSchemaMismatch))
	require.Contains(t, err.Error(), `ADD "name" TEXT NOT NULL`)
}

// fakeIntrospector reports a schema as PostgreSQL would after the DDL for
// db was applied.
type fakeIntrospector struct {
	db   *model.Database
	fail string
	// primaryKeys replaces the primary key reported for a table.
	primaryKeys map[string][]string

	mu    sync.Mutex
	calls []string
}

func (f *fakeIntrospector) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeIntrospector) TableNames(_ context.Context) ([]string, error) {
	var names []string
	for _, tid := range f.db.TableIDs() {
		names = append(names, f.db.Table(tid).Name)
	}
	return names, nil
}

func (f *fakeIntrospector) Constraints(_ context.Context, table string) (connector.Constraints, error) {
	f.record("constraints " + table)
	if table == f.fail {
		return connector.Constraints{}, &connector.DatabaseError{Op: "primary key", Table: table, Err: errors.New("permission denied")}
	}
	tid, _ := f.db.TableByName(table)
	var out connector.Constraints
	for _, cid := range f.db.ColumnIDs(tid) {
		col := f.db.Column(cid)
		if col.IsPK {
			out.PrimaryKey = append(out.PrimaryKey, col.Name)
		}
		if ref, ok := col.Type.(model.ColumnReference); ok {
			out.ForeignKeys = append(out.ForeignKeys, connector.ForeignKey{
				Name:           table + "_" + col.Name + "_fk",
				Columns:        []string{col.Name},
				ForeignTable:   f.db.Table(ref.Column.Table).Name,
				ForeignColumns: []string{f.db.Column(ref.Column).Name},
			})
		}
	}
	if pk, ok := f.primaryKeys[table]; ok {
		out.PrimaryKey = pk
	}
	uniques := f.db.Table(tid).NamedUniqueConstraints()
	for name, cols := range uniques {
		out.Uniques = append(out.Uniques, connector.UniqueConstraint{Name: name, Columns: cols})
	}
	return out, nil
}

func (f *fakeIntrospector) ColumnNames(_ context.Context, table string) ([]string, error) {
	tid, _ := f.db.TableByName(table)
	var names []string
	for _, cid := range f.db.ColumnIDs(tid) {
		names = append(names, f.db.Column(cid).Name)
	}
	return names, nil
}

func (f *fakeIntrospector) ColumnInfo(_ context.Context, table, column string) (connector.ColumnInfo, error) {
	f.record("column " + table)
	tid, _ := f.db.TableByName(table)
	cid, ok := f.db.ColumnByName(tid, column)
	if !ok {
		return connector.ColumnInfo{}, fmt.Errorf("no column %s", column)
	}
	col := f.db.Column(cid)
	typ := col.Type
	if ref, ok := typ.(model.ColumnReference); ok {
		typ = ref.PKType
	}
	return connector.ColumnInfo{
		Name:            col.Name,
		UDTName:         strings.ToLower(model.TypeSQL(typ, false)),
		IsNullable:      col.IsNullable,
		IsAutoIncrement: col.IsAutoIncrement,
		Default:         col.Default,
	}, nil
}

func TestIntrospect_RoundTrip(t *testing.T) {
	target := modeltest.Concerts(t)
	in := &fakeIntrospector{db: target}

	got, err := schema.Introspect(context.Background(), in, "public", nil)
	require.NoError(t, err)
	require.Empty(t, got.Issues)
	require.Empty(t, schema.Diff(got.Value, target))

	// Table order follows the introspector, not completion order.
	var names []string
	for _, tid := range got.Value.TableIDs() {
		names = append(names, got.Value.Table(tid).Name)
	}
	require.Equal(t, []string{"concerts", "venues", "artists", "concert_artists", "employees"}, names)

	// Within a table constraints are read before any column.
	seenColumns := map[string]bool{}
	for _, call := range in.calls {
		kind, table, _ := strings.Cut(call, " ")
		if kind == "column" {
			seenColumns[table] = true
		} else {
			require.False(t, seenColumns[table], "constraints of %s read after its columns", table)
		}
	}
}

func TestIntrospect_Failure(t *testing.T) {
	in := &fakeIntrospector{db: modeltest.Concerts(t), fail: "artists"}

	got, err := schema.Introspect(context.Background(), in, "public", nil)
	var dbErr *connector.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	require.Equal(t, "artists", dbErr.Table)
	require.Nil(t, got.Value)
}

func TestIntrospect_Issues(t *testing.T) {
	b := model.NewBuilder("")
	logs := b.AddTable("logs")
	b.AddColumn(logs, model.ColumnDef{Name: "body", Type: model.StringType{}})
	db, err := b.Build()
	require.NoError(t, err)

	got, err := schema.Introspect(context.Background(), &fakeIntrospector{db: db}, "public", nil)
	require.NoError(t, err)
	require.Equal(t, []schema.Issue{{Severity: schema.Warning, Message: `table "logs" has no primary key`}}, got.Issues)
}

func TestIntrospect_CompositePrimaryKey(t *testing.T) {
	b := model.NewBuilder("")
	slots := b.AddTable("slots")
	b.AddColumn(slots, model.ColumnDef{Name: "stage", Type: model.IntType{Bits: 32}})
	b.AddColumn(slots, model.ColumnDef{Name: "starts_at", Type: model.TimestampType{}})
	db, err := b.Build()
	require.NoError(t, err)

	in := &fakeIntrospector{db: db, primaryKeys: map[string][]string{"slots": {"stage", "starts_at"}}}
	got, err := schema.Introspect(context.Background(), in, "public", nil)
	require.NoError(t, err)
	require.Equal(t, []schema.Issue{{Severity: schema.Warning,
		Message: `composite primary key on "slots" is not supported; its columns are imported as plain columns`}}, got.Issues)

	tid, _ := got.Value.TableByName("slots")
	_, hasPK := got.Value.PKColumn(tid)
	require.False(t, hasPK)
	require.NotContains(t, schema.CreationSQL(got.Value), "PRIMARY KEY")
}

func TestImportModel(t *testing.T) {
	db := modeltest.Concerts(t)

	got, err := schema.ImportModel(db)
	require.NoError(t, err)
	require.Contains(t, got.Value, "model: ConcertArtist")
	require.Contains(t, got.Issues, schema.Issue{Severity: schema.Hint, Message: `table "concerts" is plural; its model is named "Concert"`})
	require.Contains(t, got.Issues, schema.Issue{Severity: schema.Hint,
		Message: `consider adding a field to "Venue" of type [Concert] to create a one-to-many relationship`})
	require.Equal(t, "hint: "+got.Issues[0].Message, got.Issues[0].String())

	again, err := config.ParseModel([]byte(got.Value))
	require.NoError(t, err)
	require.Empty(t, schema.Diff(again, db))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
