package transform_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/model/modeltest"
	"github.com/exosql/exosql/internal/transform"
)

func int64Ptr(v int64) *int64 { return &v }

func physical(t *testing.T, db *model.Database, table, column string) asql.AliasedElement {
	t.Helper()
	return asql.AliasedElement{Alias: column, Element: asql.Physical{Column: modeltest.Column(t, db, table, column)}}
}

func leaf(t *testing.T, db *model.Database, table, column string) model.PhysicalColumnPath {
	t.Helper()
	return model.LeafPath(modeltest.Column(t, db, table, column))
}

func TestCompileSelect_NestedJSON(t *testing.T) {
	db := modeltest.Concerts(t)
	venue, err := db.ManyToOne(modeltest.Column(t, db, "concerts", "venue_id"))
	require.NoError(t, err)
	artists, err := db.OneToMany(modeltest.Column(t, db, "concert_artists", "concert_id"))
	require.NoError(t, err)

	sel := asql.AbstractSelect{
		Table: modeltest.Table(t, db, "concerts"),
		Selection: asql.SelectionJSON{
			Cardinality: asql.Many,
			Elements: []asql.AliasedElement{
				physical(t, db, "concerts", "title"),
				{Alias: "venue", Element: asql.SubSelect{
					Relation: asql.ManyToOneRelation{ManyToOne: venue},
					Select: asql.AbstractSelect{
						Table:     modeltest.Table(t, db, "venues"),
						Selection: asql.SelectionJSON{Cardinality: asql.One, Elements: []asql.AliasedElement{physical(t, db, "venues", "name")}},
					},
				}},
				{Alias: "artists", Element: asql.SubSelect{
					Relation: asql.OneToManyRelation{OneToMany: artists},
					Select: asql.AbstractSelect{
						Table:     modeltest.Table(t, db, "concert_artists"),
						Selection: asql.SelectionJSON{Cardinality: asql.Many, Elements: []asql.AliasedElement{physical(t, db, "concert_artists", "rank")}},
						OrderBy:   asql.AbstractOrderBy{{Path: leaf(t, db, "concert_artists", "rank"), Ordering: asql.Desc}},
					},
				}},
			},
		},
		Predicate: asql.Eq{Left: leaf(t, db, "concerts", "published"), Right: model.LiteralPath{Value: true}},
		OrderBy:   asql.AbstractOrderBy{{Path: leaf(t, db, "concerts", "title"), Ordering: asql.Asc}},
		Limit:     int64Ptr(10),
	}

	sql, args, err := transform.New(db).Compile(sel)
	require.NoError(t, err)
	require.Equal(t,
		`SELECT COALESCE(json_agg(json_build_object('title', "t"."title", `+
			`'venue', (SELECT json_build_object('name', "t_2"."name") FROM (SELECT "t_2".* FROM "public"."venues" AS "t_2" WHERE "t"."venue_id" = "t_2"."id") AS "t_2"), `+
			`'artists', (SELECT COALESCE(json_agg(json_build_object('rank', "t_3"."rank")), '[]'::json) FROM (SELECT "t_3".* FROM "public"."concert_artists" AS "t_3" WHERE "t"."id" = "t_3"."concert_id" ORDER BY "t_3"."rank" DESC) AS "t_3"))), '[]'::json)::text `+
			`FROM (SELECT "t".* FROM "public"."concerts" AS "t" WHERE "t"."published" = $1 ORDER BY "t"."title" ASC LIMIT $2) AS "t"`,
		sql)
	require.Equal(t, []interface{}{true, int64(10)}, args)
}

func TestCompileSelect_CorrelationDirection(t *testing.T) {
	db := modeltest.Concerts(t)
	managerFK := modeltest.Column(t, db, "employees", "manager_id")
	manager, err := db.ManyToOne(managerFK)
	require.NoError(t, err)
	reports, err := db.OneToMany(managerFK)
	require.NoError(t, err)
	employees := modeltest.Table(t, db, "employees")
	name := []asql.AliasedElement{physical(t, db, "employees", "name")}

	tests := []struct {
		name     string
		relation asql.Relation
		want     string
	}{
		// parent.fk = child.pk
		{"many-to-one", asql.ManyToOneRelation{ManyToOne: manager}, `WHERE "t"."manager_id" = "t_2"."id"`},
		// parent.pk = child.fk
		{"one-to-many", asql.OneToManyRelation{OneToMany: reports}, `WHERE "t"."id" = "t_2"."manager_id"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := asql.AbstractSelect{
				Table: employees,
				Selection: asql.SelectionJSON{Cardinality: asql.One, Elements: []asql.AliasedElement{
					{Alias: "related", Element: asql.SubSelect{
						Relation: tt.relation,
						Select:   asql.AbstractSelect{Table: employees, Selection: asql.SelectionJSON{Cardinality: asql.Many, Elements: name}},
					}},
				}},
			}
			sql, _, err := transform.New(db).Compile(sel)
			require.NoError(t, err)
			require.Contains(t, sql, tt.want)
			require.Contains(t, sql, `FROM "public"."employees" AS "t_2"`)
		})
	}
}

func TestCompileSelect_Predicates(t *testing.T) {
	db := modeltest.Concerts(t)
	venue, _ := db.ManyToOne(modeltest.Column(t, db, "concerts", "venue_id"))
	artists, _ := db.OneToMany(modeltest.Column(t, db, "concert_artists", "concert_id"))
	title := leaf(t, db, "concerts", "title")
	id := leaf(t, db, "concerts", "id")

	tests := []struct {
		name      string
		predicate asql.AbstractPredicate
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "equality",
			predicate: asql.Eq{Left: title, Right: model.LiteralPath{Value: "Live"}},
			wantWhere: `"t"."title" = $1`,
			wantArgs:  []interface{}{"Live"},
		},
		{
			name:      "literal on the left flips the operator",
			predicate: asql.Lt{Left: model.LiteralPath{Value: 5}, Right: id},
			wantWhere: `"t"."id" > $1`,
			wantArgs:  []interface{}{5},
		},
		{
			name:      "null",
			predicate: asql.Eq{Left: leaf(t, db, "concerts", "venue_id"), Right: model.NullPath{}},
			wantWhere: `"t"."venue_id" IS NULL`,
		},
		{
			name:      "in",
			predicate: asql.In{Left: id, Right: model.LiteralPath{Value: []int{1, 2}}},
			wantWhere: `"t"."id" = ANY($1)`,
			wantArgs:  []interface{}{[]int{1, 2}},
		},
		{
			name:      "starts with escapes wildcards",
			predicate: asql.StringStartsWith{Left: title, Right: model.LiteralPath{Value: "50%_off"}},
			wantWhere: `"t"."title" LIKE $1`,
			wantArgs:  []interface{}{`50\%\_off%`},
		},
		{
			name:      "case insensitive like",
			predicate: asql.StringLike{Left: title, Right: model.LiteralPath{Value: "%live%"}},
			wantWhere: `"t"."title" ILIKE $1`,
			wantArgs:  []interface{}{"%live%"},
		},
		{
			name: "boolean composition",
			predicate: asql.Not{Inner: asql.Or{
				Left:  asql.Gte{Left: id, Right: model.LiteralPath{Value: 3}},
				Right: asql.Neq{Left: title, Right: model.NullPath{}},
			}},
			wantWhere: `NOT (("t"."id" >= $1 OR "t"."title" IS NOT NULL))`,
			wantArgs:  []interface{}{3},
		},
		{
			name: "many-to-one hop",
			predicate: asql.Eq{
				Left:  asql.ExtendPath(&model.PhysicalColumnPath{}, venue.Link()).Push(model.LeafLink(modeltest.Column(t, db, "venues", "name"))),
				Right: model.LiteralPath{Value: "Hall"},
			},
			wantWhere: `"t"."venue_id" IN (SELECT "t_2"."id" FROM "public"."venues" AS "t_2" WHERE "t_2"."name" = $1)`,
			wantArgs:  []interface{}{"Hall"},
		},
		{
			name: "one-to-many hop",
			predicate: asql.Eq{
				Left:  asql.ExtendPath(nil, artists.Link()).Push(model.LeafLink(modeltest.Column(t, db, "concert_artists", "rank"))),
				Right: model.LiteralPath{Value: 1},
			},
			wantWhere: `"t"."id" IN (SELECT "t_2"."concert_id" FROM "public"."concert_artists" AS "t_2" WHERE "t_2"."rank" = $1)`,
			wantArgs:  []interface{}{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := asql.AbstractSelect{
				Table:     modeltest.Table(t, db, "concerts"),
				Selection: asql.SelectionSeq{Columns: []asql.AliasedElement{physical(t, db, "concerts", "id")}},
				Predicate: tt.predicate,
			}
			sql, args, err := transform.New(db).Compile(sel)
			require.NoError(t, err)
			require.Equal(t, `SELECT "t"."id" AS "id" FROM "public"."concerts" AS "t" WHERE `+tt.wantWhere, sql)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompileSelect_OrderByRelation(t *testing.T) {
	db := modeltest.Concerts(t)
	venue, _ := db.ManyToOne(modeltest.Column(t, db, "concerts", "venue_id"))
	artists, _ := db.OneToMany(modeltest.Column(t, db, "concert_artists", "concert_id"))
	concerts := modeltest.Table(t, db, "concerts")
	seq := asql.SelectionSeq{Columns: []asql.AliasedElement{physical(t, db, "concerts", "id")}}

	byVenue := asql.ExtendPath(nil, venue.Link()).Push(model.LeafLink(modeltest.Column(t, db, "venues", "name")))
	sql, _, err := transform.New(db).Compile(asql.AbstractSelect{
		Table:     concerts,
		Selection: seq,
		OrderBy: asql.AbstractOrderBy{
			{Path: byVenue, Ordering: asql.Desc},
			{Path: leaf(t, db, "concerts", "id"), Ordering: asql.Asc},
		},
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT "t"."id" AS "id" FROM "public"."concerts" AS "t" ORDER BY `+
		`(SELECT "t_2"."name" FROM "public"."venues" AS "t_2" WHERE "t_2"."id" = "t"."venue_id") DESC, "t"."id" ASC`, sql)

	byArtist := asql.ExtendPath(nil, artists.Link()).Push(model.LeafLink(modeltest.Column(t, db, "concert_artists", "rank")))
	_, _, err = transform.New(db).Compile(asql.AbstractSelect{
		Table:     concerts,
		Selection: seq,
		OrderBy:   asql.AbstractOrderBy{{Path: byArtist}},
	})
	require.ErrorContains(t, err, "one-to-many")
}

func TestCompileSelect_Errors(t *testing.T) {
	db := modeltest.Concerts(t)
	concerts := modeltest.Table(t, db, "concerts")
	seq := asql.SelectionSeq{Columns: []asql.AliasedElement{physical(t, db, "concerts", "id")}}

	tests := []struct {
		name    string
		sel     asql.AbstractSelect
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing selection",
			sel:     asql.AbstractSelect{Table: concerts},
			wantMsg: "has no selection",
		},
		{
			name:    "column of another table",
			sel:     asql.AbstractSelect{Table: concerts, Selection: asql.SelectionSeq{Columns: []asql.AliasedElement{physical(t, db, "venues", "name")}}},
			wantMsg: "does not belong to table concerts",
		},
		{
			name:    "empty order path",
			sel:     asql.AbstractSelect{Table: concerts, Selection: seq, OrderBy: asql.AbstractOrderBy{{}}},
			wantErr: transform.ErrNotPhysicalPath,
		},
		{
			name:    "in without literal list",
			sel:     asql.AbstractSelect{Table: concerts, Selection: seq, Predicate: asql.In{Left: leaf(t, db, "concerts", "id"), Right: leaf(t, db, "concerts", "id")}},
			wantMsg: "IN requires a literal list",
		},
		{
			name: "bad function name",
			sel: asql.AbstractSelect{Table: concerts, Selection: asql.SelectionSeq{Columns: []asql.AliasedElement{
				{Alias: "x", Element: asql.Function{Name: "count(*); --", Column: modeltest.Column(t, db, "concerts", "id")}},
			}}},
			wantMsg: "invalid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transform.New(db).CompileSelect(tt.sel)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				require.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestCompileSelect_FunctionAndConstant(t *testing.T) {
	db := modeltest.Concerts(t)
	sql, _, err := transform.New(db).Compile(asql.AbstractSelect{
		Table: modeltest.Table(t, db, "venues"),
		Selection: asql.SelectionJSON{Cardinality: asql.One, Elements: []asql.AliasedElement{
			{Alias: "__typename", Element: asql.Constant{Value: "Venue"}},
			{Alias: "upper", Element: asql.Function{Name: "UPPER", Column: modeltest.Column(t, db, "venues", "name")}},
			{Alias: "meta", Element: asql.Object{Elements: []asql.AliasedElement{physical(t, db, "venues", "id")}}},
		}},
		Offset: int64Ptr(5),
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT json_build_object('__typename', 'Venue', 'upper', upper("t"."name"), 'meta', json_build_object('id', "t"."id"))::text `+
		`FROM (SELECT "t".* FROM "public"."venues" AS "t" OFFSET $1) AS "t"`, sql)
}
