package resolver_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exosql/exosql/internal/asql"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/model/modeltest"
	"github.com/exosql/exosql/internal/reqctx"
	"github.com/exosql/exosql/internal/resolver"
	"github.com/exosql/exosql/internal/transform"
	"github.com/exosql/exosql/internal/value"
)

func leafLink(t *testing.T, db *model.Database, table, column string) *model.ColumnPathLink {
	t.Helper()
	l := model.LeafLink(modeltest.Column(t, db, table, column))
	return &l
}

func venueLink(t *testing.T, db *model.Database) *model.ColumnPathLink {
	t.Helper()
	m2o, err := db.ManyToOne(modeltest.Column(t, db, "concerts", "venue_id"))
	require.NoError(t, err)
	l := m2o.Link()
	return &l
}

// concertOrdering mirrors:
//
//	input ConcertOrdering { id: Ordering, title: Ordering, venue: VenueOrdering }
//	input VenueOrdering { name: Ordering }
func concertOrdering(t *testing.T, db *model.Database) *resolver.OrderByParameter {
	primitive := &resolver.OrderByParameterType{Name: "Ordering", Primitive: true}
	venue := &resolver.OrderByParameterType{Name: "VenueOrdering", Parameters: []resolver.OrderByParameter{
		{Name: "name", Type: primitive, Link: leafLink(t, db, "venues", "name")},
	}}
	concert := &resolver.OrderByParameterType{Name: "ConcertOrdering", Parameters: []resolver.OrderByParameter{
		{Name: "id", Type: primitive, Link: leafLink(t, db, "concerts", "id")},
		{Name: "title", Type: primitive, Link: leafLink(t, db, "concerts", "title")},
		{Name: "venue", Type: venue, Link: venueLink(t, db)},
	}}
	return &resolver.OrderByParameter{Name: "orderBy", Type: concert}
}

// describe renders an order-by as "concerts.venue_id>venues.name DESC, ...".
func describe(db *model.Database, ob asql.AbstractOrderBy) string {
	parts := make([]string, len(ob))
	for i, el := range ob {
		hops := make([]string, 0, el.Path.Len())
		for _, l := range el.Path.Links() {
			hops = append(hops, db.QualifiedName(l.SelfColumn))
		}
		parts[i] = strings.Join(hops, ">") + " " + el.Ordering.String()
	}
	return strings.Join(parts, ", ")
}

func TestMapOrderBy(t *testing.T) {
	db := modeltest.Concerts(t)
	param := concertOrdering(t, db)

	tests := []struct {
		name string
		arg  value.Val
		want string
	}{
		{
			name: "fields keep declaration order",
			arg:  value.ObjectVal(value.F("title", value.EnumVal("ASC")), value.F("id", value.EnumVal("DESC"))),
			want: "concerts.title ASC, concerts.id DESC",
		},
		{
			name: "reverse declaration order",
			arg:  value.ObjectVal(value.F("id", value.EnumVal("DESC")), value.F("title", value.EnumVal("ASC"))),
			want: "concerts.id DESC, concerts.title ASC",
		},
		{
			name: "list elements concatenate in list order",
			arg: value.ListVal(
				value.ObjectVal(value.F("id", value.EnumVal("ASC"))),
				value.ObjectVal(value.F("title", value.EnumVal("DESC"))),
			),
			want: "concerts.id ASC, concerts.title DESC",
		},
		{
			name: "nested composite extends the path",
			arg: value.ObjectVal(
				value.F("venue", value.ObjectVal(value.F("name", value.EnumVal("DESC")))),
				value.F("id", value.EnumVal("ASC")),
			),
			want: "concerts.venue_id>venues.name DESC, concerts.id ASC",
		},
		{
			name: "string tokens from variables",
			arg:  value.ObjectVal(value.F("title", value.StringVal("DESC"))),
			want: "concerts.title DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Sibling evaluation is concurrent; repeat to catch ordering that
			// depends on completion order.
			for i := 0; i < 20; i++ {
				ob, err := resolver.MapOrderBy(context.Background(), param, tt.arg, nil)
				require.NoError(t, err)
				require.Equal(t, tt.want, describe(db, ob))
			}
		})
	}
}

func TestMapOrderBy_PathsAreValid(t *testing.T) {
	db := modeltest.Concerts(t)
	arg := value.ObjectVal(value.F("venue", value.ObjectVal(value.F("name", value.EnumVal("ASC")))))

	ob, err := resolver.MapOrderBy(context.Background(), concertOrdering(t, db), arg, nil)
	require.NoError(t, err)
	require.Len(t, ob, 1)
	_, err = model.NewPhysicalColumnPath(db, ob[0].Path.Links()...)
	require.NoError(t, err)
}

func TestMapOrderBy_Errors(t *testing.T) {
	db := modeltest.Concerts(t)
	param := concertOrdering(t, db)

	tests := []struct {
		name       string
		arg        value.Val
		wantReason string
		wantShape  bool
	}{
		{"lowercase token", value.ObjectVal(value.F("title", value.StringVal("desc"))), `Cannot match "desc" as valid ordering`, false},
		{"unknown enum", value.ObjectVal(value.F("title", value.EnumVal("ASCENDING"))), "Cannot match ASCENDING as valid ordering", false},
		{"number", value.ObjectVal(value.F("title", value.IntVal(1))), "Cannot match 1 as valid ordering", false},
		{"unknown field", value.ObjectVal(value.F("rating", value.EnumVal("ASC"))), "Invalid order by parameter", false},
		{"field on primitive", value.ObjectVal(value.F("title", value.ObjectVal(value.F("x", value.EnumVal("ASC"))))), "Invalid primitive order by parameter", false},
		{"scalar argument", value.StringVal("title"), "", true},
		{"scalar inside list", value.ListVal(value.IntVal(3)), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.MapOrderBy(context.Background(), param, tt.arg, nil)
			require.Error(t, err)
			if tt.wantShape {
				require.True(t, errors.Is(err, resolver.ErrUnsupportedShape), "got %v", err)
				return
			}
			var verr *resolver.ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			require.Equal(t, tt.wantReason, verr.Reason)
		})
	}
}

func TestValidationErrorNamesParameter(t *testing.T) {
	db := modeltest.Concerts(t)
	_, err := resolver.MapOrderBy(context.Background(), concertOrdering(t, db),
		value.ObjectVal(value.F("rating", value.EnumVal("ASC"))), nil)
	require.EqualError(t, err, "Invalid order by parameter: rating")
}

// concertFilter mirrors:
//
//	input ConcertFilter { id: IntFilter, title: StringFilter, venue: VenueFilter, and, or, not }
//	input VenueFilter { name: StringFilter }
func concertFilter(t *testing.T, db *model.Database) *resolver.PredicateParameter {
	ops := &resolver.PredicateParameterType{Name: "Filter", Kind: resolver.Operator}
	venue := &resolver.PredicateParameterType{Name: "VenueFilter", Kind: resolver.Composite, Parameters: []resolver.PredicateParameter{
		{Name: "name", Type: ops, Link: leafLink(t, db, "venues", "name")},
	}}
	concert := &resolver.PredicateParameterType{Name: "ConcertFilter", Kind: resolver.Composite, Parameters: []resolver.PredicateParameter{
		{Name: "id", Type: ops, Link: leafLink(t, db, "concerts", "id")},
		{Name: "title", Type: ops, Link: leafLink(t, db, "concerts", "title")},
		{Name: "venue", Type: venue, Link: venueLink(t, db)},
	}}
	return &resolver.PredicateParameter{Name: "where", Type: concert}
}

func TestMapPredicate_CompilesToSQL(t *testing.T) {
	db := modeltest.Concerts(t)
	arg := value.ObjectVal(
		value.F("title", value.ObjectVal(value.F("eq", value.StringVal("Live")))),
		value.F("venue", value.ObjectVal(value.F("name", value.ObjectVal(value.F("startsWith", value.StringVal("Ha")))))),
		value.F("or", value.ListVal(
			value.ObjectVal(value.F("id", value.ObjectVal(value.F("eq", value.IntVal(1))))),
			value.ObjectVal(value.F("id", value.ObjectVal(value.F("eq", value.IntVal(2))))),
		)),
	)

	pred, err := resolver.MapPredicate(context.Background(), concertFilter(t, db), arg, nil)
	require.NoError(t, err)

	sql, args, err := transform.New(db).Compile(asql.AbstractSelect{
		Table:     modeltest.Table(t, db, "concerts"),
		Selection: asql.SelectionSeq{Columns: []asql.AliasedElement{{Alias: "id", Element: asql.Physical{Column: modeltest.Column(t, db, "concerts", "id")}}}},
		Predicate: pred,
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT "t"."id" AS "id" FROM "public"."concerts" AS "t" WHERE `+
		`(("t"."title" = $1 AND "t"."venue_id" IN (SELECT "t_2"."id" FROM "public"."venues" AS "t_2" WHERE "t_2"."name" LIKE $2)) `+
		`AND ("t"."id" = $3 OR "t"."id" = $4))`, sql)
	require.Equal(t, []interface{}{"Live", "Ha%", int64(1), int64(2)}, args)
}

func TestMapPredicate_Shapes(t *testing.T) {
	db := modeltest.Concerts(t)
	param := concertFilter(t, db)

	pred, err := resolver.MapPredicate(context.Background(), param, value.NullVal(), nil)
	require.NoError(t, err)
	require.Equal(t, asql.True{}, pred)

	pred, err = resolver.MapPredicate(context.Background(), param,
		value.ObjectVal(value.F("id", value.ObjectVal(value.F("in", value.ListVal(value.IntVal(1), value.IntVal(2)))))), nil)
	require.NoError(t, err)
	in, ok := pred.(asql.In)
	require.True(t, ok, "got %T", pred)
	require.Equal(t, model.LiteralPath{Value: []int64{1, 2}}, in.Right)

	pred, err = resolver.MapPredicate(context.Background(), param,
		value.ObjectVal(value.F("not", value.ObjectVal(value.F("title", value.ObjectVal(value.F("eq", value.NullVal())))))), nil)
	require.NoError(t, err)
	not, ok := pred.(asql.Not)
	require.True(t, ok, "got %T", pred)
	require.Equal(t, model.NullPath{}, not.Inner.(asql.Eq).Right)

	_, err = resolver.MapPredicate(context.Background(), param, value.ObjectVal(value.F("rating", value.IntVal(1))), nil)
	var verr *resolver.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "rating", verr.Param)

	_, err = resolver.MapPredicate(context.Background(), param,
		value.ObjectVal(value.F("id", value.ObjectVal(value.F("between", value.IntVal(1))))), nil)
	require.ErrorContains(t, err, "Invalid predicate operator")

	_, err = resolver.MapPredicate(context.Background(), param, value.ListVal(), nil)
	require.True(t, errors.Is(err, resolver.ErrUnsupportedShape))
}

func TestContextPredicate(t *testing.T) {
	db := modeltest.Concerts(t)
	path := model.LeafPath(modeltest.Column(t, db, "concerts", "title"))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Title", "Live")
	rc := reqctx.New(r, reqctx.HeaderProvider{})

	pred, err := resolver.ContextPredicate(context.Background(), rc, path, "header", "X-Title")
	require.NoError(t, err)
	require.Equal(t, asql.Eq{Left: path, Right: model.LiteralPath{Value: "Live"}}, pred)

	pred, err = resolver.ContextPredicate(context.Background(), rc, path, "header", "X-Other")
	require.NoError(t, err)
	require.Equal(t, asql.False{}, pred)

	_, err = resolver.ContextPredicate(context.Background(), rc, path, "jwt", "sub")
	require.True(t, errors.Is(err, reqctx.ErrUnknownAnnotation))

	cv, err := resolver.ContextValue(context.Background(), rc, modeltest.Column(t, db, "concerts", "title"), "header", "X-Title")
	require.NoError(t, err)
	require.Equal(t, "Live", cv.Value)

	_, err = resolver.ContextValue(context.Background(), rc, modeltest.Column(t, db, "concerts", "title"), "header", "X-Other")
	require.ErrorContains(t, err, "Missing context value")
}
