// Package modeltest provides schema fixtures shared by tests of the packages
// that compile operations and diff schemas.
package modeltest

import (
	"testing"

	"github.com/exosql/exosql/internal/model"
)

// Concerts builds the following schema:
//
//	venues(id serial pk, name text unique "venue_name")
//	concerts(id serial pk, title text, venue_id -> venues, published bool)
//	artists(id serial pk, name text)
//	concert_artists(id serial pk, concert_id -> concerts, artist_id -> artists, rank int, role text null)
//	employees(id serial pk, name text, manager_id -> employees null)
//
// concerts is declared before venues so the venue reference is a forward one.
func Concerts(t testing.TB) *model.Database {
	t.Helper()

	b := model.NewBuilder("")
	concerts := b.AddTable("concerts")
	venues := b.AddTable("venues")
	artists := b.AddTable("artists")
	concertArtists := b.AddTable("concert_artists")
	employees := b.AddTable("employees")

	b.AddColumn(concerts, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(concerts, model.ColumnDef{Name: "title", Type: model.StringType{}})
	b.AddColumn(concerts, model.ColumnDef{Name: "venue_id", References: &model.Reference{Table: venues}})
	b.AddColumn(concerts, model.ColumnDef{Name: "published", Type: model.BooleanType{}})

	b.AddColumn(venues, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(venues, model.ColumnDef{Name: "name", Type: model.StringType{}, UniqueConstraints: []string{"venue_name"}})

	b.AddColumn(artists, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(artists, model.ColumnDef{Name: "name", Type: model.StringType{}})

	b.AddColumn(concertArtists, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(concertArtists, model.ColumnDef{Name: "concert_id", References: &model.Reference{Table: concerts}})
	b.AddColumn(concertArtists, model.ColumnDef{Name: "artist_id", References: &model.Reference{Table: artists}})
	b.AddColumn(concertArtists, model.ColumnDef{Name: "rank", Type: model.IntType{Bits: 32}})
	b.AddColumn(concertArtists, model.ColumnDef{Name: "role", Type: model.StringType{}, IsNullable: true})

	b.AddColumn(employees, model.ColumnDef{Name: "id", Type: model.IntType{Bits: 32}, IsPK: true, IsAutoIncrement: true})
	b.AddColumn(employees, model.ColumnDef{Name: "name", Type: model.StringType{}})
	b.AddColumn(employees, model.ColumnDef{Name: "manager_id", References: &model.Reference{Table: employees}, IsNullable: true})

	db, err := b.Build()
	if err != nil {
		t.Fatalf("build concerts fixture: %v", err)
	}
	return db
}

// Table returns the identifier of the named table or fails the test.
func Table(t testing.TB, db *model.Database, name string) model.TableID {
	t.Helper()
	id, ok := db.TableByName(name)
	if !ok {
		t.Fatalf("table %q not found", name)
	}
	return id
}

// Column returns the identifier of table.column or fails the test.
func Column(t testing.TB, db *model.Database, table, column string) model.ColumnID {
	t.Helper()
	id, ok := db.ColumnByName(Table(t, db, table), column)
	if !ok {
		t.Fatalf("column %s.%s not found", table, column)
	}
	return id
}
