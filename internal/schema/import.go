package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/exosql/exosql/internal/config"
	"github.com/exosql/exosql/internal/model"
)

// ModelName converts a table name to the name of the type it backs, for
// example concert_artists becomes ConcertArtist.
func ModelName(table string) string {
	return inflect.Camelize(inflect.Singularize(table))
}

// ImportModel renders db as a model file, with hints about naming and
// relations a hand-written model would usually declare.
func ImportModel(db *model.Database) (WithIssues[string], error) {
	var issues []Issue
	f := config.NewModelFile(db)

	for i, tid := range db.TableIDs() {
		table := db.Table(tid).Name
		f.Tables[i].Model = ModelName(table)
		if inflect.Singularize(table) != table {
			issues = append(issues, hintf("table %q is plural; its model is named %q", table, f.Tables[i].Model))
		}

		for _, cid := range db.ColumnIDs(tid) {
			ref, ok := db.Column(cid).Type.(model.ColumnReference)
			if !ok {
				continue
			}
			issues = append(issues, hintf("consider adding a field to %q of type [%s] to create a one-to-many relationship",
				ModelName(db.Table(ref.Column.Table).Name), ModelName(table)))
		}
	}

	data, err := f.Marshal()
	if err != nil {
		return WithIssues[string]{}, fmt.Errorf("render model: %w", err)
	}
	return WithIssues[string]{Value: string(data), Issues: issues}, nil
}
