package schema

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/exosql/exosql/internal/model"
)

// ErrSchemaMismatch is returned by Verify when the snapshots differ.
var ErrSchemaMismatch = errors.New("database schema does not match the model")

// MigrationStatement is one DDL statement of a migration.
type MigrationStatement struct {
	SQL         string
	Destructive bool
}

// Migration is an ordered DDL script: every pre statement, then every
// statement, then every post statement, each group in op order. This puts
// all CREATE TABLE statements ahead of the foreign keys that reference
// them.
type Migration struct {
	Statements []MigrationStatement
}

// NewMigration diffs existing against target and orders the result.
func NewMigration(existing, target *model.Database) *Migration {
	return FromOps(Diff(existing, target))
}

// FromOps orders the statements of ops.
func FromOps(ops []Op) *Migration {
	var pre, main, post []MigrationStatement
	for _, op := range ops {
		s := op.Statement()
		d := op.Destructive()
		for _, sql := range s.Pre {
			pre = append(pre, MigrationStatement{SQL: sql, Destructive: d})
		}
		if s.Statement != "" {
			main = append(main, MigrationStatement{SQL: s.Statement, Destructive: d})
		}
		for _, sql := range s.Post {
			post = append(post, MigrationStatement{SQL: sql, Destructive: d})
		}
	}
	m := &Migration{}
	m.Statements = append(m.Statements, pre...)
	m.Statements = append(m.Statements, main...)
	m.Statements = append(m.Statements, post...)
	return m
}

// IsEmpty reports whether the migration changes nothing.
func (m *Migration) IsEmpty() bool { return len(m.Statements) == 0 }

// HasDestructiveChanges reports whether any statement can lose data.
func (m *Migration) HasDestructiveChanges() bool {
	for _, s := range m.Statements {
		if s.Destructive {
			return true
		}
	}
	return false
}

// Executable returns the statements to run. Destructive statements are
// left out unless allowDestructive is set.
func (m *Migration) Executable(allowDestructive bool) []string {
	var out []string
	for _, s := range m.Statements {
		if s.Destructive && !allowDestructive {
			continue
		}
		out = append(out, s.SQL)
	}
	return out
}

// Write renders the migration as a SQL script, one statement per
// paragraph. Destructive statements are commented out unless
// allowDestructive is set.
func (m *Migration) Write(w io.Writer, allowDestructive bool) error {
	for i, s := range m.Statements {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		text := s.SQL
		if s.Destructive && !allowDestructive {
			text = "-- " + strings.ReplaceAll(text, "\n", "\n-- ")
		}
		if _, err := io.WriteString(w, text+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// String renders the migration with every statement active.
func (m *Migration) String() string {
	var b strings.Builder
	_ = m.Write(&b, true)
	return b.String()
}

// CreationSQL returns the DDL creating db from an empty schema.
func CreationSQL(db *model.Database) string {
	return NewMigration(model.Empty(db.SchemaName()), db).String()
}

// Verify checks that existing already matches target. The returned error
// wraps ErrSchemaMismatch and lists the statements that would reconcile
// them.
func Verify(existing, target *model.Database) error {
	m := NewMigration(existing, target)
	if m.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w; required changes:\n%s", ErrSchemaMismatch, m.String())
}
