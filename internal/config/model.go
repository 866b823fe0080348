package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/exosql/exosql/internal/model"
)

// ModelFile is the declarative description of a schema (model.yaml).
type ModelFile struct {
	Schema string      `yaml:"schema,omitempty"`
	Tables []TableYAML `yaml:"tables"`
}

// TableYAML declares one table. Model is the name of the type the table
// backs; it is informational only.
type TableYAML struct {
	Name    string       `yaml:"name"`
	Model   string       `yaml:"model,omitempty"`
	Columns []ColumnYAML `yaml:"columns"`
}

// ColumnYAML declares one column. References names the target table, or
// "table.column" for a non primary key target; the column type is then
// taken from the target.
type ColumnYAML struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type,omitempty"`
	References    string   `yaml:"references,omitempty"`
	PK            bool     `yaml:"pk,omitempty"`
	AutoIncrement bool     `yaml:"auto_increment,omitempty"`
	Nullable      bool     `yaml:"nullable,omitempty"`
	Default       *string  `yaml:"default,omitempty"`
	Unique        []string `yaml:"unique,omitempty"`
}

// LoadModel reads a model file and builds the schema it declares.
func LoadModel(path string) (*model.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	db, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return db, nil
}

// ParseModel parses model YAML and builds the schema it declares.
func ParseModel(data []byte) (*model.Database, error) {
	var f ModelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return f.Build()
}

// Build resolves the file into a schema snapshot. Every problem found is
// reported, not only the first.
func (f *ModelFile) Build() (*model.Database, error) {
	b := model.NewBuilder(f.Schema)
	ids := make([]model.TableID, len(f.Tables))
	for i, t := range f.Tables {
		ids[i] = b.AddTable(t.Name)
	}

	var errs []error
	for i, t := range f.Tables {
		for _, c := range t.Columns {
			def, err := columnDef(b, t.Name, c)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			b.AddColumn(ids[i], def)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.Build()
}

func columnDef(b *model.Builder, table string, c ColumnYAML) (model.ColumnDef, error) {
	def := model.ColumnDef{
		Name:              c.Name,
		IsPK:              c.PK,
		IsAutoIncrement:   c.AutoIncrement,
		IsNullable:        c.Nullable && !c.PK,
		UniqueConstraints: c.Unique,
		Default:           c.Default,
	}

	if c.References != "" {
		if c.Type != "" {
			return def, fmt.Errorf("column %s.%s: type and references are mutually exclusive", table, c.Name)
		}
		target, column, _ := strings.Cut(c.References, ".")
		tid, ok := b.TableID(target)
		if !ok {
			return def, fmt.Errorf("column %s.%s references unknown table %q", table, c.Name, target)
		}
		def.References = &model.Reference{Table: tid, Column: column}
		return def, nil
	}

	if c.Type == "" {
		return def, fmt.Errorf("column %s.%s: type is required", table, c.Name)
	}
	typ, serial, err := model.ParseTypeName(c.Type)
	if err != nil {
		return def, fmt.Errorf("column %s.%s: %w", table, c.Name, err)
	}
	def.Type = typ
	def.IsAutoIncrement = def.IsAutoIncrement || serial

	if _, ok := typ.(model.UUIDType); ok && c.Default != nil {
		if lit, quoted := unquote(*c.Default); quoted {
			if _, err := uuid.Parse(lit); err != nil {
				return def, fmt.Errorf("column %s.%s: default %s is not a valid uuid", table, c.Name, *c.Default)
			}
		}
	}
	return def, nil
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
	}
	return s, false
}

// NewModelFile describes db as a model file. References to a primary key
// name only the table.
func NewModelFile(db *model.Database) *ModelFile {
	f := &ModelFile{}
	if db.SchemaName() != model.DefaultSchema {
		f.Schema = db.SchemaName()
	}
	for _, tid := range db.TableIDs() {
		t := TableYAML{Name: db.Table(tid).Name}
		for _, cid := range db.ColumnIDs(tid) {
			col := db.Column(cid)
			c := ColumnYAML{
				Name:          col.Name,
				PK:            col.IsPK,
				AutoIncrement: col.IsAutoIncrement,
				Nullable:      col.IsNullable,
				Default:       col.Default,
				Unique:        col.UniqueConstraints,
			}
			if ref, ok := col.Type.(model.ColumnReference); ok {
				c.References = db.Table(ref.Column.Table).Name
				if !db.Column(ref.Column).IsPK {
					c.References = db.QualifiedName(ref.Column)
				}
			} else {
				c.Type = strings.ToLower(model.TypeSQL(col.Type, false))
			}
			t.Columns = append(t.Columns, c)
		}
		f.Tables = append(f.Tables, t)
	}
	return f
}

// Marshal renders the file as YAML.
func (f *ModelFile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
