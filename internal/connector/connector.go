// Package connector defines the boundary between the schema engine and a
// live database: connection management, script execution and the
// introspection queries the diff engine needs.
package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	SchemaName      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns sensible pool defaults for a PostgreSQL
// connection to dsn.
func DefaultConnectionConfig(dsn string) ConnectionConfig {
	return ConnectionConfig{
		Driver:          "postgres",
		DSN:             dsn,
		SchemaName:      "public",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// ForeignKey is a foreign key constraint of a table. Columns and
// ForeignColumns are parallel.
type ForeignKey struct {
	Name           string
	Columns        []string
	ForeignTable   string
	ForeignColumns []string
}

// UniqueConstraint is a named UNIQUE constraint of a table.
type UniqueConstraint struct {
	Name    string
	Columns []string
}

// Constraints groups the key constraints of one table.
type Constraints struct {
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Uniques     []UniqueConstraint
}

// ColumnInfo describes a single column as reported by the database.
type ColumnInfo struct {
	Name            string
	UDTName         string
	DataType        string
	MaxLength       *int
	Precision       *int
	Scale           *int
	IsNullable      bool
	IsAutoIncrement bool
	Default         *string
}

// Introspector answers the questions schema introspection asks of a live
// database. Implementations must be safe for concurrent use.
type Introspector interface {
	TableNames(ctx context.Context) ([]string, error)
	Constraints(ctx context.Context, table string) (Constraints, error)
	ColumnNames(ctx context.Context, table string) ([]string, error)
	ColumnInfo(ctx context.Context, table, column string) (ColumnInfo, error)
}

// Connector is the interface that all database connectors must implement.
type Connector interface {
	Introspector

	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// ExecScript runs statements in order inside a single transaction.
	ExecScript(ctx context.Context, statements []string) error

	DriverName() string
	SchemaName() string
}

// DatabaseError marks a failure reported by the database while
// introspecting or executing. Table is empty for schema-wide operations.
type DatabaseError struct {
	Op    string
	Table string
	Err   error
}

func (e *DatabaseError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// SanitizeDSN ensures that URL-style DSNs (postgres://, postgresql://) have
// their userinfo (especially the password) properly percent-encoded. Raw
// passwords containing @, #, %, or other URL-special characters cause the
// Go URL parser to mis-split the authority component. Key/value DSNs are
// returned unchanged.
func SanitizeDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// The LAST '@' separates userinfo from host+path.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	hasPass := false
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
		hasPass = true
	}

	// Already-encoded input must not be encoded twice.
	if u, err := url.PathUnescape(user); err == nil {
		user = u
	}
	if p, err := url.PathUnescape(pass); err == nil {
		pass = p
	}

	info := url.User(user)
	if hasPass {
		info = url.UserPassword(user, pass)
	}
	return scheme + "://" + info.String() + "@" + hostpath + query
}

// RedactDSN hides the password of a URL-style DSN for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(SanitizeDSN(dsn))
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
