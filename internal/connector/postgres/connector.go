// Package postgres implements connector.Connector for PostgreSQL using sqlx
// over the pgx database/sql driver.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/model"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
	logger     *slog.Logger
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return NewWithLogger(nil)
}

// NewWithLogger creates a PostgresConnector that logs executed statements
// at debug level. A nil logger uses slog.Default().
func NewWithLogger(logger *slog.Logger) *PostgresConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresConnector{schemaName: model.DefaultSchema, logger: logger}
}

// NewFromDB wraps an existing connection pool.
func NewFromDB(db *sqlx.DB, schemaName string, logger *slog.Logger) *PostgresConnector {
	c := NewWithLogger(logger)
	c.db = db
	if schemaName != "" {
		c.schemaName = schemaName
	}
	return c
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration. It configures connection pool settings and stores
// the schema name for introspection queries.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", connector.SanitizeDSN(cfg.DSN))
	if err != nil {
		return &connector.DatabaseError{Op: "connect", Err: err}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	c.logger.Debug("connected", "dsn", connector.RedactDSN(cfg.DSN), "schema", c.schemaName)
	return nil
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }

// SchemaName returns the schema introspection is restricted to.
func (c *PostgresConnector) SchemaName() string { return c.schemaName }

// ExecScript runs statements in order inside one transaction. The first
// failing statement rolls everything back.
func (c *PostgresConnector) ExecScript(ctx context.Context, statements []string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return &connector.DatabaseError{Op: "begin", Err: err}
	}
	for i, stmt := range statements {
		c.logger.Debug("executing statement", "index", i, "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &connector.DatabaseError{Op: "exec", Err: fmt.Errorf("statement %d (%s): %w", i+1, stmt, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &connector.DatabaseError{Op: "commit", Err: err}
	}
	c.logger.Info("script applied", "statements", len(statements))
	return nil
}
