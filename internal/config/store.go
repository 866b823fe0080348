package config

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the local ledger of migrations applied by exosql, backed by
// SQLite.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new ledger store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "exosql.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppliedMigration is one ledger entry.
type AppliedMigration struct {
	Seq         int64     `db:"seq"`
	ID          string    `db:"id"`
	DatabaseURL string    `db:"database_url"`
	SchemaName  string    `db:"schema_name"`
	Checksum    string    `db:"checksum"`
	Statements  int       `db:"statements"`
	Destructive bool      `db:"destructive"`
	Script      string    `db:"script"`
	AppliedAt   time.Time `db:"applied_at"`
}

// Checksum returns the hex SHA-256 of a migration script.
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// RecordMigration stores an applied migration. ID, Checksum and AppliedAt
// are filled in.
func (s *Store) RecordMigration(ctx context.Context, m *AppliedMigration) error {
	m.ID = uuid.NewString()
	m.Checksum = Checksum(m.Script)
	m.AppliedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx, `INSERT INTO applied_migrations
		(id, database_url, schema_name, checksum, statements, destructive, script, applied_at)
		VALUES (:id, :database_url, :schema_name, :checksum, :statements, :destructive, :script, :applied_at)`, m)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	m.Seq = seq
	return nil
}

const migrationColumns = `seq, id, database_url, schema_name, checksum, statements, destructive, script, applied_at`

// GetMigration returns a ledger entry by id.
func (s *Store) GetMigration(ctx context.Context, id string) (*AppliedMigration, error) {
	var m AppliedMigration
	err := s.db.GetContext(ctx, &m, `SELECT `+migrationColumns+` FROM applied_migrations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get migration: %w", err)
	}
	return &m, nil
}

// ListMigrations returns every ledger entry, oldest first.
func (s *Store) ListMigrations(ctx context.Context) ([]AppliedMigration, error) {
	var out []AppliedMigration
	if err := s.db.SelectContext(ctx, &out, `SELECT `+migrationColumns+` FROM applied_migrations ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return out, nil
}

// LastMigration returns the most recent ledger entry, or ErrNotFound.
func (s *Store) LastMigration(ctx context.Context) (*AppliedMigration, error) {
	var m AppliedMigration
	err := s.db.GetContext(ctx, &m, `SELECT `+migrationColumns+` FROM applied_migrations ORDER BY seq DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last migration: %w", err)
	}
	return &m, nil
}
