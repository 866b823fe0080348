package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/model"
)

// Config represents the top-level exosql configuration file.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig locates the PostgreSQL database the schema commands run
// against.
type DatabaseConfig struct {
	URL    string     `yaml:"url"`
	Schema string     `yaml:"schema"`
	Pool   PoolConfig `yaml:"pool"`
}

// PoolConfig controls the database connection pool.
type PoolConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// MigrationConfig controls how migrations are generated and recorded.
type MigrationConfig struct {
	AllowDestructiveChanges bool   `yaml:"allow_destructive_changes"`
	LedgerDir               string `yaml:"ledger_dir"`
}

// AuthConfig controls request authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Keys missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a Config pre-filled with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Schema: model.DefaultSchema,
			Pool: PoolConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: "5m",
				ConnMaxIdleTime: "1m",
			},
		},
		Migration: MigrationConfig{
			LedgerDir: ".exosql",
		},
		Auth: AuthConfig{
			JWTExpiry: "1h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConnectionConfig converts the database section into connector settings.
func (c *Config) ConnectionConfig() (connector.ConnectionConfig, error) {
	cfg := connector.DefaultConnectionConfig(c.Database.URL)
	if c.Database.Schema != "" {
		cfg.SchemaName = c.Database.Schema
	}
	if c.Database.Pool.MaxOpenConns > 0 {
		cfg.MaxOpenConns = c.Database.Pool.MaxOpenConns
	}
	if c.Database.Pool.MaxIdleConns > 0 {
		cfg.MaxIdleConns = c.Database.Pool.MaxIdleConns
	}

	var err error
	if cfg.ConnMaxLifetime, err = duration(c.Database.Pool.ConnMaxLifetime, cfg.ConnMaxLifetime); err != nil {
		return cfg, fmt.Errorf("database.pool.conn_max_lifetime: %w", err)
	}
	if cfg.ConnMaxIdleTime, err = duration(c.Database.Pool.ConnMaxIdleTime, cfg.ConnMaxIdleTime); err != nil {
		return cfg, fmt.Errorf("database.pool.conn_max_idle_time: %w", err)
	}
	return cfg, nil
}

// JWTExpiry parses auth.jwt_expiry.
func (c *Config) JWTExpiry() (time.Duration, error) {
	return duration(c.Auth.JWTExpiry, time.Hour)
}

func duration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
