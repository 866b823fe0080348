package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exosql/exosql/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// Execute creates the root command tree and runs it. Cancelling ctx
// aborts database work in progress.
func Execute(ctx context.Context, version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exosql",
		Short: "Compile data operations to PostgreSQL and keep its schema in step with your model",
		Long: `exosql compiles queries and mutations over a relational model into single
PostgreSQL statements, and migrates a live database to match a declarative model.

The schema commands read a model file (model.yaml), introspect the database named
by database.url and print, verify or apply the DDL that reconciles the two.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./exosql.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("exosql")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.exosql")
	}

	viper.SetEnvPrefix("EXOSQL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

// overridableKeys are the settings that EXOSQL_* environment variables may
// override on top of the config file.
var overridableKeys = []string{
	"database.url",
	"database.schema",
	"migration.ledger_dir",
	"auth.jwt_secret",
	"auth.jwt_expiry",
	"logging.level",
	"logging.format",
}

// loadConfig returns the effective configuration: defaults, then the
// config file viper located, then environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if cfg, err = config.LoadYAMLConfig(path); err != nil {
				return nil, err
			}
		}
	}

	for _, key := range overridableKeys {
		v, ok := os.LookupEnv("EXOSQL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		if !ok {
			continue
		}
		switch key {
		case "database.url":
			cfg.Database.URL = v
		case "database.schema":
			cfg.Database.Schema = v
		case "migration.ledger_dir":
			cfg.Migration.LedgerDir = v
		case "auth.jwt_secret":
			cfg.Auth.JWTSecret = v
		case "auth.jwt_expiry":
			cfg.Auth.JWTExpiry = v
		case "logging.level":
			cfg.Logging.Level = v
		case "logging.format":
			cfg.Logging.Format = v
		}
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section. --verbose
// forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Logging.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q (use text or json)", cfg.Logging.Format)
	}
}
