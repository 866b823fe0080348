package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exosql/exosql/internal/config"
	"github.com/exosql/exosql/internal/connector"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage exosql configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default exosql.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "exosql.yaml"
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set database.url (or EXOSQL_DATABASE_URL), then run 'exosql schema migrate model.yaml'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if path := viper.ConfigFileUsed(); path != "" {
				fmt.Fprintf(out, "Config file: %s\n", path)
			} else {
				fmt.Fprintln(out, "Config file: (none found, using defaults)")
			}
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := ""
			if cfg.Auth.JWTSecret != "" {
				secret = "(set)"
			}
			settings := map[string]interface{}{
				"database.url":                        connector.RedactDSN(cfg.Database.URL),
				"database.schema":                     cfg.Database.Schema,
				"database.pool.max_open_conns":        cfg.Database.Pool.MaxOpenConns,
				"database.pool.max_idle_conns":        cfg.Database.Pool.MaxIdleConns,
				"database.pool.conn_max_lifetime":     cfg.Database.Pool.ConnMaxLifetime,
				"database.pool.conn_max_idle_time":    cfg.Database.Pool.ConnMaxIdleTime,
				"migration.allow_destructive_changes": cfg.Migration.AllowDestructiveChanges,
				"migration.ledger_dir":                cfg.Migration.LedgerDir,
				"auth.jwt_secret":                     secret,
				"auth.jwt_expiry":                     cfg.Auth.JWTExpiry,
				"logging.level":                       cfg.Logging.Level,
				"logging.format":                      cfg.Logging.Format,
			}
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, settings[k])
			}
			return nil
		},
	}
}
