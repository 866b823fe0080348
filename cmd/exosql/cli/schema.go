package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exosql/exosql/internal/config"
	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create, migrate, verify and import database schemas",
		Long:  "Compare a declarative model with a live PostgreSQL schema and generate the DDL that reconciles them.",
	}

	cmd.AddCommand(newSchemaCreateCmd())
	cmd.AddCommand(newSchemaMigrateCmd())
	cmd.AddCommand(newSchemaVerifyCmd())
	cmd.AddCommand(newSchemaImportCmd())
	cmd.AddCommand(newSchemaHistoryCmd())

	return cmd
}

// ---------- schema create ----------

func newSchemaCreateCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "create <model.yaml>",
		Short: "Print the DDL creating the model's schema from scratch",
		Example: `  exosql schema create model.yaml
  exosql schema create model.yaml -o schema.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.LoadModel(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFile, schema.CreationSQL(target))
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the DDL to file instead of stdout")

	return cmd
}

// ---------- schema migrate ----------

func newSchemaMigrateCmd() *cobra.Command {
	var (
		databaseURL      string
		allowDestructive bool
		apply            bool
	)

	cmd := &cobra.Command{
		Use:   "migrate <model.yaml>",
		Short: "Print or apply the migration from the live schema to the model",
		Long: `Introspect the live schema, diff it against the model and print the migration
script. Statements that can lose data (dropped tables, columns and extensions) are
commented out unless --allow-destructive-changes is given. With --apply the active
statements are executed in one transaction and recorded in the local ledger.`,
		Example: `  exosql schema migrate model.yaml
  exosql schema migrate model.yaml --apply
  exosql schema migrate model.yaml --database postgres://localhost/app --allow-destructive-changes --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaMigrate(cmd, args[0], databaseURL, allowDestructive, apply)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database", "", "Database URL (overrides database.url)")
	cmd.Flags().BoolVar(&allowDestructive, "allow-destructive-changes", false, "Include statements that can lose data")
	cmd.Flags().BoolVar(&apply, "apply", false, "Execute the migration instead of only printing it")

	return cmd
}

func runSchemaMigrate(cmd *cobra.Command, modelPath, databaseURL string, allowDestructive, apply bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if databaseURL != "" {
		cfg.Database.URL = databaseURL
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	allowDestructive = allowDestructive || cfg.Migration.AllowDestructiveChanges

	target, err := config.LoadModel(modelPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	conn, err := connect(ctx, cfg, target.SchemaName(), logger)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	existing, err := introspect(ctx, conn, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	m := schema.NewMigration(existing, target)
	if m.IsEmpty() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Schema is up to date.")
		return nil
	}
	if err := m.Write(cmd.OutOrStdout(), allowDestructive); err != nil {
		return err
	}
	if m.HasDestructiveChanges() && !allowDestructive {
		fmt.Fprintln(cmd.ErrOrStderr(), "Destructive statements are commented out; use --allow-destructive-changes to include them.")
	}
	if !apply {
		return nil
	}

	statements := m.Executable(allowDestructive)
	if len(statements) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to apply.")
		return nil
	}
	if err := conn.ExecScript(ctx, statements); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	store, err := config.NewStore(cfg.Migration.LedgerDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	entry := &config.AppliedMigration{
		DatabaseURL: connector.RedactDSN(cfg.Database.URL),
		SchemaName:  conn.SchemaName(),
		Statements:  len(statements),
		Destructive: allowDestructive && m.HasDestructiveChanges(),
		Script:      strings.Join(statements, "\n\n"),
	}
	if err := store.RecordMigration(ctx, entry); err != nil {
		return err
	}
	logger.Info("migration applied", "id", entry.ID, "statements", entry.Statements, "destructive", entry.Destructive)
	fmt.Fprintf(cmd.ErrOrStderr(), "Applied %d statement(s) (migration %s).\n", entry.Statements, entry.ID)
	return nil
}

// ---------- schema verify ----------

func newSchemaVerifyCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "verify <model.yaml>",
		Short: "Fail when the live schema differs from the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if databaseURL != "" {
				cfg.Database.URL = databaseURL
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			target, err := config.LoadModel(args[0])
			if err != nil {
				return err
			}
			conn, err := connect(cmd.Context(), cfg, target.SchemaName(), logger)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			existing, err := introspect(cmd.Context(), conn, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := schema.Verify(existing, target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema matches the model.")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database", "", "Database URL (overrides database.url)")

	return cmd
}

// ---------- schema import ----------

func newSchemaImportCmd() *cobra.Command {
	var (
		databaseURL string
		outputFile  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Write a model file describing the live schema",
		Example: `  exosql schema import -o model.yaml
  exosql schema import --database postgres://localhost/app`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if databaseURL != "" {
				cfg.Database.URL = databaseURL
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context(), cfg, "", logger)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			existing, err := introspect(cmd.Context(), conn, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			imported, err := schema.ImportModel(existing)
			if err != nil {
				return err
			}
			printIssues(cmd.ErrOrStderr(), imported.Issues)
			return writeOutput(cmd.OutOrStdout(), outputFile, imported.Value)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database", "", "Database URL (overrides database.url)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the model to file instead of stdout")

	return cmd
}

// ---------- schema history ----------

func newSchemaHistoryCmd() *cobra.Command {
	var showScript bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List migrations applied from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := config.NewStore(cfg.Migration.LedgerDir)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			if showScript {
				last, err := store.LastMigration(cmd.Context())
				if errors.Is(err, config.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), last.Script)
				return nil
			}

			entries, err := store.ListMigrations(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tID\tDATABASE\tSCHEMA\tSTATEMENTS\tDESTRUCTIVE\tAPPLIED")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\t%s\n",
					e.Seq, e.ID, e.DatabaseURL, e.SchemaName, e.Statements, e.Destructive, e.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&showScript, "last", false, "Print the script of the most recent migration")

	return cmd
}
