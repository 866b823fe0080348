package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/exosql/exosql/internal/config"
	"github.com/exosql/exosql/internal/connector"
	"github.com/exosql/exosql/internal/connector/postgres"
	"github.com/exosql/exosql/internal/model"
	"github.com/exosql/exosql/internal/schema"
)

// newRegistry creates a connector registry with the supported database
// drivers registered. Connectors log through logger.
func newRegistry(logger *slog.Logger) *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.NewWithLogger(logger) })
	return registry
}

// connect opens the database named by cfg for schemaName. An empty
// schemaName uses database.schema.
func connect(ctx context.Context, cfg *config.Config, schemaName string, logger *slog.Logger) (connector.Connector, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("no database configured: set database.url, EXOSQL_DATABASE_URL or --database")
	}
	cc, err := cfg.ConnectionConfig()
	if err != nil {
		return nil, err
	}
	if schemaName != "" {
		cc.SchemaName = schemaName
	}

	conn, err := newRegistry(logger).Open(cc)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Disconnect()
		return nil, fmt.Errorf("ping %s: %w", connector.RedactDSN(cc.DSN), err)
	}
	logger.Debug("connected", "database", connector.RedactDSN(cc.DSN), "schema", cc.SchemaName)
	return conn, nil
}

// introspect reads the live schema and prints advisory issues to errOut.
func introspect(ctx context.Context, conn connector.Connector, logger *slog.Logger, errOut io.Writer) (*model.Database, error) {
	live, err := schema.Introspect(ctx, conn, conn.SchemaName(), logger)
	if err != nil {
		return nil, err
	}
	printIssues(errOut, live.Issues)
	return live.Value, nil
}

func printIssues(w io.Writer, issues []schema.Issue) {
	for _, issue := range issues {
		fmt.Fprintln(w, issue)
	}
}

// writeOutput writes content to path, or to w when path is empty.
func writeOutput(w io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(w, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
