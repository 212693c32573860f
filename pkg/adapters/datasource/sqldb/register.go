package sqldb

import (
	"context"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the "duckdb" database/sql driver
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/config"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Driver:      "duckdb",
			DisplayName: "DuckDB",
			Description: "Query a local DuckDB file (empty path opens an in-memory database)",
		},
		QueryExecutorFactory: func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return Open(ctx, "duckdb", duckDBDSN(cfg.DuckDBPath), logger)
		},
		SchemaDiscovererFactory: func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			exec, err := Open(ctx, "duckdb", duckDBDSN(cfg.DuckDBPath), logger)
			if err != nil {
				return nil, err
			}
			return NewSchemaDiscoverer(exec.DB(), true), nil
		},
	})
}

// duckDBDSN opens database files read-only. DuckDB cannot open an in-memory
// database read-only, so an empty path is left as is.
func duckDBDSN(path string) string {
	if path == "" {
		return ""
	}
	return path + "?access_mode=READ_ONLY"
}
