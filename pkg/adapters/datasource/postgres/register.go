package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/config"
)

func init() {
	executor := func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (datasource.QueryExecutor, error) {
		return NewQueryExecutor(ctx, cfg, logger)
	}
	discoverer := func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
		return NewSchemaDiscoverer(ctx, cfg, logger)
	}

	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Driver:      "redshift",
			DisplayName: "Amazon Redshift",
			Description: "Connect to Redshift clusters and Redshift Serverless over the Postgres wire protocol",
		},
		QueryExecutorFactory:    executor,
		SchemaDiscovererFactory: discoverer,
	})
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Driver:      "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		QueryExecutorFactory:    executor,
		SchemaDiscovererFactory: discoverer,
	})
}
