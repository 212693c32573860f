package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nl2db/nl2db/pkg/config"
)

// newPool connects to Redshift or Postgres.
// Redshift speaks the Postgres wire protocol but rejects the extended
// protocol's statement cache, so the simple protocol is used there.
func newPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	applySessionDefaults(poolCfg.ConnConfig, cfg.Driver)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Driver, err)
	}
	return pool, nil
}

// applySessionDefaults sets per-driver connection behaviour. Postgres
// sessions start read-only; Redshift does not accept the startup parameter.
func applySessionDefaults(connCfg *pgx.ConnConfig, driver string) {
	if driver == "redshift" {
		connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		return
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = make(map[string]string)
	}
	connCfg.RuntimeParams["default_transaction_read_only"] = "on"
}
