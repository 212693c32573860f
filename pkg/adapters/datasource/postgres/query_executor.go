package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/config"
	"github.com/nl2db/nl2db/pkg/logging"
)

// QueryExecutor provides Redshift/PostgreSQL query execution.
// Every Query runs as its own autocommit statement on a pooled connection,
// so a failed statement never leaves an aborted transaction behind.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	ownedPool bool // true if we created the pool
	logger    *zap.Logger
}

// NewQueryExecutor connects to the database described by cfg.
func NewQueryExecutor(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*QueryExecutor, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewQueryExecutorFromPool(pool, logger, true), nil
}

// NewQueryExecutorFromPool wraps an existing pool. When owned is false,
// Close leaves the pool open.
func NewQueryExecutorFromPool(pool *pgxpool.Pool, logger *zap.Logger, owned bool) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		pool:      pool,
		ownedPool: owned,
		logger:    logger.Named("postgres"),
	}
}

// Query runs a SQL query and returns the results.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	e.logger.Debug("Executing query", zap.String("sql", logging.SanitizeQuery(sqlQuery)))

	rows, err := e.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, datasource.ExecutionError(ctx, "failed to execute query", err)
	}
	defer rows.Close()

	// Get column names and types
	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, datasource.ExecutionError(ctx, "failed to read row values", err)
		}
		resultRows = append(resultRows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, datasource.ExecutionError(ctx, "error iterating rows", err)
	}

	return &datasource.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Ping verifies the database is reachable with valid credentials.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result int
	if err := e.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close releases the executor (but NOT the pool if borrowed).
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// SchemaDiscoverer returns a discoverer on the executor's pool.
func (e *QueryExecutor) SchemaDiscoverer() datasource.SchemaDiscoverer {
	return NewSchemaDiscovererFromPool(e.pool, e.logger, false)
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 18:
		return "CHAR"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}

// Ensure QueryExecutor implements the datasource interfaces at compile time.
var (
	_ datasource.QueryExecutor = (*QueryExecutor)(nil)
	_ datasource.SchemaSource  = (*QueryExecutor)(nil)
)
