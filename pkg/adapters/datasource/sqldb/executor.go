// Package sqldb runs queries through database/sql, for drivers without a
// native adapter. DuckDB is registered for local analysis files.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/logging"
)

// QueryExecutor executes queries over a *sql.DB.
type QueryExecutor struct {
	db     *sql.DB
	owned  bool
	logger *zap.Logger
}

// Open opens driverName with dsn and verifies the connection.
func Open(ctx context.Context, driverName, dsn string, logger *zap.Logger) (*QueryExecutor, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return NewQueryExecutor(db, logger, true), nil
}

// NewQueryExecutor wraps db. When owned is false, Close leaves db open.
func NewQueryExecutor(db *sql.DB, logger *zap.Logger, owned bool) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		db:     db,
		owned:  owned,
		logger: logger.Named("sqldb"),
	}
}

// DB returns the underlying handle.
func (e *QueryExecutor) DB() *sql.DB {
	return e.db
}

// SchemaDiscoverer returns a discoverer on the executor's handle.
func (e *QueryExecutor) SchemaDiscoverer() datasource.SchemaDiscoverer {
	return NewSchemaDiscoverer(e.db, false)
}

// Query runs sqlQuery and returns every row.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	e.logger.Debug("Executing query", zap.String("sql", logging.SanitizeQuery(sqlQuery)))

	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, datasource.ExecutionError(ctx, "failed to execute query", err)
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, datasource.ExecutionError(ctx, "failed to read columns", err)
	}
	columns := make([]datasource.ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = datasource.ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, datasource.ExecutionError(ctx, "failed to scan row", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
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

// Ping verifies the database is reachable.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the database if this executor opened it.
func (e *QueryExecutor) Close() error {
	if e.owned && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// normalizeValues turns driver byte slices into strings so results print
// and serialize as text.
func normalizeValues(values []any) []any {
	for i, value := range values {
		if b, ok := value.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values
}

var (
	_ datasource.QueryExecutor = (*QueryExecutor)(nil)
	_ datasource.SchemaSource  = (*QueryExecutor)(nil)
)
