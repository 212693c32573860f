// Package datasource defines how generated SQL reaches a database and how
// table metadata is discovered. Concrete drivers live in sub-packages and
// register themselves with Register from their init functions.
package datasource

import (
	"context"

	"github.com/nl2db/nl2db/pkg/models"
)

// QueryExecutor runs validated, read-only SQL against a datasource.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs sqlQuery without modification and returns every row.
	// Row bounding is the validator's job; the executor never rewrites SQL.
	// Failures wrap apperrors.ErrExecution.
	Query(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases any resources held by the executor.
	Close() error
}

// SchemaDiscoverer lists the tables and columns of one database schema.
type SchemaDiscoverer interface {
	// DiscoverTables returns every base table in schema with its columns in
	// ordinal order. Column types are the raw database type names; callers
	// map them to models.ColumnType.
	DiscoverTables(ctx context.Context, schema string) ([]models.TableDescriptor, error)

	// Close releases the database connection.
	Close() error
}

// SchemaSource is implemented by executors that can discover schema over
// their own connection. The returned discoverer does not own it.
type SchemaSource interface {
	SchemaDiscoverer() SchemaDiscoverer
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryResult holds the rows returned by a query in column order.
type QueryResult struct {
	Columns  []ColumnInfo `json:"columns"`
	Rows     [][]any      `json:"rows"`
	RowCount int          `json:"row_count"`
}

// ColumnNames returns the result column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}
