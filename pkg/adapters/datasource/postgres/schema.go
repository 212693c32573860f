package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/config"
	"github.com/nl2db/nl2db/pkg/models"
)

// Tables are listed from pg_tables, which Redshift keeps for user tables.
const listTablesQuery = `
	SELECT tablename
	FROM pg_tables
	WHERE schemaname = $1
	ORDER BY tablename`

// Columns for every relation of the schema in one round trip, in ordinal
// order. Redshift has no array parameters, so relations that are not listed
// tables are dropped client-side.
const listColumnsQuery = `
	SELECT
		c.relname AS table_name,
		a.attname AS column_name,
		format_type(a.atttypid, a.atttypmod) AS data_type,
		NOT a.attnotnull AS is_nullable
	FROM pg_attribute a
	JOIN pg_class c ON a.attrelid = c.oid
	JOIN pg_namespace n ON c.relnamespace = n.oid
	WHERE n.nspname = $1
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY c.relname, a.attnum`

// SchemaDiscoverer provides Redshift/PostgreSQL schema discovery.
type SchemaDiscoverer struct {
	pool      *pgxpool.Pool
	ownedPool bool
	logger    *zap.Logger
}

// NewSchemaDiscoverer creates a schema discoverer with its own pool.
func NewSchemaDiscoverer(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*SchemaDiscoverer, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSchemaDiscovererFromPool(pool, logger, true), nil
}

// NewSchemaDiscovererFromPool wraps an existing pool. If logger is nil, a
// no-op logger is used.
func NewSchemaDiscovererFromPool(pool *pgxpool.Pool, logger *zap.Logger, owned bool) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{
		pool:      pool,
		ownedPool: owned,
		logger:    logger.Named("schema"),
	}
}

// Close releases the discoverer (but NOT the pool if borrowed).
func (d *SchemaDiscoverer) Close() error {
	if d.ownedPool && d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// DiscoverTables returns all tables of schema with their columns.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context, schema string) ([]models.TableDescriptor, error) {
	names, err := d.listTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	columns, err := d.listColumns(ctx, schema, names)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableDescriptor, 0, len(names))
	for _, name := range names {
		tables = append(tables, models.TableDescriptor{
			Schema:  schema,
			Name:    name,
			Columns: columns[name],
		})
	}

	d.logger.Debug("Discovered tables",
		zap.String("schema", schema),
		zap.Int("tables", len(tables)))

	return tables, nil
}

func (d *SchemaDiscoverer) listTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := d.pool.Query(ctx, listTablesQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func (d *SchemaDiscoverer) listColumns(ctx context.Context, schema string, tables []string) (map[string][]models.ColumnDescriptor, error) {
	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}

	rows, err := d.pool.Query(ctx, listColumnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]models.ColumnDescriptor, len(tables))
	for rows.Next() {
		var table string
		var col models.ColumnDescriptor
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if !wanted[table] {
			continue
		}
		columns[table] = append(columns[table], col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
