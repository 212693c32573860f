package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/models"
)

const listColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = ? AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

// SchemaDiscoverer reads information_schema through database/sql.
type SchemaDiscoverer struct {
	db    *sql.DB
	owned bool
}

// NewSchemaDiscoverer wraps db. When owned is false, Close leaves db open.
func NewSchemaDiscoverer(db *sql.DB, owned bool) *SchemaDiscoverer {
	return &SchemaDiscoverer{db: db, owned: owned}
}

// DiscoverTables returns the base tables of schema in name order.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context, schema string) ([]models.TableDescriptor, error) {
	rows, err := d.db.QueryContext(ctx, listColumnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []models.TableDescriptor
	for rows.Next() {
		var table, nullable string
		var col models.ColumnDescriptor
		if err := rows.Scan(&table, &col.Name, &col.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = strings.EqualFold(nullable, "YES")

		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, models.TableDescriptor{Schema: schema, Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return tables, nil
}

// Close closes the database if this discoverer opened it.
func (d *SchemaDiscoverer) Close() error {
	if d.owned && d.db != nil {
		return d.db.Close()
	}
	return nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
