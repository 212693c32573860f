package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/models"
)

// Discoverer lists the tables and columns of a database schema.
type Discoverer interface {
	DiscoverTables(ctx context.Context, schema string) ([]models.TableDescriptor, error)
}

// Loader builds a Catalog from the schema cache or, when the cache is
// missing or stale, from live discovery.
type Loader struct {
	discoverer  Discoverer
	cache       *Cache // optional
	annotations *Annotations
	source      string // database identity for the cache
	schema      string
	logger      *zap.Logger
}

// NewLoader creates a Loader. cache may be nil to always discover. source
// identifies the database, so a cache written for one never serves another.
func NewLoader(discoverer Discoverer, cache *Cache, annotations *Annotations, source, schema string, logger *zap.Logger) *Loader {
	return &Loader{
		discoverer:  discoverer,
		cache:       cache,
		annotations: annotations,
		source:      source,
		schema:      schema,
		logger:      logger.Named("catalog"),
	}
}

// Load returns a Catalog. With refresh set the cache is bypassed and rewritten.
func (l *Loader) Load(ctx context.Context, refresh bool) (*Catalog, error) {
	if l.cache != nil && !refresh {
		tables, ok, err := l.cache.Load(l.source, l.schema)
		if err != nil {
			l.logger.Warn("Ignoring unreadable schema cache",
				zap.String("path", l.cache.Path()),
				zap.Error(err))
		}
		if ok {
			l.logger.Debug("Schema loaded from cache", zap.Int("tables", len(tables)))
			return Build(tables, l.annotations)
		}
	}

	tables, err := l.discoverer.DiscoverTables(ctx, l.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to discover schema %s: %w", l.schema, err)
	}
	l.logger.Info("Schema discovered", zap.String("schema", l.schema), zap.Int("tables", len(tables)))

	if l.cache != nil {
		if err := l.cache.Save(l.source, l.schema, tables); err != nil {
			l.logger.Warn("Failed to save schema cache", zap.Error(err))
		}
	}

	return Build(tables, l.annotations)
}
