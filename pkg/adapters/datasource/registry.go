package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/config"
)

// AdapterInfo describes a registered driver.
type AdapterInfo struct {
	Driver      string `json:"driver"`       // "redshift", "postgres", "duckdb"
	DisplayName string `json:"display_name"` // "Amazon Redshift"
	Description string `json:"description"`
}

// AdapterRegistration contains info + factories for one driver.
type AdapterRegistration struct {
	Info                    AdapterInfo
	QueryExecutorFactory    func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (QueryExecutor, error)
	SchemaDiscovererFactory func(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (SchemaDiscoverer, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Driver] = reg
}

// RegisteredAdapters returns info for all registered drivers, sorted by name.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Driver < result[j].Driver })
	return result
}

// IsRegistered checks if a driver is available.
func IsRegistered(driver string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[driver]
	return ok
}

func lookup(driver string) (AdapterRegistration, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[driver]
	if !ok {
		return AdapterRegistration{}, fmt.Errorf("unsupported database driver: %s (not compiled in)", driver)
	}
	return reg, nil
}

// NewQueryExecutor creates a query executor for cfg.Driver.
func NewQueryExecutor(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (QueryExecutor, error) {
	reg, err := lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if reg.QueryExecutorFactory == nil {
		return nil, fmt.Errorf("query execution not supported for driver: %s", cfg.Driver)
	}
	return reg.QueryExecutorFactory(ctx, cfg, logger)
}

// NewSchemaDiscoverer creates a schema discoverer for cfg.Driver.
func NewSchemaDiscoverer(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (SchemaDiscoverer, error) {
	reg, err := lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if reg.SchemaDiscovererFactory == nil {
		return nil, fmt.Errorf("schema discovery not supported for driver: %s", cfg.Driver)
	}
	return reg.SchemaDiscovererFactory(ctx, cfg, logger)
}

// DiscovererFor returns a discoverer sharing exec's connection when exec is
// a SchemaSource, otherwise a new one from the registry. This keeps
// in-memory databases visible to discovery.
func DiscovererFor(ctx context.Context, exec QueryExecutor, cfg *config.DatabaseConfig, logger *zap.Logger) (SchemaDiscoverer, error) {
	if src, ok := exec.(SchemaSource); ok {
		return src.SchemaDiscoverer(), nil
	}
	return NewSchemaDiscoverer(ctx, cfg, logger)
}
