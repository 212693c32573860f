package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nl2db/nl2db/pkg/models"
)

// DefaultCacheTTL is how long discovered tables are reused before the
// warehouse is queried again.
const DefaultCacheTTL = 24 * time.Hour

type cacheFile struct {
	Timestamp time.Time                `json:"timestamp"`
	Source    string                   `json:"source"`
	Schema    string                   `json:"schema"`
	Tables    []models.TableDescriptor `json:"tables"`
}

// Cache persists discovered tables on local disk between runs.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewCache returns a cache stored at path. A ttl <= 0 uses DefaultCacheTTL.
func NewCache(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{path: path, ttl: ttl, now: time.Now}
}

// DefaultCachePath returns ~/.nl2db/schema_cache.json.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".nl2db", "schema_cache.json"), nil
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Load returns the cached tables for schema of the database identified by
// source. ok is false when there is no cache, it belongs to another database
// or schema, or it is older than the TTL.
func (c *Cache) Load(source, schema string) (tables []models.TableDescriptor, ok bool, err error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read schema cache: %w", err)
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, fmt.Errorf("failed to parse schema cache: %w", err)
	}
	if f.Source != source || f.Schema != schema || c.now().Sub(f.Timestamp) > c.ttl {
		return nil, false, nil
	}
	return f.Tables, true, nil
}

// Save writes tables to the cache, creating the directory if needed.
func (c *Cache) Save(source, schema string, tables []models.TableDescriptor) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(cacheFile{Timestamp: c.now(), Source: source, Schema: schema, Tables: tables})
	if err != nil {
		return fmt.Errorf("failed to encode schema cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace schema cache: %w", err)
	}
	return nil
}
