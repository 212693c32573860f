package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the configuration file read when present.
const DefaultPath = "config.yaml"

// Config holds all configuration for nl2db.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database password, API keys) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig selects and configures the query executor.
type DatabaseConfig struct {
	// Driver is "redshift" or "postgres" (pgx) or "duckdb" (database/sql).
	Driver         string        `yaml:"driver" env:"NL2DB_DRIVER" env-default:"redshift"`
	Host           string        `yaml:"host" env:"REDSHIFT_HOST" env-default:"localhost"`
	Port           int           `yaml:"port" env:"REDSHIFT_PORT" env-default:"5439"`
	Database       string        `yaml:"database" env:"REDSHIFT_DATABASE" env-default:"prod"`
	User           string        `yaml:"user" env:"REDSHIFT_USER"`
	Password       string        `yaml:"-" env:"REDSHIFT_PASSWORD"` // Secret - not in YAML
	Schema         string        `yaml:"schema" env:"REDSHIFT_SCHEMA"` // "public", or "main" for duckdb
	SSLMode        string        `yaml:"ssl_mode" env:"REDSHIFT_SSLMODE" env-default:"require"`
	MaxConnections int32         `yaml:"max_connections" env:"REDSHIFT_MAX_CONNECTIONS" env-default:"4"`
	QueryTimeout   time.Duration `yaml:"query_timeout" env:"NL2DB_QUERY_TIMEOUT" env-default:"60s"`
	// DuckDBPath is the database file for the duckdb driver; empty is in-memory.
	DuckDBPath string `yaml:"duckdb_path" env:"NL2DB_DUCKDB_PATH"`
}

// LLMConfig configures the LLM SQL backends. A backend is only constructed
// when its API key is set.
type LLMConfig struct {
	GeminiAPIKey    string `yaml:"-" env:"GEMINI_API_KEY"` // Secret - not in YAML
	GeminiModel     string `yaml:"gemini_model" env:"GEMINI_MODEL" env-default:"gemini-flash-latest"`
	GeminiEndpoint  string `yaml:"gemini_endpoint" env:"GEMINI_ENDPOINT" env-default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	AnthropicModel  string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-sonnet-20241022"`

	Temperature float64       `yaml:"temperature" env:"NL2DB_LLM_TEMPERATURE" env-default:"0"`
	MaxTokens   int           `yaml:"max_tokens" env:"NL2DB_LLM_MAX_TOKENS" env-default:"1024"`
	Timeout     time.Duration `yaml:"timeout" env:"NL2DB_LLM_TIMEOUT" env-default:"30s"`
	MaxRetries  int           `yaml:"max_retries" env:"NL2DB_LLM_MAX_RETRIES" env-default:"2"`

	// BreakerThreshold consecutive failures skip a backend for BreakerReset.
	BreakerThreshold int           `yaml:"breaker_threshold" env:"NL2DB_LLM_BREAKER_THRESHOLD" env-default:"3"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"NL2DB_LLM_BREAKER_RESET" env-default:"1m"`

	// RulesOnly disables LLM backends even when keys are present.
	RulesOnly bool `yaml:"rules_only" env:"NL2DB_RULES_ONLY" env-default:"false"`
}

// GeminiEnabled reports whether the Gemini backend should be constructed.
func (c *LLMConfig) GeminiEnabled() bool {
	return !c.RulesOnly && c.GeminiAPIKey != ""
}

// AnthropicEnabled reports whether the Anthropic backend should be constructed.
func (c *LLMConfig) AnthropicEnabled() bool {
	return !c.RulesOnly && c.AnthropicAPIKey != ""
}

// AgentConfig holds orchestrator limits.
type AgentConfig struct {
	MaxRows         int  `yaml:"max_rows" env:"NL2DB_MAX_ROWS" env-default:"1000"`
	MaxTables       int  `yaml:"max_tables" env:"NL2DB_MAX_TABLES" env-default:"5"`
	MaxContextChars int  `yaml:"max_context_chars" env:"NL2DB_MAX_CONTEXT_CHARS" env-default:"8000"`
	HistorySize     int  `yaml:"history_size" env:"NL2DB_HISTORY_SIZE" env-default:"100"`
	SQLCache        bool `yaml:"sql_cache" env:"NL2DB_SQL_CACHE" env-default:"true"`
	SQLCacheSize    int  `yaml:"sql_cache_size" env:"NL2DB_SQL_CACHE_SIZE" env-default:"128"`
}

// CatalogConfig controls how the table catalog is built.
type CatalogConfig struct {
	// AnnotationsPath overrides the built-in keyword and restriction file.
	AnnotationsPath string `yaml:"annotations_path" env:"NL2DB_ANNOTATIONS"`
	// CachePath defaults to ~/.nl2db/schema_cache.json.
	CachePath string        `yaml:"cache_path" env:"NL2DB_SCHEMA_CACHE"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"NL2DB_SCHEMA_CACHE_TTL" env-default:"24h"`
}

// LoggingConfig selects the zap logger flavor.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"NL2DB_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"NL2DB_LOG_FORMAT" env-default:"console"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	// Addr is the /metrics listen address; empty disables the listener.
	Addr string `yaml:"addr" env:"NL2DB_METRICS_ADDR"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: configuration then comes from the
// environment and defaults alone. The version parameter is injected at
// build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = "public"
		if cfg.Database.Driver == "duckdb" {
			cfg.Database.Schema = "main"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later with a less
// helpful error.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "redshift", "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("database user is required for the %s driver (set REDSHIFT_USER)", c.Database.Driver)
		}
	case "duckdb":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Agent.MaxRows <= 0 {
		return fmt.Errorf("max_rows must be positive, got %d", c.Agent.MaxRows)
	}
	if c.Agent.MaxTables <= 0 {
		return fmt.Errorf("max_tables must be positive, got %d", c.Agent.MaxTables)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", c.Database.QueryTimeout)
	}
	return nil
}

// ConnectionString returns a libpq keyword/value connection string for pgx.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteConnValue(ResolveHostForDocker(c.Host)),
		c.Port,
		quoteConnValue(c.User),
		quoteConnValue(c.Password),
		quoteConnValue(c.Database),
		quoteConnValue(c.SSLMode),
	)
}

// SourceID identifies the database without credentials, e.g.
// "redshift://analyst@warehouse:5439/prod" or "duckdb:///data/fleet.duckdb".
func (c *DatabaseConfig) SourceID() string {
	if c.Driver == "duckdb" {
		if c.DuckDBPath == "" {
			return "duckdb::memory:"
		}
		path := c.DuckDBPath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		return "duckdb://" + path
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Driver, c.User, c.Host, c.Port, c.Database)
}

// quoteConnValue single-quotes a keyword/value entry when it is empty or
// contains spaces, quotes or backslashes.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
