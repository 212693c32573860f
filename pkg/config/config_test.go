package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"NL2DB_DRIVER", "REDSHIFT_HOST", "REDSHIFT_PORT", "REDSHIFT_DATABASE",
	"REDSHIFT_USER", "REDSHIFT_PASSWORD", "REDSHIFT_SCHEMA", "REDSHIFT_SSLMODE",
	"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "NL2DB_RULES_ONLY",
	"NL2DB_MAX_ROWS", "NL2DB_MAX_TABLES", "NL2DB_QUERY_TIMEOUT",
	"NL2DB_LOG_LEVEL", "NL2DB_METRICS_ADDR",
}

// clearEnv unsets variables for the duration of the test. cleanenv treats
// an empty but present variable as set, so t.Setenv("X", "") is not enough.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		if old, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  host: "cluster.example.com"
  port: 5439
  user: "yaml_user"
  database: "analytics"
agent:
  max_rows: 250
logging:
  level: "debug"
`)

	t.Setenv("REDSHIFT_USER", "env_user")
	t.Setenv("NL2DB_MAX_ROWS", "500")

	cfg, err := Load(path, "test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Database.User != "env_user" {
		t.Errorf("expected Database.User=env_user (from env), got %s", cfg.Database.User)
	}
	if cfg.Agent.MaxRows != 500 {
		t.Errorf("expected Agent.MaxRows=500 (from env), got %d", cfg.Agent.MaxRows)
	}
	if cfg.Database.Host != "cluster.example.com" {
		t.Errorf("expected Database.Host=cluster.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Database.Database != "analytics" {
		t.Errorf("expected Database.Database=analytics (from yaml), got %s", cfg.Database.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level=debug (from yaml), got %s", cfg.Logging.Level)
	}
}

func TestLoad_MissingFileUsesEnvAndDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDSHIFT_USER", "analyst")
	t.Setenv("REDSHIFT_PASSWORD", "secret")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Database.Driver != "redshift" {
		t.Errorf("expected default driver redshift, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Port != 5439 {
		t.Errorf("expected default port 5439, got %d", cfg.Database.Port)
	}
	if cfg.Database.Schema != "public" {
		t.Errorf("expected default schema public, got %s", cfg.Database.Schema)
	}
	if cfg.Database.Database != "prod" {
		t.Errorf("expected default database prod, got %s", cfg.Database.Database)
	}
	if cfg.Database.QueryTimeout != 60*time.Second {
		t.Errorf("expected default query timeout 60s, got %s", cfg.Database.QueryTimeout)
	}
	if cfg.Agent.MaxRows != 1000 {
		t.Errorf("expected default max rows 1000, got %d", cfg.Agent.MaxRows)
	}
	if cfg.Agent.MaxTables != 5 {
		t.Errorf("expected default max tables 5, got %d", cfg.Agent.MaxTables)
	}
	if cfg.Catalog.CacheTTL != 24*time.Hour {
		t.Errorf("expected default cache TTL 24h, got %s", cfg.Catalog.CacheTTL)
	}
	if cfg.LLM.BreakerThreshold != 3 {
		t.Errorf("expected default breaker threshold 3, got %d", cfg.LLM.BreakerThreshold)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("expected password from env, got %q", cfg.Database.Password)
	}
	if !cfg.LLM.GeminiEnabled() {
		t.Error("expected Gemini enabled when GEMINI_API_KEY is set")
	}
	if cfg.LLM.AnthropicEnabled() {
		t.Error("expected Anthropic disabled without ANTHROPIC_API_KEY")
	}
}

func TestLoad_SecretsNotReadFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  user: "analyst"
  password: "from-yaml"
llm:
  gemini_api_key: "from-yaml"
`)

	cfg, err := Load(path, "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Password != "" {
		t.Errorf("expected empty password, got %q", cfg.Database.Password)
	}
	if cfg.LLM.GeminiAPIKey != "" {
		t.Errorf("expected empty Gemini key, got %q", cfg.LLM.GeminiAPIKey)
	}
}

func TestLoad_RulesOnlyDisablesBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("NL2DB_DRIVER", "duckdb")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("NL2DB_RULES_ONLY", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.LLM.GeminiEnabled() || cfg.LLM.AnthropicEnabled() {
		t.Error("expected LLM backends disabled in rules-only mode")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing user for redshift",
			env:     map[string]string{},
			wantErr: "database user is required",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"NL2DB_DRIVER": "oracle"},
			wantErr: `unknown database driver "oracle"`,
		},
		{
			name:    "non-positive max rows",
			env:     map[string]string{"NL2DB_DRIVER": "duckdb", "NL2DB_MAX_ROWS": "0"},
			wantErr: "max_rows must be positive",
		},
		{
			name:    "non-positive max tables",
			env:     map[string]string{"NL2DB_DRIVER": "duckdb", "NL2DB_MAX_TABLES": "-1"},
			wantErr: "max_tables must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_DriverNormalized(t *testing.T) {
	clearEnv(t)
	t.Setenv("NL2DB_DRIVER", "  DuckDB ")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Driver != "duckdb" {
		t.Errorf("expected driver duckdb, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Schema != "main" {
		t.Errorf("expected duckdb default schema main, got %q", cfg.Database.Schema)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "cluster.example.com",
		Port:     5439,
		User:     "analyst",
		Password: "it's a secret",
		Database: "prod",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	want := `host=cluster.example.com port=5439 user=analyst password='it\'s a secret' dbname=prod sslmode=require`
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestQuoteConnValue(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"", "''"},
		{"has space", "'has space'"},
		{`back\slash`, `'back\\slash'`},
	}
	for _, tt := range tests {
		if got := quoteConnValue(tt.input); got != tt.expected {
			t.Errorf("quoteConnValue(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDatabaseConfig_SourceID(t *testing.T) {
	rs := DatabaseConfig{Driver: "redshift", Host: "warehouse", Port: 5439, Database: "prod", User: "analyst", Password: "secret"}
	if got, want := rs.SourceID(), "redshift://analyst@warehouse:5439/prod"; got != want {
		t.Errorf("SourceID() = %q, want %q", got, want)
	}
	if strings.Contains(rs.SourceID(), "secret") {
		t.Error("SourceID must not contain the password")
	}

	other := rs
	other.Host = "staging"
	if rs.SourceID() == other.SourceID() {
		t.Error("different hosts must have different source IDs")
	}

	mem := DatabaseConfig{Driver: "duckdb"}
	if got := mem.SourceID(); got != "duckdb::memory:" {
		t.Errorf("in-memory SourceID() = %q", got)
	}

	file := DatabaseConfig{Driver: "duckdb", DuckDBPath: filepath.Join("data", "fleet.duckdb")}
	if got := file.SourceID(); !strings.HasPrefix(got, "duckdb://") || !filepath.IsAbs(strings.TrimPrefix(got, "duckdb://")) {
		t.Errorf("file SourceID() = %q, want an absolute duckdb path", got)
	}
}
