package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/config"
	"github.com/nl2db/nl2db/pkg/llm"
	"github.com/nl2db/nl2db/pkg/logging"
	"github.com/nl2db/nl2db/pkg/retry"
	"github.com/nl2db/nl2db/pkg/rules"
	"github.com/nl2db/nl2db/pkg/services"
	"github.com/nl2db/nl2db/pkg/sql"

	// Database drivers register themselves with the datasource registry.
	_ "github.com/nl2db/nl2db/pkg/adapters/datasource/postgres"
	_ "github.com/nl2db/nl2db/pkg/adapters/datasource/sqldb"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath    string
	refreshSchema bool
	rulesOnly     bool
	logLevel      string
}

// app is the wired pipeline for one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	executor datasource.QueryExecutor
	agent    services.AgentService
}

// newApp loads configuration, connects to the database, loads the catalog
// and assembles the backend chain.
func newApp(ctx context.Context, version string, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath, version)
	if err != nil {
		return nil, err
	}
	if opts.rulesOnly {
		cfg.LLM.RulesOnly = true
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	// stdout belongs to results and to the MCP protocol.
	logger, err := logging.NewLogger(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})
	if err != nil {
		return nil, err
	}

	exec, err := openExecutor(ctx, &cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	cat, err := loadCatalog(ctx, cfg, exec, opts.refreshSchema, logger)
	if err != nil {
		_ = exec.Close()
		_ = logger.Sync()
		return nil, err
	}

	backends, err := buildBackends(cfg, logger)
	if err != nil {
		_ = exec.Close()
		_ = logger.Sync()
		return nil, err
	}

	cacheSize := 0
	if cfg.Agent.SQLCache {
		cacheSize = cfg.Agent.SQLCacheSize
	}

	agent := services.NewAgentService(
		cat,
		backends,
		sql.NewValidator(cfg.Agent.MaxRows),
		exec,
		services.NewSession(cfg.Agent.HistorySize, cacheSize),
		services.AgentConfig{
			MaxTables:       cfg.Agent.MaxTables,
			MaxContextChars: cfg.Agent.MaxContextChars,
			QueryTimeout:    cfg.Database.QueryTimeout,
		},
		logger,
	)

	logger.Info("Ready",
		zap.String("version", version),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("tables", cat.Len()),
		zap.Strings("backends", agent.Backends()))

	return &app{cfg: cfg, logger: logger, executor: exec, agent: agent}, nil
}

// Close releases the database connection and flushes the logger.
func (a *app) Close() {
	if err := a.executor.Close(); err != nil {
		a.logger.Warn("Failed to close database connection", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openExecutor connects and pings, retrying transient failures.
func openExecutor(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (datasource.QueryExecutor, error) {
	exec, err := retry.DoWithResult(ctx, retry.DatabaseConfig(), func() (datasource.QueryExecutor, error) {
		exec, err := datasource.NewQueryExecutor(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := exec.Ping(ctx); err != nil {
			_ = exec.Close()
			return nil, err
		}
		return exec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %s", cfg.Driver, logging.SanitizeError(err))
	}
	return exec, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, exec datasource.QueryExecutor, refresh bool, logger *zap.Logger) (*catalog.Catalog, error) {
	annotations := catalog.DefaultAnnotations()
	if cfg.Catalog.AnnotationsPath != "" {
		a, err := catalog.LoadAnnotations(cfg.Catalog.AnnotationsPath)
		if err != nil {
			return nil, err
		}
		annotations = a
	}

	var cache *catalog.Cache
	cachePath := cfg.Catalog.CachePath
	if cachePath == "" {
		p, err := catalog.DefaultCachePath()
		if err != nil {
			logger.Warn("Schema cache disabled", zap.Error(err))
		}
		cachePath = p
	}
	if cachePath != "" {
		cache = catalog.NewCache(cachePath, cfg.Catalog.CacheTTL)
	}

	discoverer, err := datasource.DiscovererFor(ctx, exec, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	defer discoverer.Close()

	return catalog.NewLoader(discoverer, cache, annotations, cfg.Database.SourceID(), cfg.Database.Schema, logger).Load(ctx, refresh)
}

// buildBackends returns the configured LLM backends in priority order
// followed by the rule engine.
func buildBackends(cfg *config.Config, logger *zap.Logger) ([]services.SQLBackend, error) {
	var backends []services.SQLBackend

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries

	backendCfg := func(name string) services.LLMBackendConfig {
		return services.LLMBackendConfig{
			Breaker: llm.NewCircuitBreaker(name, llm.CircuitBreakerConfig{
				Threshold:  cfg.LLM.BreakerThreshold,
				ResetAfter: cfg.LLM.BreakerReset,
			}),
			Retry:       retryCfg,
			Timeout:     cfg.LLM.Timeout,
			Temperature: cfg.LLM.Temperature,
			MaxRows:     cfg.Agent.MaxRows,
			Prompt: catalog.PromptContextOptions{
				Database: cfg.Database.Database,
				Schema:   cfg.Database.Schema,
			},
		}
	}

	if cfg.LLM.GeminiEnabled() {
		client, err := llm.NewClient(&llm.Config{
			Endpoint:  cfg.LLM.GeminiEndpoint,
			Model:     cfg.LLM.GeminiModel,
			APIKey:    cfg.LLM.GeminiAPIKey,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		backends = append(backends, services.NewGeminiBackend(client, backendCfg(services.BackendGemini), logger))
	}

	if cfg.LLM.AnthropicEnabled() {
		client, err := llm.NewAnthropicClient(&llm.AnthropicConfig{
			APIKey:    cfg.LLM.AnthropicAPIKey,
			Model:     cfg.LLM.AnthropicModel,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		backends = append(backends, services.NewAnthropicBackend(client, backendCfg(services.BackendAnthropic), logger))
	}

	if len(backends) == 0 {
		logger.Info("No LLM API keys configured, using the rule-based generator only")
	}

	backends = append(backends, services.NewRuleBasedBackend(rules.NewGenerator(cfg.Agent.MaxRows, logger, rules.WithDriver(cfg.Database.Driver))))
	return backends, nil
}
