package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/llm"
	"github.com/nl2db/nl2db/pkg/logging"
	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/retry"
	"github.com/nl2db/nl2db/pkg/rules"
)

// Backend names, also used as metric labels and in history entries.
const (
	BackendGemini    = "gemini"
	BackendAnthropic = "anthropic"
	BackendRules     = "rules"
	BackendCache     = "cache"
)

// SQLBackend turns a question and its context tables into SQL text.
// Failures fall through to the next backend; they wrap
// apperrors.ErrBackendUnavailable, apperrors.ErrUnsupportedIntent or
// apperrors.ErrCancelled.
type SQLBackend interface {
	Name() string
	Generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, error)
}

// LLMBackendConfig configures an LLM-backed SQLBackend.
type LLMBackendConfig struct {
	Name        string
	Generator   llm.TextGenerator
	Breaker     *llm.CircuitBreaker // optional
	Retry       *retry.Config       // nil uses retry.DefaultConfig
	Timeout     time.Duration       // per call; 0 means no extra deadline
	Temperature float64
	MaxRows     int
	Prompt      catalog.PromptContextOptions
}

type llmBackend struct {
	cfg    LLMBackendConfig
	logger *zap.Logger
}

// NewLLMBackend creates a backend that prompts cfg.Generator for SQL.
func NewLLMBackend(cfg LLMBackendConfig, logger *zap.Logger) SQLBackend {
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}
	return &llmBackend{
		cfg:    cfg,
		logger: logger.Named("backend." + cfg.Name),
	}
}

// NewGeminiBackend prompts Gemini through its OpenAI-compatible endpoint.
func NewGeminiBackend(client *llm.Client, cfg LLMBackendConfig, logger *zap.Logger) SQLBackend {
	cfg.Name = BackendGemini
	cfg.Generator = client
	return NewLLMBackend(cfg, logger)
}

// NewAnthropicBackend prompts Claude through the Messages API.
func NewAnthropicBackend(client *llm.AnthropicClient, cfg LLMBackendConfig, logger *zap.Logger) SQLBackend {
	cfg.Name = BackendAnthropic
	cfg.Generator = client
	return NewLLMBackend(cfg, logger)
}

var _ SQLBackend = (*llmBackend)(nil)

func (b *llmBackend) Name() string {
	return b.cfg.Name
}

func (b *llmBackend) Generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
	}
	if b.cfg.Breaker != nil {
		if err := b.cfg.Breaker.Allow(); err != nil {
			return "", fmt.Errorf("%w: %s: %w", apperrors.ErrBackendUnavailable, b.cfg.Name, err)
		}
	}

	prompt := llm.BuildSQLPrompt(llm.SQLPromptInput{
		SchemaContext: catalog.BuildPromptContext(tables, b.cfg.Prompt),
		Question:      question,
		MaxRows:       b.cfg.MaxRows,
	})

	result, err := retry.DoIfRetryable(ctx, b.cfg.Retry, func() (*llm.GenerateResponseResult, error) {
		callCtx := ctx
		if b.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
			defer cancel()
		}
		return b.cfg.Generator.GenerateResponse(callCtx, prompt, llm.SQLSystemMessage, b.cfg.Temperature)
	})
	if err != nil {
		if ctx.Err() != nil {
			// A trial call that was cancelled proves nothing; re-open.
			if b.cfg.Breaker != nil && b.cfg.Breaker.State() == llm.CircuitHalfOpen {
				b.cfg.Breaker.RecordFailure()
			}
			return "", fmt.Errorf("%w: %v", apperrors.ErrCancelled, ctx.Err())
		}
		b.recordFailure()
		b.logger.Warn("LLM call failed",
			zap.String("model", b.cfg.Generator.GetModel()),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))
		return "", fmt.Errorf("%w: %s: %w", apperrors.ErrBackendUnavailable, b.cfg.Name, err)
	}
	b.recordSuccess()

	sqlText, err := llm.ExtractSQL(result.Content)
	if err != nil {
		b.logger.Info("LLM answer contained no SQL",
			zap.String("answer", logging.TruncateString(result.Content, logging.MaxQueryLogLength)))
		return "", fmt.Errorf("%w: %s: %w", apperrors.ErrBackendUnavailable, b.cfg.Name, err)
	}

	b.logger.Debug("LLM generated SQL",
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens))
	return sqlText, nil
}

func (b *llmBackend) recordFailure() {
	if b.cfg.Breaker == nil {
		return
	}
	b.cfg.Breaker.RecordFailure()
	if b.cfg.Breaker.State() == llm.CircuitOpen {
		b.logger.Warn("Circuit breaker opened, backend will be skipped",
			zap.Int("consecutive_failures", b.cfg.Breaker.ConsecutiveFailures()))
	}
}

func (b *llmBackend) recordSuccess() {
	if b.cfg.Breaker != nil {
		b.cfg.Breaker.RecordSuccess()
	}
}

// RuleBasedBackend wraps the deterministic rule engine.
type RuleBasedBackend struct {
	generator *rules.Generator
}

// NewRuleBasedBackend creates the fallback backend.
func NewRuleBasedBackend(generator *rules.Generator) *RuleBasedBackend {
	return &RuleBasedBackend{generator: generator}
}

var _ SQLBackend = (*RuleBasedBackend)(nil)

func (b *RuleBasedBackend) Name() string {
	return BackendRules
}

func (b *RuleBasedBackend) Generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
	}
	return b.generator.Generate(question, tables)
}
