package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/llm"
	"github.com/nl2db/nl2db/pkg/logging"
	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/observability"
	"github.com/nl2db/nl2db/pkg/sql"
)

// AgentService answers natural-language questions with validated SQL and,
// unless asked only to explain, the rows it returns.
type AgentService interface {
	// Answer runs the full pipeline for one question. It never returns a
	// nil result; failures are reported in QueryResult.Err and every call
	// appends one history entry to the session.
	Answer(ctx context.Context, question string, explainOnly bool) *models.QueryResult

	// SchemaSummary renders every queryable table grouped by prefix.
	SchemaSummary() string

	// RelevantTables returns the context tables a question would be
	// answered with, most relevant first.
	RelevantTables(question string) []*models.TableDescriptor

	// Session returns the session this service records history in.
	Session() *Session

	// Backends lists the configured SQL backends in priority order.
	Backends() []string

	// Ping checks the database connection.
	Ping(ctx context.Context) error
}

// AgentConfig holds orchestration limits.
type AgentConfig struct {
	MaxTables       int
	MaxContextChars int
	QueryTimeout    time.Duration // 0 means no extra deadline
}

type agentService struct {
	catalog   *catalog.Catalog
	backends  []SQLBackend
	validator *sql.Validator
	executor  datasource.QueryExecutor // nil permits explain-only use
	session   *Session
	cfg       AgentConfig
	logger    *zap.Logger
}

// NewAgentService composes the pipeline. backends are tried in order; the
// rule-based backend should be last.
func NewAgentService(
	cat *catalog.Catalog,
	backends []SQLBackend,
	validator *sql.Validator,
	executor datasource.QueryExecutor,
	session *Session,
	cfg AgentConfig,
	logger *zap.Logger,
) AgentService {
	if session == nil {
		session = NewSession(DefaultHistorySize, 0)
	}
	return &agentService{
		catalog:   cat,
		backends:  backends,
		validator: validator,
		executor:  executor,
		session:   session,
		cfg:       cfg,
		logger:    logger.Named("agent"),
	}
}

var _ AgentService = (*agentService)(nil)

func (s *agentService) Answer(ctx context.Context, question string, explainOnly bool) *models.QueryResult {
	start := time.Now()
	question = strings.TrimSpace(question)
	result := &models.QueryResult{Question: question}

	defer func() {
		result.Duration = time.Since(start)
		s.record(result, start, explainOnly)
	}()

	if question == "" {
		result.Err = fmt.Errorf("%w: empty question", apperrors.ErrUnsupportedIntent)
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Err = fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
		return result
	}

	sqlText, backend, err := s.sqlFor(ctx, question)
	if err != nil {
		result.Err = err
		return result
	}
	result.Backend = backend

	vr := s.validator.Check(sqlText)
	result.SQL = vr.SQL
	if !vr.Accepted {
		observability.IncrementValidatorRejection()
		s.logger.Warn("Generated SQL rejected",
			zap.String("backend", backend),
			zap.String("reason", string(vr.Reason)),
			zap.String("sql", logging.SanitizeQuery(vr.SQL)),
			zap.Error(vr.Err))
		result.Err = vr.Err
		return result
	}
	s.session.CacheSQL(question, vr.SQL)

	if explainOnly {
		return result
	}

	columns, rows, err := s.execute(ctx, vr.SQL)
	if err != nil {
		result.Err = err
		return result
	}
	result.Columns = columns
	result.Rows = rows
	return result
}

// sqlFor returns cached SQL for question or generates it.
func (s *agentService) sqlFor(ctx context.Context, question string) (string, string, error) {
	if cached, ok := s.session.CachedSQL(question); ok {
		observability.IncrementSQLCacheHit()
		s.logger.Debug("SQL cache hit", zap.String("sql", logging.SanitizeQuery(cached)))
		return cached, BackendCache, nil
	}

	tables := s.catalog.Select(question, s.cfg.MaxTables, s.cfg.MaxContextChars)
	s.logger.Debug("Selected context tables", zap.Strings("tables", tableNames(tables)))

	return s.generate(ctx, question, tables)
}

// generate tries each backend in order. The first non-empty SQL wins;
// failures fall through. When every backend fails, an unsupported-intent
// verdict from the last backend is reported as such, anything else as
// backend unavailability.
func (s *agentService) generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, string, error) {
	if len(s.backends) == 0 {
		return "", "", fmt.Errorf("%w: no SQL backends configured", apperrors.ErrBackendUnavailable)
	}

	var errs []error
	var lastErr error
	for _, b := range s.backends {
		if err := ctx.Err(); err != nil {
			return "", "", fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
		}

		sqlText, err := b.Generate(ctx, question, tables)
		if err == nil && strings.TrimSpace(sqlText) == "" {
			err = fmt.Errorf("%w: %s returned empty SQL", apperrors.ErrBackendUnavailable, b.Name())
		}
		if err == nil {
			observability.ObserveBackendAttempt(b.Name(), observability.ResultSuccess)
			s.logger.Debug("SQL generated", zap.String("backend", b.Name()))
			return sqlText, b.Name(), nil
		}

		if apperrors.KindOf(err) == apperrors.KindCancelled {
			return "", "", err
		}

		observability.ObserveBackendAttempt(b.Name(), attemptResult(err))
		s.logger.Info("SQL backend failed, falling through",
			zap.String("backend", b.Name()),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.String("error", logging.SanitizeError(err)))
		errs = append(errs, err)
		lastErr = err
	}

	if errors.Is(lastErr, apperrors.ErrUnsupportedIntent) {
		return "", "", lastErr
	}
	return "", "", fmt.Errorf("%w: all SQL backends failed: %w", apperrors.ErrBackendUnavailable, errors.Join(errs...))
}

func (s *agentService) execute(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	if s.executor == nil {
		return nil, nil, fmt.Errorf("%w: no database connection configured", apperrors.ErrExecution)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
	}

	queryCtx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	qr, err := s.executor.Query(queryCtx, sqlText)
	if err != nil {
		// Caller cancellation wins over the per-query deadline.
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrCancelled, ctx.Err())
		}
		return nil, nil, err
	}
	return qr.ColumnNames(), qr.Rows, nil
}

// record appends the history entry and observes metrics for a finished answer.
func (s *agentService) record(result *models.QueryResult, start time.Time, explainOnly bool) {
	kind := result.ErrorKind()
	entry := models.HistoryEntry{
		ID:              uuid.New(),
		NaturalLanguage: result.Question,
		SQL:             result.SQL,
		Backend:         result.Backend,
		Timestamp:       start,
		Success:         result.Succeeded(),
		ExplainOnly:     explainOnly,
		DurationMs:      int(result.Duration.Milliseconds()),
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
		entry.ErrorKind = string(kind)
	}
	if result.Rows != nil {
		n := len(result.Rows)
		entry.RowCount = &n
	}
	s.session.Append(entry)

	outcome := "success"
	if kind != apperrors.KindNone {
		outcome = string(kind)
	}
	observability.ObserveQuestion(outcome, result.Duration)

	if result.Err != nil {
		s.logger.Info("Question failed",
			zap.String("kind", string(kind)),
			zap.String("backend", result.Backend),
			zap.Duration("duration", result.Duration),
			zap.String("error", logging.SanitizeError(result.Err)))
		return
	}
	s.logger.Info("Question answered",
		zap.String("backend", result.Backend),
		zap.Bool("explain_only", explainOnly),
		zap.Int("rows", len(result.Rows)),
		zap.Duration("duration", result.Duration))
}

func (s *agentService) SchemaSummary() string {
	return s.catalog.Summary()
}

func (s *agentService) RelevantTables(question string) []*models.TableDescriptor {
	return s.catalog.Select(question, s.cfg.MaxTables, s.cfg.MaxContextChars)
}

func (s *agentService) Session() *Session {
	return s.session
}

func (s *agentService) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

func (s *agentService) Ping(ctx context.Context) error {
	if s.executor == nil {
		return fmt.Errorf("%w: no database connection configured", apperrors.ErrExecution)
	}
	return s.executor.Ping(ctx)
}

func attemptResult(err error) string {
	switch {
	case errors.Is(err, llm.ErrCircuitOpen):
		return observability.ResultSkipped
	case errors.Is(err, apperrors.ErrUnsupportedIntent):
		return observability.ResultUnsupported
	default:
		return observability.ResultError
	}
}

func tableNames(tables []*models.TableDescriptor) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
