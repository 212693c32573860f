package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/adapters/datasource"
	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/rules"
	"github.com/nl2db/nl2db/pkg/sql"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.TableDescriptor{
		{
			Name:     "ods_camera_info_f",
			Keywords: []string{"camera"},
			Columns: []models.ColumnDescriptor{
				{Name: "camera_id", Type: models.ColumnTypeInteger, Role: models.RoleIdentifier},
				{Name: "camera_name", Type: models.ColumnTypeText},
				{Name: "status", Type: models.ColumnTypeText, Role: models.RoleStatus},
				{Name: "createtime", Type: models.ColumnTypeTimestamp, Role: models.RoleTimestamp},
			},
		},
		{
			Name:     "fleet_info",
			Keywords: []string{"fleet"},
			Columns: []models.ColumnDescriptor{
				{Name: "fleet_id", Type: models.ColumnTypeInteger, Role: models.RoleIdentifier},
				{Name: "fleet_name", Type: models.ColumnTypeText},
				{Name: "createtime", Type: models.ColumnTypeTimestamp, Role: models.RoleTimestamp},
			},
		},
		{
			Name:       "fact_device_status_weekly",
			Keywords:   []string{"device", "status"},
			Restricted: true,
			Columns: []models.ColumnDescriptor{
				{Name: "device_id", Type: models.ColumnTypeText, Role: models.RoleIdentifier},
			},
		},
	})
	require.NoError(t, err)
	return cat
}

// mockExecutor is a func-field QueryExecutor.
type mockExecutor struct {
	QueryFunc func(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error)

	mu      sync.Mutex
	queries []string
}

func (m *mockExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, sqlQuery)
	m.mu.Unlock()
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sqlQuery)
	}
	return &datasource.QueryResult{
		Columns:  []datasource.ColumnInfo{{Name: "n", Type: "INT8"}},
		Rows:     [][]any{{int64(1)}},
		RowCount: 1,
	}, nil
}

func (m *mockExecutor) Ping(context.Context) error { return nil }
func (m *mockExecutor) Close() error               { return nil }

func (m *mockExecutor) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// stubBackend returns a fixed answer and counts calls.
type stubBackend struct {
	name  string
	sql   string
	err   error
	calls int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, error) {
	b.calls++
	return b.sql, b.err
}

func rulesBackend() SQLBackend {
	return NewRuleBasedBackend(rules.NewGenerator(rules.DefaultLimit, zap.NewNop()))
}

func newTestAgent(t *testing.T, backends []SQLBackend, exec datasource.QueryExecutor, session *Session) AgentService {
	t.Helper()
	if session == nil {
		session = NewSession(10, 0)
	}
	return NewAgentService(
		testCatalog(t),
		backends,
		sql.NewValidator(sql.DefaultRowLimit),
		exec,
		session,
		AgentConfig{MaxTables: 5, MaxContextChars: 8000, QueryTimeout: time.Second},
		zap.NewNop(),
	)
}

func TestAgent_CountByStatus(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, nil, nil)

	result := agent.Answer(context.Background(), "Count cameras by status", true)

	require.NoError(t, result.Err)
	assert.Equal(t, "SELECT status, COUNT(*) FROM ods_camera_info_f GROUP BY status LIMIT 1000", result.SQL)
	assert.Equal(t, BackendRules, result.Backend)
	assert.Nil(t, result.Rows)

	entry, ok := agent.Session().Last()
	require.True(t, ok)
	assert.True(t, entry.Success)
	assert.True(t, entry.ExplainOnly)
	assert.Equal(t, "Count cameras by status", entry.NaturalLanguage)
	assert.Equal(t, result.SQL, entry.SQL)
	assert.Nil(t, entry.RowCount)
}

func TestAgent_TopRecentFleetsExecutes(t *testing.T) {
	exec := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
			return &datasource.QueryResult{
				Columns:  []datasource.ColumnInfo{{Name: "fleet_id"}, {Name: "fleet_name"}},
				Rows:     [][]any{{int32(1), "Acme"}, {int32(2), "Depot 7"}},
				RowCount: 2,
			}, nil
		},
	}
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, exec, nil)

	result := agent.Answer(context.Background(), "Show me the top 5 most recent fleets", false)

	require.NoError(t, result.Err)
	assert.Equal(t, "SELECT * FROM fleet_info ORDER BY createtime DESC LIMIT 5", result.SQL)
	assert.Equal(t, []string{"SELECT * FROM fleet_info ORDER BY createtime DESC LIMIT 5"}, exec.Queries())
	assert.Equal(t, []string{"fleet_id", "fleet_name"}, result.Columns)
	assert.Len(t, result.Rows, 2)

	entry, _ := agent.Session().Last()
	require.NotNil(t, entry.RowCount)
	assert.Equal(t, 2, *entry.RowCount)
	assert.False(t, entry.ExplainOnly)
}

func TestAgent_DeleteIsUnsupported(t *testing.T) {
	exec := &mockExecutor{}
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, exec, nil)

	result := agent.Answer(context.Background(), "Delete all cameras", false)

	assert.ErrorIs(t, result.Err, apperrors.ErrUnsupportedIntent)
	assert.Empty(t, result.SQL)
	assert.Empty(t, exec.Queries())

	entry, _ := agent.Session().Last()
	assert.False(t, entry.Success)
	assert.Empty(t, entry.SQL)
	assert.Equal(t, string(apperrors.KindUnsupportedIntent), entry.ErrorKind)
}

func TestAgent_ValidatorRejectionIsTerminal(t *testing.T) {
	rogue := &stubBackend{name: "gemini", sql: "DELETE FROM camera_info"}
	fallback := &stubBackend{name: "rules", sql: "SELECT * FROM ods_camera_info_f"}
	exec := &mockExecutor{}
	agent := newTestAgent(t, []SQLBackend{rogue, fallback}, exec, nil)

	result := agent.Answer(context.Background(), "Delete all cameras", false)

	assert.ErrorIs(t, result.Err, apperrors.ErrForbiddenOperation)
	assert.Equal(t, apperrors.KindForbiddenOperation, result.ErrorKind())
	assert.Equal(t, "DELETE FROM camera_info", result.SQL)
	assert.Equal(t, 0, fallback.calls)
	assert.Empty(t, exec.Queries())

	entry, _ := agent.Session().Last()
	assert.Equal(t, string(apperrors.KindForbiddenOperation), entry.ErrorKind)
	assert.Equal(t, "gemini", entry.Backend)
}

func TestAgent_FallsThroughFailingBackends(t *testing.T) {
	down := &stubBackend{name: "gemini", err: fmt.Errorf("%w: gemini: connection refused", apperrors.ErrBackendUnavailable)}
	empty := &stubBackend{name: "anthropic", sql: "   "}
	agent := newTestAgent(t, []SQLBackend{down, empty, rulesBackend()}, nil, nil)

	result := agent.Answer(context.Background(), "How many cameras are there?", true)

	require.NoError(t, result.Err)
	assert.Equal(t, BackendRules, result.Backend)
	assert.Equal(t, "SELECT COUNT(*) FROM ods_camera_info_f LIMIT 1000", result.SQL)
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestAgent_AllBackendsUnavailable(t *testing.T) {
	a := &stubBackend{name: "gemini", err: fmt.Errorf("%w: gemini: timeout", apperrors.ErrBackendUnavailable)}
	b := &stubBackend{name: "anthropic", err: fmt.Errorf("%w: anthropic: overloaded", apperrors.ErrBackendUnavailable)}
	agent := newTestAgent(t, []SQLBackend{a, b}, nil, nil)

	result := agent.Answer(context.Background(), "How many cameras are there?", true)

	assert.ErrorIs(t, result.Err, apperrors.ErrBackendUnavailable)
	assert.Contains(t, result.Err.Error(), "all SQL backends failed")
	assert.Contains(t, result.Err.Error(), "overloaded")
}

func TestAgent_NoBackends(t *testing.T) {
	agent := newTestAgent(t, nil, nil, nil)

	result := agent.Answer(context.Background(), "How many cameras are there?", true)
	assert.ErrorIs(t, result.Err, apperrors.ErrBackendUnavailable)
}

func TestAgent_LLMSQLGetsDefaultLimit(t *testing.T) {
	llmish := &stubBackend{name: "gemini", sql: "SELECT * FROM fleet_info"}
	agent := newTestAgent(t, []SQLBackend{llmish, rulesBackend()}, nil, nil)

	result := agent.Answer(context.Background(), "list fleets", true)

	require.NoError(t, result.Err)
	assert.Equal(t, "gemini", result.Backend)
	assert.Equal(t, "SELECT * FROM fleet_info LIMIT 1000", result.SQL)
}

func TestAgent_CancelledBeforeStart(t *testing.T) {
	backend := &stubBackend{name: "gemini", sql: "SELECT 1"}
	agent := newTestAgent(t, []SQLBackend{backend}, &mockExecutor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := agent.Answer(ctx, "Count cameras by status", false)

	assert.ErrorIs(t, result.Err, apperrors.ErrCancelled)
	assert.Equal(t, 0, backend.calls)

	entry, ok := agent.Session().Last()
	require.True(t, ok)
	assert.Equal(t, string(apperrors.KindCancelled), entry.ErrorKind)
}

func TestAgent_CancelledDuringGenerationStopsFallthrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &cancellingBackend{cancel: cancel}
	second := &stubBackend{name: "rules", sql: "SELECT 1"}
	agent := newTestAgent(t, []SQLBackend{first, second}, nil, nil)

	result := agent.Answer(ctx, "Count cameras by status", true)

	assert.ErrorIs(t, result.Err, apperrors.ErrCancelled)
	assert.Equal(t, 0, second.calls)
}

// cancellingBackend cancels the caller's context and reports cancellation.
type cancellingBackend struct {
	cancel context.CancelFunc
}

func (b *cancellingBackend) Name() string { return "gemini" }

func (b *cancellingBackend) Generate(ctx context.Context, question string, tables []*models.TableDescriptor) (string, error) {
	b.cancel()
	return "", fmt.Errorf("%w: %v", apperrors.ErrCancelled, context.Canceled)
}

func TestAgent_ExecutionErrorIsolated(t *testing.T) {
	calls := 0
	exec := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
			calls++
			if calls == 1 {
				return nil, datasource.ExecutionError(ctx, "failed to execute query", errors.New(`permission denied for relation ods_camera_info_f`))
			}
			return &datasource.QueryResult{Columns: []datasource.ColumnInfo{{Name: "count"}}, Rows: [][]any{{int64(4)}}, RowCount: 1}, nil
		},
	}
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, exec, nil)

	first := agent.Answer(context.Background(), "How many cameras are there?", false)
	assert.ErrorIs(t, first.Err, apperrors.ErrExecution)
	assert.Contains(t, first.Err.Error(), "permission denied")
	assert.NotEmpty(t, first.SQL)

	second := agent.Answer(context.Background(), "How many fleets are there?", false)
	require.NoError(t, second.Err)
	assert.Equal(t, [][]any{{int64(4)}}, second.Rows)
}

func TestAgent_QueryTimeout(t *testing.T) {
	exec := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
			<-ctx.Done()
			return nil, datasource.ExecutionError(ctx, "failed to execute query", ctx.Err())
		},
	}
	agent := NewAgentService(
		testCatalog(t),
		[]SQLBackend{rulesBackend()},
		sql.NewValidator(0),
		exec,
		NewSession(10, 0),
		AgentConfig{MaxTables: 5, MaxContextChars: 8000, QueryTimeout: 20 * time.Millisecond},
		zap.NewNop(),
	)

	result := agent.Answer(context.Background(), "How many cameras are there?", false)

	assert.ErrorIs(t, result.Err, apperrors.ErrExecution)
	assert.Contains(t, result.Err.Error(), "timed out")
}

func TestAgent_NoExecutor(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, nil, nil)

	result := agent.Answer(context.Background(), "How many cameras are there?", false)
	assert.ErrorIs(t, result.Err, apperrors.ErrExecution)
	assert.ErrorContains(t, agent.Ping(context.Background()), "no database connection")
}

func TestAgent_EmptyQuestion(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, nil, nil)

	result := agent.Answer(context.Background(), "   ", true)
	assert.ErrorIs(t, result.Err, apperrors.ErrUnsupportedIntent)
	assert.Equal(t, 1, agent.Session().Len())
}

func TestAgent_SQLCache(t *testing.T) {
	backend := &stubBackend{name: "gemini", sql: "SELECT COUNT(*) FROM fleet_info"}
	agent := newTestAgent(t, []SQLBackend{backend}, nil, NewSession(10, 8))

	first := agent.Answer(context.Background(), "How many fleets?", true)
	second := agent.Answer(context.Background(), "  how many   FLEETS ", true)

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, "gemini", first.Backend)
	assert.Equal(t, BackendCache, second.Backend)
	assert.Equal(t, first.SQL, second.SQL)
}

func TestAgent_HistoryBounded(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, nil, NewSession(2, 0))

	for _, q := range []string{"How many cameras are there?", "list fleets", "Count cameras by status"} {
		agent.Answer(context.Background(), q, true)
	}

	history := agent.Session().History(0)
	require.Len(t, history, 2)
	assert.Equal(t, "list fleets", history[0].NaturalLanguage)
	assert.Equal(t, "Count cameras by status", history[1].NaturalLanguage)
}

func TestAgent_SchemaSummaryHidesRestricted(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{rulesBackend()}, nil, nil)

	summary := agent.SchemaSummary()
	assert.Contains(t, summary, "ods_camera_info_f")
	assert.Contains(t, summary, "fleet_info")
	assert.False(t, strings.Contains(summary, "fact_device_status_weekly"))
}

func TestAgent_Backends(t *testing.T) {
	agent := newTestAgent(t, []SQLBackend{&stubBackend{name: "gemini"}, rulesBackend()}, nil, nil)
	assert.Equal(t, []string{"gemini", "rules"}, agent.Backends())
}
