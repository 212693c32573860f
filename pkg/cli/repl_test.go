package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/services"
)

// fakeAgent answers from a func field and records into a real Session.
type fakeAgent struct {
	answer  func(question string, explainOnly bool) *models.QueryResult
	session *services.Session
	asked   []string
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{session: services.NewSession(10, 0)}
}

func (f *fakeAgent) Answer(ctx context.Context, question string, explainOnly bool) *models.QueryResult {
	f.asked = append(f.asked, fmt.Sprintf("%s|%v", question, explainOnly))
	r := &models.QueryResult{Question: question, SQL: "SELECT 1", Backend: "rules"}
	if f.answer != nil {
		r = f.answer(question, explainOnly)
	}
	entry := models.HistoryEntry{NaturalLanguage: question, SQL: r.SQL, Success: r.Err == nil}
	if r.Err != nil {
		entry.ErrorKind = string(r.ErrorKind())
	}
	f.session.Append(entry)
	return r
}

func (f *fakeAgent) SchemaSummary() string { return "# Database Schema Summary" }

func (f *fakeAgent) RelevantTables(question string) []*models.TableDescriptor {
	return []*models.TableDescriptor{{
		Name:        "fleet_info",
		Description: "Fleets",
		Columns:     []models.ColumnDescriptor{{Name: "fleet_id", Type: models.ColumnTypeInteger}},
	}}
}

func (f *fakeAgent) Session() *services.Session { return f.session }
func (f *fakeAgent) Backends() []string         { return []string{"rules"} }
func (f *fakeAgent) Ping(context.Context) error { return nil }

var _ services.AgentService = (*fakeAgent)(nil)

func runREPL(t *testing.T, agent services.AgentService, input string) string {
	t.Helper()
	var out bytes.Buffer
	r := newREPL(agent, strings.NewReader(input), &out, true)
	require.NoError(t, r.run(context.Background()))
	return out.String()
}

func TestREPL_AsksAndExplains(t *testing.T) {
	agent := newFakeAgent()

	out := runREPL(t, agent, "count cameras by status\n/explain top 5 fleets\n/quit\nnever asked\n")

	assert.Equal(t, []string{"count cameras by status|false", "top 5 fleets|true"}, agent.asked)
	assert.Contains(t, out, "SQL (rules):")
	assert.Contains(t, out, "SELECT 1")
}

func TestREPL_Commands(t *testing.T) {
	agent := newFakeAgent()

	out := runREPL(t, agent, "/help\n/schema\n/schema fleets\n/sql\nhow many fleets\n/sql\n/history\n/bogus\n")

	assert.Contains(t, out, "/explain <q>")
	assert.Contains(t, out, "# Database Schema Summary")
	assert.Contains(t, out, "fleet_info: fleet_id(integer)")
	assert.Contains(t, out, "No SQL generated yet.")
	assert.Contains(t, out, "1. [")
	assert.Contains(t, out, "how many fleets ok")
	assert.Contains(t, out, "Unknown command: /bogus")
}

func TestREPL_UsageErrors(t *testing.T) {
	agent := newFakeAgent()

	out := runREPL(t, agent, "/explain\n/history abc\n/history 0\n")

	assert.Empty(t, agent.asked)
	assert.Contains(t, out, "usage: /explain <question>")
	assert.Equal(t, 2, strings.Count(out, "usage: /history [n]"))
}

func TestREPL_ErrorsDoNotEndSession(t *testing.T) {
	agent := newFakeAgent()
	agent.answer = func(question string, explainOnly bool) *models.QueryResult {
		if strings.HasPrefix(question, "delete") {
			return &models.QueryResult{Question: question, Err: fmt.Errorf("%w: \"delete\" requests are not supported", apperrors.ErrUnsupportedIntent)}
		}
		return &models.QueryResult{Question: question, SQL: "SELECT COUNT(*) FROM fleet_info LIMIT 1000", Columns: []string{"count"}, Rows: [][]any{{int64(3)}}}
	}

	out := runREPL(t, agent, "delete all cameras\nhow many fleets\n")

	assert.Contains(t, out, "Error [unsupported_intent]:")
	assert.Contains(t, out, "Try rephrasing")
	assert.Contains(t, out, "(1 row, 0s)")
	assert.Len(t, agent.asked, 2)
}

func TestREPL_StopsWhenContextDone(t *testing.T) {
	agent := newFakeAgent()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	r := newREPL(agent, strings.NewReader("how many fleets\n"), &out, true)
	require.NoError(t, r.run(ctx))
	assert.Empty(t, agent.asked)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestREPL_InputError(t *testing.T) {
	var out bytes.Buffer
	r := newREPL(newFakeAgent(), failingReader{}, &out, true)
	assert.EqualError(t, r.run(context.Background()), "read failed")
}
