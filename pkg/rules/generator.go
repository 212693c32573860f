package rules

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/models"
)

// DefaultLimit caps row lists and grouped results without an explicit N.
const DefaultLimit = 1000

// Current-timestamp expressions per dialect. Redshift only evaluates
// CURRENT_TIMESTAMP on the leader node, so queries over tables need GETDATE().
const (
	NowRedshift = "GETDATE()"
	NowStandard = "CURRENT_TIMESTAMP"
)

// Generator is the deterministic natural-language to SQL engine.
type Generator struct {
	defaultLimit int
	nowExpr      string
	logger       *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithDriver picks the SQL dialect for the database driver in use
// ("redshift", "postgres", "duckdb").
func WithDriver(driver string) Option {
	return func(g *Generator) {
		g.nowExpr = NowExprFor(driver)
	}
}

// NowExprFor returns the current-timestamp expression for driver.
func NowExprFor(driver string) string {
	if driver == "redshift" {
		return NowRedshift
	}
	return NowStandard
}

// NewGenerator creates a Generator for Redshift unless an option says
// otherwise. A non-positive defaultLimit uses DefaultLimit.
func NewGenerator(defaultLimit int, logger *zap.Logger, opts ...Option) *Generator {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	g := &Generator{
		defaultLimit: defaultLimit,
		nowExpr:      NowRedshift,
		logger:       logger.Named("rules"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Classify maps question onto an Intent against the first of tables, which
// must be relevant to the question.
func (g *Generator) Classify(question string, tables []*models.TableDescriptor) *Intent {
	question = strings.TrimSpace(question)
	tokens := catalog.Tokenize(question)
	f := extractFeatures(question, tokens)
	f.nowExpr = g.nowExpr

	// Write requests are refused before looking at tables at all.
	if f.writeVerb != "" {
		in := patterns[0].build(f, nil, g.defaultLimit)
		in.Pattern = patterns[0].name
		return in
	}

	if len(tables) == 0 {
		return unsupported("no tables available")
	}
	target := tables[0]
	if catalog.Score(question, tokens, target) == 0 {
		return unsupported("question does not mention any known table")
	}

	for _, p := range patterns {
		if !p.match(f, target) {
			continue
		}
		in := p.build(f, target, g.defaultLimit)
		in.Pattern = p.name
		return in
	}
	return unsupported("no recognizable question pattern")
}

// Generate returns SQL for question using the first of tables as the target.
// Questions that cannot be classified fail with apperrors.ErrUnsupportedIntent;
// no partial SQL is ever returned.
func (g *Generator) Generate(question string, tables []*models.TableDescriptor) (string, error) {
	in := g.Classify(question, tables)
	if in.Kind == IntentUnsupported {
		g.logger.Debug("Unsupported question",
			zap.String("pattern", in.Pattern),
			zap.String("reason", in.Reason))
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnsupportedIntent, in.Reason)
	}

	sqlText := render(in)
	g.logger.Debug("Generated SQL",
		zap.String("pattern", in.Pattern),
		zap.String("intent", in.Kind.String()),
		zap.String("table", in.Table.Name))
	return sqlText, nil
}
