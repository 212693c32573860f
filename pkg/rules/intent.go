// Package rules turns natural-language questions into SQL with a fixed,
// ordered table of intent patterns. It never guesses: a question it cannot
// classify is reported as unsupported.
package rules

import (
	"github.com/nl2db/nl2db/pkg/models"
)

// IntentKind is the shape of a classified question.
type IntentKind int

const (
	IntentUnsupported IntentKind = iota
	IntentRowList
	IntentCount
	IntentAggregate
)

func (k IntentKind) String() string {
	switch k {
	case IntentRowList:
		return "row_list"
	case IntentCount:
		return "count"
	case IntentAggregate:
		return "aggregate"
	default:
		return "unsupported"
	}
}

// Grouping is a GROUP BY target: a plain column or a truncated timestamp.
type Grouping struct {
	Expr  string // SQL expression
	Alias string // set when Expr is not a bare column
}

// Ordering is an ORDER BY target.
type Ordering struct {
	Expr       string
	Descending bool
}

// Intent is the classified form of one question. It lives only for the
// duration of a single Generate call.
type Intent struct {
	Kind    IntentKind
	Pattern string // name of the pattern that matched
	Reason  string // why the question is unsupported

	Table     *models.TableDescriptor
	Aggregate string // AVG, SUM, MAX or MIN
	Measure   *models.ColumnDescriptor
	GroupBy   *Grouping
	Filters   []string // WHERE predicates, ANDed
	OrderBy   *Ordering
	Limit     int // 0 means none
}

func unsupported(reason string) *Intent {
	return &Intent{Kind: IntentUnsupported, Reason: reason}
}
