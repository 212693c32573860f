package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// clause identifies one slot of a SELECT statement. The constant order is the
// only order in which clauses are ever rendered.
type clause int

const (
	clauseSelect clause = iota
	clauseFrom
	clauseWhere
	clauseGroupBy
	clauseOrderBy
	clauseLimit
	clauseCount
)

var clauseKeywords = [clauseCount]string{
	clauseSelect:  "SELECT",
	clauseFrom:    "FROM",
	clauseWhere:   "WHERE",
	clauseGroupBy: "GROUP BY",
	clauseOrderBy: "ORDER BY",
	clauseLimit:   "LIMIT",
}

// queryBuilder collects clause bodies in any order and renders them in
// clause order, so LIMIT can never precede WHERE or ORDER BY.
type queryBuilder struct {
	bodies [clauseCount]string
}

func (b *queryBuilder) set(c clause, body string) {
	b.bodies[c] = body
}

func (b *queryBuilder) String() string {
	parts := make([]string, 0, clauseCount)
	for c := clauseSelect; c < clauseCount; c++ {
		if b.bodies[c] == "" {
			continue
		}
		parts = append(parts, clauseKeywords[c]+" "+b.bodies[c])
	}
	return strings.Join(parts, " ")
}

// render assembles the SQL for a classified intent.
func render(in *Intent) string {
	var b queryBuilder

	switch in.Kind {
	case IntentCount:
		b.set(clauseSelect, withGroup(in.GroupBy, "COUNT(*)"))
	case IntentAggregate:
		b.set(clauseSelect, withGroup(in.GroupBy, aggregateExpr(in)))
	default:
		b.set(clauseSelect, "*")
	}

	b.set(clauseFrom, tableRef(in.Table))

	if len(in.Filters) > 0 {
		b.set(clauseWhere, strings.Join(in.Filters, " AND "))
	}
	if in.GroupBy != nil {
		b.set(clauseGroupBy, in.GroupBy.Expr)
	}
	if in.OrderBy != nil {
		dir := "ASC"
		if in.OrderBy.Descending {
			dir = "DESC"
		}
		b.set(clauseOrderBy, in.OrderBy.Expr+" "+dir)
	}
	if in.Limit > 0 {
		b.set(clauseLimit, strconv.Itoa(in.Limit))
	}

	return b.String()
}

func aggregateExpr(in *Intent) string {
	return in.Aggregate + "(" + quoteIdent(in.Measure.Name) + ")"
}

func withGroup(g *Grouping, expr string) string {
	if g == nil {
		return expr
	}
	if g.Alias != "" {
		return g.Expr + " AS " + g.Alias + ", " + expr
	}
	return g.Expr + ", " + expr
}

// windowPredicate renders a time window as a predicate on column. Day and
// longer windows count from CURRENT_DATE; hour windows from now.
func windowPredicate(w *timeWindow, column, now string) string {
	switch w.kind {
	case "today":
		return column + " >= CURRENT_DATE"
	case "yesterday":
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '1 day' AND %s < CURRENT_DATE", column, column)
	case "this":
		return fmt.Sprintf("%s >= DATE_TRUNC('%s', CURRENT_DATE)", column, w.unit)
	case "year":
		return fmt.Sprintf("%s >= '%d-01-01' AND %s < '%d-01-01'", column, w.year, column, w.year+1)
	}

	n, unit := w.n, w.unit
	if unit == unitWeek {
		n, unit = n*7, unitDay
	}
	if unit == unitHour {
		if now == "" {
			now = NowRedshift
		}
		return fmt.Sprintf("%s >= %s - INTERVAL '%s'", column, now, plural(n, unit))
	}
	return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '%s'", column, plural(n, unit))
}

func plural(n int, unit timeUnit) string {
	if n == 1 {
		return "1 " + string(unit)
	}
	return strconv.Itoa(n) + " " + string(unit) + "s"
}
