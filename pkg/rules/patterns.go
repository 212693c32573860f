package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/sql"
)

// pattern pairs a matcher with the intent constructor it triggers.
type pattern struct {
	name  string
	match func(f *features, t *models.TableDescriptor) bool
	build func(f *features, t *models.TableDescriptor, defaultLimit int) *Intent
}

// patterns are tried in order and the first match wins. More specific shapes
// come first: a question with both an aggregate word and a list verb is an
// aggregate, a question with a count word and an order word is a count.
var patterns = []pattern{
	{
		name:  "write_request",
		match: func(f *features, _ *models.TableDescriptor) bool { return f.writeVerb != "" },
		build: func(f *features, _ *models.TableDescriptor, _ int) *Intent {
			return unsupported(fmt.Sprintf("%q requests are not supported; only read-only questions can be answered", f.writeVerb))
		},
	},
	{
		name:  "aggregate_measure",
		match: isMeasureAggregate,
		build: buildAggregate,
	},
	{
		name: "count",
		match: func(f *features, t *models.TableDescriptor) bool {
			return f.count || f.aggregateWord == "total"
		},
		build: buildCount,
	},
	{
		name: "ordered_rows",
		match: func(f *features, _ *models.TableDescriptor) bool {
			return f.topN > 0 || f.order != orderNone || f.orderBy != nil
		},
		build: buildRowList,
	},
	{
		name:  "filtered_rows",
		match: func(f *features, _ *models.TableDescriptor) bool { return f.hasFilter() },
		build: buildRowList,
	},
	{
		name:  "listing",
		match: func(f *features, _ *models.TableDescriptor) bool { return f.listing },
		build: buildRowList,
	},
}

// isMeasureAggregate matches aggregate words. "total" is ambiguous: with a
// count word ("total number of") or on a table without measures it counts.
func isMeasureAggregate(f *features, t *models.TableDescriptor) bool {
	if f.aggregate == "" {
		return false
	}
	if f.aggregateWord == "total" {
		return !f.count && len(t.ColumnsWithRole(models.RoleMeasure)) > 0
	}
	return true
}

func buildAggregate(f *features, t *models.TableDescriptor, defaultLimit int) *Intent {
	measure := resolveMeasure(f.tokens, t)
	if measure == nil {
		return unsupported(fmt.Sprintf("table %s has no measure column to %s", t.Name, f.aggregateWord))
	}
	in := &Intent{Kind: IntentAggregate, Table: t, Aggregate: f.aggregate, Measure: measure}
	return finishGrouped(f, in, defaultLimit)
}

func buildCount(f *features, t *models.TableDescriptor, defaultLimit int) *Intent {
	in := &Intent{Kind: IntentCount, Table: t}
	return finishGrouped(f, in, defaultLimit)
}

// finishGrouped adds filters, grouping, ranking and limit to a Count or
// Aggregate intent. Grouped results are capped like row lists.
func finishGrouped(f *features, in *Intent, defaultLimit int) *Intent {
	if bad := applyFilters(f, in); bad != nil {
		return bad
	}

	if f.groupBy != "" {
		g, reason := resolveGrouping(f.groupBy, in.Table)
		if g == nil {
			return unsupported(reason)
		}
		in.GroupBy = g
	}

	if in.GroupBy != nil {
		switch f.order {
		case orderHighest, orderLowest:
			expr := "COUNT(*)"
			if in.Kind == IntentAggregate {
				expr = aggregateExpr(in)
			}
			in.OrderBy = &Ordering{Expr: expr, Descending: f.order == orderHighest}
		}
		in.Limit = defaultLimit
	}
	if f.topN > 0 {
		in.Limit = f.topN
	}
	return in
}

func buildRowList(f *features, t *models.TableDescriptor, defaultLimit int) *Intent {
	in := &Intent{Kind: IntentRowList, Table: t}
	if bad := applyFilters(f, in); bad != nil {
		return bad
	}
	if bad := applyRowOrder(f, in); bad != nil {
		return bad
	}
	in.Limit = defaultLimit
	if f.topN > 0 {
		in.Limit = f.topN
	}
	return in
}

// applyRowOrder resolves the ORDER BY of a row list. Recency words sort on
// the timestamp column; top, highest and lowest prefer a measure, then a
// timestamp, then an identifier. An order that cannot be resolved is left out.
func applyRowOrder(f *features, in *Intent) *Intent {
	t := in.Table

	if f.orderBy != nil {
		c := resolveColumn(f.orderBy.column, t)
		if c == nil {
			return unsupported(fmt.Sprintf("column %q not found in %s", f.orderBy.column, t.Name))
		}
		in.OrderBy = &Ordering{Expr: quoteIdent(c.Name), Descending: f.orderBy.descending}
		return nil
	}

	var c *models.ColumnDescriptor
	switch f.order {
	case orderRecent, orderOldest:
		c = firstWithRole(t, models.RoleTimestamp)
	case orderHighest, orderLowest:
		c = resolveMeasure(f.tokens, t)
		if c == nil {
			c = firstWithRole(t, models.RoleTimestamp, models.RoleIdentifier)
		}
	}
	if c != nil {
		in.OrderBy = &Ordering{
			Expr:       quoteIdent(c.Name),
			Descending: f.order == orderRecent || f.order == orderHighest,
		}
	}
	return nil
}

// applyFilters translates the time window, comparisons and substring phrase
// into WHERE predicates. It returns an unsupported intent when a filter the
// question asked for cannot be expressed.
func applyFilters(f *features, in *Intent) *Intent {
	t := in.Table

	if f.window != nil {
		ts := firstWithRole(t, models.RoleTimestamp)
		if ts == nil {
			return unsupported(fmt.Sprintf("table %s has no timestamp column for %q", t.Name, f.window.label))
		}
		in.Filters = append(in.Filters, windowPredicate(f.window, quoteIdent(ts.Name), f.nowExpr))
	}

	for _, cmp := range f.comparisons {
		c := resolveColumn(cmp.column, t)
		if c == nil {
			if cmp.strict {
				return unsupported(fmt.Sprintf("column %q not found in %s", cmp.column, t.Name))
			}
			continue
		}
		value := cmp.value
		if cmp.quoted && !(c.Type.IsNumeric() && isNumber(value)) {
			if reason := unsafeValue(value); reason != "" {
				return unsupported(reason)
			}
			value = sql.QuoteLiteral(value)
		}
		in.Filters = append(in.Filters, quoteIdent(c.Name)+" "+cmp.op+" "+value)
	}

	if f.phrase != "" {
		c := textSearchColumn(t)
		if c == nil {
			return unsupported(fmt.Sprintf("table %s has no text column to match %q", t.Name, f.phrase))
		}
		if reason := unsafeValue(f.phrase); reason != "" {
			return unsupported(reason)
		}
		in.Filters = append(in.Filters, quoteIdent(c.Name)+" ILIKE "+containsPattern(f.phrase))
	}
	return nil
}

var timeBuckets = map[string]string{
	"hour": "hour", "day": "day", "date": "day", "week": "week", "month": "month", "year": "year",
}

// resolveGrouping maps a "by X" word to a GROUP BY target. Time buckets
// (day, week, month, year) truncate the timestamp column.
func resolveGrouping(word string, t *models.TableDescriptor) (*Grouping, string) {
	if c := resolveColumn(word, t); c != nil {
		return &Grouping{Expr: quoteIdent(c.Name)}, ""
	}
	if bucket, ok := timeBuckets[word]; ok {
		if ts := firstWithRole(t, models.RoleTimestamp); ts != nil {
			return &Grouping{
				Expr:  fmt.Sprintf("DATE_TRUNC('%s', %s)", bucket, quoteIdent(ts.Name)),
				Alias: bucket,
			}, ""
		}
	}
	return nil, fmt.Sprintf("cannot group %s by %q", t.Name, word)
}

// likeEscaper escapes LIKE wildcards in a phrase so it matches literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern renders a substring match for phrase. The ESCAPE clause is
// only added when the phrase has characters that need it.
func containsPattern(phrase string) string {
	escaped := likeEscaper.Replace(phrase)
	if escaped == phrase {
		return sql.QuoteLiteral("%" + phrase + "%")
	}
	return sql.QuoteLiteral("%"+escaped+"%") + " ESCAPE '!'"
}

func unsafeValue(v string) string {
	if strings.ContainsRune(v, '\\') {
		return fmt.Sprintf("value %q contains a backslash", v)
	}
	if r := sql.CheckValueForInjection(v); r != nil {
		return fmt.Sprintf("value %q looks like SQL injection (%s)", v, r.Fingerprint)
	}
	return ""
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
