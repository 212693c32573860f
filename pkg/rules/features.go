package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// orderHint is the ordering a question asks for, before column resolution.
type orderHint int

const (
	orderNone orderHint = iota
	orderRecent
	orderOldest
	orderHighest
	orderLowest
)

// timeUnit is a relative time window unit.
type timeUnit string

const (
	unitHour  timeUnit = "hour"
	unitDay   timeUnit = "day"
	unitWeek  timeUnit = "week"
	unitMonth timeUnit = "month"
	unitYear  timeUnit = "year"
)

// timeWindow is a recognized relative or absolute time phrase.
type timeWindow struct {
	kind  string // "last", "today", "yesterday", "this", "year"
	n     int
	unit  timeUnit
	year  int
	label string
}

// comparison is a "<column> <op> <value>" phrase.
type comparison struct {
	column string
	op     string
	value  string
	quoted bool
	strict bool // an unresolvable column makes the question unsupported
}

// explicitOrder is a "sorted by <column> [asc|desc]" phrase.
type explicitOrder struct {
	column     string
	descending bool
}

// features are the signals extracted from one question.
type features struct {
	text   string // original question
	tokens []string

	writeVerb string
	listing   bool
	count     bool

	aggregate     string // SQL function
	aggregateWord string

	topN    int
	order   orderHint
	orderBy *explicitOrder

	window      *timeWindow
	comparisons []comparison
	phrase      string
	groupBy     string

	nowExpr string // dialect's current timestamp, set by the Generator
}

func (f *features) hasFilter() bool {
	return f.window != nil || f.phrase != "" || len(f.comparisons) > 0
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "twelve": 12, "fifteen": 15, "twenty": 20,
	"thirty": 30, "fifty": 50, "hundred": 100,
}

const numberPattern = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten|twelve|fifteen|twenty|thirty|fifty|hundred)`

var (
	writeVerbPattern = regexp.MustCompile(`(?i)(?:^|\b(?:please|you|and|then)\s+)(delete|drop|update|insert|truncate|alter|create|grant|revoke|remove|modify)\b`)
	listingPattern   = regexp.MustCompile(`(?i)\b(show|list|find|get|display|give|what|which|fetch|return|see)\b`)
	countPattern     = regexp.MustCompile(`(?i)\b(how many|count|number of)\b`)
	aggregatePattern = regexp.MustCompile(`(?i)\b(average|avg|mean|sum|total|maximum|max|minimum|min)\b`)

	lastNoUnitPattern = regexp.MustCompile(`(?i)\blast\s+` + numberPattern + `\b`)
	topNPattern       = regexp.MustCompile(`(?i)\b(top|first)\s+` + numberPattern + `\b`)
	nRankedPattern    = regexp.MustCompile(`(?i)\b` + numberPattern + `\s+(most\s+recent|latest|newest|oldest|earliest)\b`)
	recentPattern     = regexp.MustCompile(`(?i)\b(most\s+recent|latest|newest|recently|recent)\b`)
	oldestPattern     = regexp.MustCompile(`(?i)\b(oldest|earliest|least\s+recent)\b`)
	highestPattern    = regexp.MustCompile(`(?i)\b(top|highest|largest|biggest)\b`)
	lowestPattern     = regexp.MustCompile(`(?i)\b(lowest|smallest|least)\b`)
	orderByPattern    = regexp.MustCompile(`(?i)\b(?:sorted|ordered|sort|order)\s+by\s+([a-z_][a-z0-9_]*)(?:\s+(asc|ascending|desc|descending))?\b`)

	lastNUnitPattern = regexp.MustCompile(`(?i)\b(?:past|last|previous)\s+` + numberPattern + `\s+(hour|day|week|month|year)s?\b`)
	lastUnitPattern  = regexp.MustCompile(`(?i)\b(?:past|last|previous)\s+(hour|day|week|month|year)\b`)
	todayPattern     = regexp.MustCompile(`(?i)\btoday\b`)
	yesterdayPattern = regexp.MustCompile(`(?i)\byesterday\b`)
	thisUnitPattern  = regexp.MustCompile(`(?i)\bthis\s+(week|month|year)\b`)
	inYearPattern    = regexp.MustCompile(`(?i)\b(?:in|during)\s+((?:19|20)\d{2})\b`)

	quotedComparison  = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_]*)\s+(?:is|=|equals|equal\s+to|of)\s+'([^']*)'`)
	numericComparison = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_]*)\s+(?:is\s+)?(greater\s+than\s+or\s+equal\s+to|less\s+than\s+or\s+equal\s+to|greater\s+than|more\s+than|over|above|at\s+least|less\s+than|fewer\s+than|under|below|at\s+most|>=|<=|!=|<>|>|<|=)\s*(-?\d+(?:\.\d+)?)\b`)
	wordComparison    = regexp.MustCompile(`(?i)\b(where|with|whose)\s+([a-z_][a-z0-9_]*)\s+(?:is\s+|=\s*|equals\s+)?([a-z0-9][a-z0-9_\-.]*)`)

	quotedPhrase = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)
	namedPhrase  = regexp.MustCompile(`(?i)\b(?:named|called|containing|contains|matching)\s+([a-z0-9][a-z0-9_\-.]*)`)

	groupByPattern = regexp.MustCompile(`(?i)\b(?:grouped\s+by|broken\s+down\s+by|for\s+each|for\s+every|by|per)\s+([a-z_][a-z0-9_]*)`)
)

var comparisonOps = map[string]string{
	"greater than or equal to": ">=",
	"less than or equal to":    "<=",
	"greater than":             ">",
	"more than":                ">",
	"over":                     ">",
	"above":                    ">",
	"at least":                 ">=",
	"less than":                "<",
	"fewer than":               "<",
	"under":                    "<",
	"below":                    "<",
	"at most":                  "<=",
	">=":                       ">=",
	"<=":                       "<=",
	"!=":                       "<>",
	"<>":                       "<>",
	">":                        ">",
	"<":                        "<",
	"=":                        "=",
}

var aggregateFuncs = map[string]string{
	"average": "AVG", "avg": "AVG", "mean": "AVG",
	"sum": "SUM", "total": "SUM",
	"maximum": "MAX", "max": "MAX",
	"minimum": "MIN", "min": "MIN",
}

// words that may follow where/with without naming a column
var comparisonNoise = map[string]bool{
	"the": true, "a": true, "an": true, "no": true, "more": true, "less": true, "at": true,
}

func parseNumber(s string) int {
	if n, ok := numberWords[strings.ToLower(s)]; ok {
		return n
	}
	n, _ := strconv.Atoi(s)
	return n
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// blank replaces the byte ranges of matches with spaces so later patterns do
// not see text that has already been interpreted.
func blank(s string, spans [][]int) string {
	if len(spans) == 0 {
		return s
	}
	b := []byte(s)
	for _, sp := range spans {
		for i := sp[0]; i < sp[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// extractFeatures scans question for every signal the patterns care about.
// Phrases are consumed in a fixed order (time windows, comparisons, quoted
// and named phrases, ordering, limits, grouping) so one span of text never
// counts as two signals.
func extractFeatures(question string, tokens []string) *features {
	f := &features{text: question, tokens: tokens}
	rest := question

	if m := writeVerbPattern.FindStringSubmatch(rest); m != nil {
		f.writeVerb = strings.ToLower(m[1])
	}
	f.listing = listingPattern.MatchString(rest)
	f.count = countPattern.MatchString(rest)

	rest = f.extractWindow(rest)
	rest = f.extractComparisons(rest)
	rest = f.extractPhrase(rest)
	rest = f.extractOrdering(rest)
	f.extractGroupBy(rest)

	if m := aggregatePattern.FindStringSubmatch(rest); m != nil {
		f.aggregateWord = strings.ToLower(m[1])
		f.aggregate = aggregateFuncs[f.aggregateWord]
	}
	return f
}

func (f *features) extractWindow(s string) string {
	if loc := lastNUnitPattern.FindStringSubmatchIndex(s); loc != nil {
		n := parseNumber(s[loc[2]:loc[3]])
		unit := timeUnit(strings.ToLower(s[loc[4]:loc[5]]))
		f.window = &timeWindow{kind: "last", n: n, unit: unit, label: collapseSpaces(s[loc[0]:loc[1]])}
		return blank(s, [][]int{loc[:2]})
	}
	if loc := lastUnitPattern.FindStringSubmatchIndex(s); loc != nil {
		unit := timeUnit(strings.ToLower(s[loc[2]:loc[3]]))
		f.window = &timeWindow{kind: "last", n: 1, unit: unit, label: collapseSpaces(s[loc[0]:loc[1]])}
		return blank(s, [][]int{loc[:2]})
	}
	if loc := todayPattern.FindStringIndex(s); loc != nil {
		f.window = &timeWindow{kind: "today", label: "today"}
		return blank(s, [][]int{loc})
	}
	if loc := yesterdayPattern.FindStringIndex(s); loc != nil {
		f.window = &timeWindow{kind: "yesterday", label: "yesterday"}
		return blank(s, [][]int{loc})
	}
	if loc := thisUnitPattern.FindStringSubmatchIndex(s); loc != nil {
		unit := timeUnit(strings.ToLower(s[loc[2]:loc[3]]))
		f.window = &timeWindow{kind: "this", unit: unit, label: collapseSpaces(s[loc[0]:loc[1]])}
		return blank(s, [][]int{loc[:2]})
	}
	if loc := inYearPattern.FindStringSubmatchIndex(s); loc != nil {
		year, _ := strconv.Atoi(s[loc[2]:loc[3]])
		f.window = &timeWindow{kind: "year", year: year, label: collapseSpaces(s[loc[0]:loc[1]])}
		return blank(s, [][]int{loc[:2]})
	}
	return s
}

func (f *features) extractComparisons(s string) string {
	var spans [][]int

	for _, loc := range quotedComparison.FindAllStringSubmatchIndex(s, -1) {
		f.comparisons = append(f.comparisons, comparison{
			column: strings.ToLower(s[loc[2]:loc[3]]),
			op:     "=",
			value:  s[loc[4]:loc[5]],
			quoted: true,
			strict: true,
		})
		spans = append(spans, loc[:2])
	}
	s = blank(s, spans)
	spans = nil

	for _, loc := range numericComparison.FindAllStringSubmatchIndex(s, -1) {
		f.comparisons = append(f.comparisons, comparison{
			column: strings.ToLower(s[loc[2]:loc[3]]),
			op:     comparisonOps[collapseSpaces(s[loc[4]:loc[5]])],
			value:  s[loc[6]:loc[7]],
			strict: true,
		})
		spans = append(spans, loc[:2])
	}
	s = blank(s, spans)
	spans = nil

	for _, loc := range wordComparison.FindAllStringSubmatchIndex(s, -1) {
		keyword := strings.ToLower(s[loc[2]:loc[3]])
		column := strings.ToLower(s[loc[4]:loc[5]])
		if comparisonNoise[column] {
			continue
		}
		f.comparisons = append(f.comparisons, comparison{
			column: column,
			op:     "=",
			value:  s[loc[6]:loc[7]],
			quoted: true,
			strict: keyword != "with",
		})
		spans = append(spans, loc[:2])
	}
	return blank(s, spans)
}

func (f *features) extractPhrase(s string) string {
	if loc := quotedPhrase.FindStringSubmatchIndex(s); loc != nil {
		if loc[2] >= 0 {
			f.phrase = s[loc[2]:loc[3]]
		} else {
			f.phrase = s[loc[4]:loc[5]]
		}
		return blank(s, [][]int{loc[:2]})
	}
	if loc := namedPhrase.FindStringSubmatchIndex(s); loc != nil {
		f.phrase = s[loc[2]:loc[3]]
		return blank(s, [][]int{loc[:2]})
	}
	return s
}

func (f *features) extractOrdering(s string) string {
	if loc := orderByPattern.FindStringSubmatchIndex(s); loc != nil {
		ob := &explicitOrder{column: strings.ToLower(s[loc[2]:loc[3]])}
		if loc[4] >= 0 {
			ob.descending = strings.HasPrefix(strings.ToLower(s[loc[4]:loc[5]]), "desc")
		}
		f.orderBy = ob
		s = blank(s, [][]int{loc[:2]})
	}

	if loc := nRankedPattern.FindStringSubmatchIndex(s); loc != nil {
		f.topN = parseNumber(s[loc[2]:loc[3]])
		f.order = orderRecent
		if w := strings.ToLower(s[loc[4]:loc[5]]); w == "oldest" || w == "earliest" {
			f.order = orderOldest
		}
		s = blank(s, [][]int{loc[:2]})
	}
	if loc := lastNoUnitPattern.FindStringSubmatchIndex(s); loc != nil {
		f.topN = parseNumber(s[loc[2]:loc[3]])
		f.order = orderRecent
		s = blank(s, [][]int{loc[:2]})
	}
	if loc := topNPattern.FindStringSubmatchIndex(s); loc != nil {
		f.topN = parseNumber(s[loc[4]:loc[5]])
		if strings.EqualFold(s[loc[2]:loc[3]], "top") && f.order == orderNone {
			f.order = orderHighest
		}
		s = blank(s, [][]int{loc[:2]})
	}

	// recency words override the generic "top" ranking
	switch {
	case recentPattern.MatchString(s):
		f.order = orderRecent
	case oldestPattern.MatchString(s):
		f.order = orderOldest
	case f.order != orderNone:
	case highestPattern.MatchString(s):
		f.order = orderHighest
	case lowestPattern.MatchString(s):
		f.order = orderLowest
	}
	return s
}

var orderingWords = map[string]bool{"order": true, "ordered": true, "sort": true, "sorted": true}

func (f *features) extractGroupBy(s string) {
	for _, loc := range groupByPattern.FindAllStringSubmatchIndex(s, -1) {
		prefix := strings.Fields(strings.ToLower(s[:loc[0]]))
		if len(prefix) > 0 && orderingWords[prefix[len(prefix)-1]] {
			continue
		}
		f.groupBy = strings.ToLower(s[loc[2]:loc[3]])
		return
	}
}
