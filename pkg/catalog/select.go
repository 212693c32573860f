package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/nl2db/nl2db/pkg/models"
)

// Score weights.
const (
	keywordWeight   = 3
	columnWeight    = 1
	nameMatchWeight = 2
)

var wordPattern = regexp.MustCompile(`[a-z0-9_]+`)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {},
	"at": {}, "be": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"give": {}, "has": {}, "have": {}, "i": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"list": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "please": {},
	"show": {}, "tell": {}, "that": {}, "the": {}, "their": {}, "them": {}, "there": {},
	"these": {}, "this": {}, "those": {}, "to": {}, "us": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "which": {}, "who": {}, "with": {}, "you": {},
}

// Tokenize lowercases query and splits it into word tokens, dropping stop words.
func Tokenize(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// sameWord compares two lowercase words, treating singular and plural forms as equal.
func sameWord(a, b string) bool {
	if a == b {
		return true
	}
	return inflection.Singular(a) == inflection.Singular(b)
}

// containsPhrase reports whether the words of phrase appear consecutively in tokens.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if !sameWord(tokens[i+j], w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Score rates how relevant table is to the tokenized question. Keyword hits
// weigh more than column-name or role hits, and a table whose name appears
// verbatim in the question gets a bonus. Multi-word keywords match as phrases.
func Score(query string, tokens []string, table *models.TableDescriptor) int {
	score := 0

	var single []string
	for _, kw := range table.Keywords {
		words := strings.Fields(kw)
		if len(words) > 1 {
			if containsPhrase(tokens, words) {
				score += keywordWeight
			}
			continue
		}
		single = append(single, kw)
	}

	for _, tok := range tokens {
		if matchesAny(tok, single) {
			score += keywordWeight
			continue
		}
		if matchesColumn(tok, table) {
			score += columnWeight
		}
	}

	if nameInQuery(strings.ToLower(query), table.Name) {
		score += nameMatchWeight
	}
	return score
}

func matchesAny(tok string, words []string) bool {
	for _, w := range words {
		if sameWord(tok, w) {
			return true
		}
	}
	return false
}

func matchesColumn(tok string, table *models.TableDescriptor) bool {
	for _, c := range table.Columns {
		if sameWord(tok, strings.ToLower(c.Name)) {
			return true
		}
		if c.Role != models.RoleNone && sameWord(tok, string(c.Role)) {
			return true
		}
	}
	return false
}

func nameInQuery(lowerQuery, name string) bool {
	name = strings.ToLower(name)
	if strings.Contains(lowerQuery, name) {
		return true
	}
	spaced := strings.ReplaceAll(name, "_", " ")
	return spaced != name && strings.Contains(lowerQuery, spaced)
}

type scoredTable struct {
	table *models.TableDescriptor
	score int
}

// Select returns the tables relevant to query, most relevant first.
//
// Tables scoring zero are never included. The result is the longest prefix
// of the ranking that fits within maxTables and within maxChars characters
// of rendered descriptions (maxChars <= 0 disables the character budget).
// When no table scores, the default set ordered by priority is returned
// under the same limits. Restricted tables are never returned.
func (c *Catalog) Select(query string, maxTables, maxChars int) []*models.TableDescriptor {
	if maxTables <= 0 {
		return nil
	}

	tokens := Tokenize(query)
	var ranked []scoredTable
	for _, t := range c.sorted {
		if s := Score(query, tokens, t); s > 0 {
			ranked = append(ranked, scoredTable{table: t, score: s})
		}
	}

	if len(ranked) == 0 {
		return c.takeWithinBudget(c.defaultOrder(), maxTables, maxChars)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].table.Name < ranked[j].table.Name
	})

	ordered := make([]*models.TableDescriptor, len(ranked))
	for i, r := range ranked {
		ordered[i] = r.table
	}
	return c.takeWithinBudget(ordered, maxTables, maxChars)
}

// DefaultSet returns the tables used when a question matches nothing.
func (c *Catalog) DefaultSet(maxTables, maxChars int) []*models.TableDescriptor {
	if maxTables <= 0 {
		return nil
	}
	return c.takeWithinBudget(c.defaultOrder(), maxTables, maxChars)
}

func (c *Catalog) defaultOrder() []*models.TableDescriptor {
	ordered := append([]*models.TableDescriptor(nil), c.sorted...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered
}

func (c *Catalog) takeWithinBudget(ordered []*models.TableDescriptor, maxTables, maxChars int) []*models.TableDescriptor {
	var (
		out  []*models.TableDescriptor
		used int
	)
	for _, t := range ordered {
		if len(out) == maxTables {
			break
		}
		size := len(RenderTable(t))
		if maxChars > 0 && used+size > maxChars {
			break
		}
		used += size
		out = append(out, t)
	}
	return out
}
