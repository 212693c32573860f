package rules

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/nl2db/nl2db/pkg/models"
)

// roleAliases maps words used in questions to the role they refer to.
var roleAliases = map[string]models.ColumnRole{
	"status":    models.RoleStatus,
	"state":     models.RoleStatus,
	"time":      models.RoleTimestamp,
	"date":      models.RoleTimestamp,
	"timestamp": models.RoleTimestamp,
	"created":   models.RoleTimestamp,
	"id":        models.RoleIdentifier,
}

func sameWord(a, b string) bool {
	if a == b {
		return true
	}
	return inflection.Singular(a) == inflection.Singular(b)
}

// resolveColumn finds the column of table that word refers to, trying in
// order: exact name, word_id and word_name, singular/plural name, role
// alias, and finally a name segment ("usage" finds data_usage).
func resolveColumn(word string, table *models.TableDescriptor) *models.ColumnDescriptor {
	word = strings.ToLower(word)
	if word == "" {
		return nil
	}

	for i := range table.Columns {
		if strings.ToLower(table.Columns[i].Name) == word {
			return &table.Columns[i]
		}
	}

	singular := inflection.Singular(word)
	for _, suffix := range []string{"_id", "_name"} {
		for _, w := range []string{word, singular} {
			if c := table.Column(w + suffix); c != nil {
				return c
			}
		}
	}

	for i := range table.Columns {
		if sameWord(strings.ToLower(table.Columns[i].Name), word) {
			return &table.Columns[i]
		}
	}

	if role, ok := roleAliases[word]; ok {
		if cols := table.ColumnsWithRole(role); len(cols) > 0 {
			return table.Column(cols[0].Name)
		}
	}

	for i := range table.Columns {
		for _, part := range strings.Split(strings.ToLower(table.Columns[i].Name), "_") {
			if part != "" && sameWord(part, word) {
				return &table.Columns[i]
			}
		}
	}
	return nil
}

// resolveMeasure picks the measure-role column whose name shares the most
// words with the question; ties go to the first declared.
func resolveMeasure(tokens []string, table *models.TableDescriptor) *models.ColumnDescriptor {
	var (
		best      *models.ColumnDescriptor
		bestScore = -1
	)
	for i := range table.Columns {
		c := &table.Columns[i]
		if c.Role != models.RoleMeasure {
			continue
		}
		score := 0
		for _, part := range strings.Split(strings.ToLower(c.Name), "_") {
			for _, tok := range tokens {
				if part != "" && sameWord(part, tok) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// firstWithRole returns the first column carrying any of roles, in the
// order the roles are given.
func firstWithRole(table *models.TableDescriptor, roles ...models.ColumnRole) *models.ColumnDescriptor {
	for _, role := range roles {
		if cols := table.ColumnsWithRole(role); len(cols) > 0 {
			return table.Column(cols[0].Name)
		}
	}
	return nil
}

// textSearchColumn picks the column a substring phrase is matched against:
// a *name column first, then a title or description, then any other plain
// text column.
func textSearchColumn(table *models.TableDescriptor) *models.ColumnDescriptor {
	var text []*models.ColumnDescriptor
	for i := range table.Columns {
		if table.Columns[i].Type == models.ColumnTypeText {
			text = append(text, &table.Columns[i])
		}
	}
	for _, hint := range []string{"name", "title", "description"} {
		for _, c := range text {
			if strings.Contains(strings.ToLower(c.Name), hint) {
				return c
			}
		}
	}
	for _, c := range text {
		if c.Role == models.RoleNone {
			return c
		}
	}
	if len(text) > 0 {
		return text[0]
	}
	return nil
}

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

var reservedWords = map[string]bool{
	"all": true, "and": true, "as": true, "case": true, "desc": true, "asc": true,
	"from": true, "group": true, "limit": true, "offset": true, "order": true,
	"select": true, "table": true, "to": true, "user": true, "where": true, "with": true,
}

// quoteIdent quotes name when it is not a plain lowercase identifier.
func quoteIdent(name string) string {
	if plainIdentifier.MatchString(name) && !reservedWords[name] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableRef renders the FROM target, qualified unless it lives in public.
func tableRef(t *models.TableDescriptor) string {
	if t.Schema == "" || t.Schema == "public" {
		return quoteIdent(t.Name)
	}
	return quoteIdent(t.Schema) + "." + quoteIdent(t.Name)
}
