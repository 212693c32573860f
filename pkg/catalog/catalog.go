// Package catalog holds the immutable set of queryable tables and selects
// the subset relevant to a natural-language question.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nl2db/nl2db/pkg/models"
)

// Catalog maps table names to descriptors. It is built once and never
// modified, so it can be read from any goroutine without locking.
type Catalog struct {
	byName     map[string]*models.TableDescriptor
	sorted     []*models.TableDescriptor // non-restricted, by name
	restricted []string
}

// New builds a Catalog from tables. Table names must be unique; keywords are
// lowercased. The descriptors are copied, so later changes to tables do not
// leak into the catalog.
func New(tables []models.TableDescriptor) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*models.TableDescriptor, len(tables)),
	}

	for i := range tables {
		t := cloneTable(tables[i])
		if t.Name == "" {
			return nil, fmt.Errorf("table at index %d has no name", i)
		}
		if _, exists := c.byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate table name %q", t.Name)
		}
		c.byName[t.Name] = t
		if t.Restricted {
			c.restricted = append(c.restricted, t.Name)
			continue
		}
		c.sorted = append(c.sorted, t)
	}

	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i].Name < c.sorted[j].Name })
	sort.Strings(c.restricted)
	return c, nil
}

func cloneTable(t models.TableDescriptor) *models.TableDescriptor {
	out := t
	out.Columns = append([]models.ColumnDescriptor(nil), t.Columns...)
	out.Keywords = make([]string, 0, len(t.Keywords))
	seen := make(map[string]bool, len(t.Keywords))
	for _, kw := range t.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out.Keywords = append(out.Keywords, kw)
	}
	return &out
}

// Table returns the named table. Restricted tables are reported as absent.
func (c *Catalog) Table(name string) (*models.TableDescriptor, bool) {
	t, ok := c.byName[name]
	if !ok || t.Restricted {
		return nil, false
	}
	return t, true
}

// Tables returns every non-restricted table ordered by name.
func (c *Catalog) Tables() []*models.TableDescriptor {
	return append([]*models.TableDescriptor(nil), c.sorted...)
}

// Restricted returns the names of tables excluded from selection.
func (c *Catalog) Restricted() []string {
	return append([]string(nil), c.restricted...)
}

// Len returns the number of non-restricted tables.
func (c *Catalog) Len() int {
	return len(c.sorted)
}
