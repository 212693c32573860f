package catalog

import (
	"github.com/nl2db/nl2db/pkg/models"
)

// Build merges discovered tables with annotations into a Catalog.
//
// Non-core tables (temporary, test and dated copies) are dropped unless they
// are annotated explicitly. Column types are mapped from database types when
// unset, roles come from annotations or are inferred from names, and keywords
// combine the table name, the keyword map and per-table annotations.
func Build(discovered []models.TableDescriptor, ann *Annotations) (*Catalog, error) {
	if ann == nil {
		ann = &Annotations{}
	}

	tables := make([]models.TableDescriptor, 0, len(discovered))
	for _, d := range discovered {
		ta, annotated := ann.Tables[d.Name]
		if !annotated && !IsCoreTable(d.Name) {
			continue
		}

		t := d
		t.Columns = make([]models.ColumnDescriptor, len(d.Columns))
		for i, c := range d.Columns {
			if c.Type == "" {
				c.Type = MapType(c.DataType)
			}
			if role, ok := ta.Columns[c.Name]; ok {
				c.Role = role
			} else if c.Role == models.RoleNone {
				c.Role = InferRole(c)
			}
			t.Columns[i] = c
		}

		keywords := append([]string(nil), d.Keywords...)
		keywords = append(keywords, DefaultKeywords(d.Name)...)
		keywords = append(keywords, ann.keywordsFor(d.Name)...)
		t.Keywords = append(keywords, ta.Keywords...)

		if ta.Description != "" {
			t.Description = ta.Description
		}
		if ta.Priority != 0 {
			t.Priority = ta.Priority
		} else if t.Priority == 0 {
			t.Priority = ann.defaultPriority(d.Name)
		}
		t.Restricted = d.Restricted || ann.isRestricted(d.Name)

		tables = append(tables, t)
	}

	return New(tables)
}
