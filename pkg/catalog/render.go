package catalog

import (
	"fmt"
	"strings"

	"github.com/nl2db/nl2db/pkg/models"
)

// RenderTable renders the compact one-line description used for budgeting
// and prompts: "name: col(type), col(type)". Technical columns are omitted.
func RenderTable(t *models.TableDescriptor) string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteString(":")
	first := true
	for _, c := range t.Columns {
		if IsTechnicalColumn(c.Name) {
			continue
		}
		if first {
			b.WriteString(" ")
			first = false
		} else {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteString("(")
		b.WriteString(renderType(c))
		b.WriteString(")")
	}
	return b.String()
}

func renderType(c models.ColumnDescriptor) string {
	if c.DataType != "" {
		return c.DataType
	}
	return string(c.Type)
}

// PromptContextOptions describes the database named in the prompt header.
type PromptContextOptions struct {
	Database string
	Schema   string
	System   string
}

// BuildPromptContext renders the schema section of an LLM prompt for tables.
func BuildPromptContext(tables []*models.TableDescriptor, opts PromptContextOptions) string {
	lines := []string{
		"# Database Schema Context",
		"",
		"## Database Information",
	}
	if opts.Database != "" {
		lines = append(lines, fmt.Sprintf("- Database: %s (Redshift)", opts.Database))
	}
	if opts.Schema != "" {
		lines = append(lines, fmt.Sprintf("- Schema: %s", opts.Schema))
	}
	if opts.System != "" {
		lines = append(lines, fmt.Sprintf("- System: %s", opts.System))
	}
	lines = append(lines, "", "## Available Tables", "")

	for _, t := range tables {
		line := "- **" + t.Name + "**" + strings.TrimPrefix(RenderTable(t), t.Name)
		lines = append(lines, line)
		if t.Description != "" {
			lines = append(lines, "  "+t.Description)
		}
	}

	lines = append(lines,
		"",
		"## Naming Conventions",
		"- `ods_*`: Operational Data Store (raw)",
		"- `fact_*`: Analytical fact tables",
		"- `prod_*`: Production views",
		"- `_f`: Fact tables",
		"",
		"## Important Notes",
		"- Date cols: created_at, updated_at, timestamp, date",
		"- ID cols: id, camera_id, device_id, fleet_id",
	)
	if opts.Schema != "" {
		lines = append(lines, fmt.Sprintf("- Use schema prefix: %s.tablename", opts.Schema))
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

type summaryGroup struct {
	prefix string
	title  string
	limit  int // 0 means list all
}

var summaryGroups = []summaryGroup{
	{prefix: "fact_", title: "Fact Tables", limit: 20},
	{prefix: "prod_", title: "Production Tables", limit: 20},
	{prefix: "ods_", title: "ODS Tables", limit: 20},
	{prefix: "camera_", title: "Camera Tables"},
	{prefix: "device_", title: "Device Tables"},
	{prefix: "fleet_", title: "Fleet Tables"},
}

// Summary renders every non-restricted table grouped by name prefix.
func (c *Catalog) Summary() string {
	lines := []string{"# Database Schema Summary", ""}

	grouped := make(map[string][]string)
	var other []string
	for _, t := range c.sorted {
		placed := false
		for _, g := range summaryGroups {
			if strings.HasPrefix(t.Name, g.prefix) {
				grouped[g.prefix] = append(grouped[g.prefix], t.Name)
				placed = true
				break
			}
		}
		if !placed {
			other = append(other, t.Name)
		}
	}

	for _, g := range summaryGroups {
		names := grouped[g.prefix]
		if len(names) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("## %s (%d)", g.title, len(names)))
		if g.limit > 0 && len(names) > g.limit {
			lines = append(lines, fmt.Sprintf("  (Showing first %d of %d)", g.limit, len(names)))
			names = names[:g.limit]
		}
		for _, n := range names {
			lines = append(lines, "  - "+n)
		}
		lines = append(lines, "")
	}

	if len(other) > 0 {
		lines = append(lines, fmt.Sprintf("## Other Tables (%d)", len(other)))
		for _, n := range other {
			lines = append(lines, "  - "+n)
		}
		lines = append(lines, "")
	}

	if len(c.restricted) > 0 {
		lines = append(lines, fmt.Sprintf("(%d restricted tables hidden)", len(c.restricted)), "")
	}

	return strings.Join(lines, "\n")
}
