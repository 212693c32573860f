package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nl2db/nl2db/pkg/models"
)

//go:embed default_annotations.yaml
var defaultAnnotationsYAML []byte

// Annotations is hand-maintained metadata layered over discovered tables.
type Annotations struct {
	// RestrictedTables are excluded from every selection, typically because
	// the connecting user lacks permission on them.
	RestrictedTables []string `yaml:"restricted_tables"`

	// Keywords maps a keyword (possibly several words) to the tables it suggests.
	Keywords map[string][]string `yaml:"keywords"`

	// Defaults is the grounding set for questions that match no table, most
	// popular first.
	Defaults []string `yaml:"defaults"`

	Tables map[string]TableAnnotation `yaml:"tables"`
}

// TableAnnotation overrides or extends the metadata of a single table.
type TableAnnotation struct {
	Description string                       `yaml:"description"`
	Keywords    []string                     `yaml:"keywords"`
	Priority    int                          `yaml:"priority"`
	Restricted  bool                         `yaml:"restricted"`
	Columns     map[string]models.ColumnRole `yaml:"columns"`
}

// ParseAnnotations decodes and validates an annotations document.
func ParseAnnotations(data []byte) (*Annotations, error) {
	var a Annotations
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadAnnotations reads annotations from path.
func LoadAnnotations(path string) (*Annotations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations %s: %w", path, err)
	}
	return ParseAnnotations(data)
}

// DefaultAnnotations returns the built-in annotations for the fleet
// management warehouse.
func DefaultAnnotations() *Annotations {
	a, err := ParseAnnotations(defaultAnnotationsYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in annotations: %v", err))
	}
	return a
}

func (a *Annotations) validate() error {
	for table, ta := range a.Tables {
		for col, role := range ta.Columns {
			if !role.IsValid() {
				return fmt.Errorf("table %s column %s: unknown role %q", table, col, role)
			}
		}
	}
	return nil
}

func (a *Annotations) isRestricted(name string) bool {
	if ta, ok := a.Tables[name]; ok && ta.Restricted {
		return true
	}
	for _, r := range a.RestrictedTables {
		if r == name {
			return true
		}
	}
	return false
}

// keywordsFor returns the keywords that point at table through the keyword map,
// in sorted order so that catalog construction is deterministic.
func (a *Annotations) keywordsFor(table string) []string {
	var out []string
	for kw, tables := range a.Keywords {
		for _, t := range tables {
			if t == table {
				out = append(out, strings.ToLower(kw))
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// defaultPriority ranks tables listed in Defaults above everything else.
func (a *Annotations) defaultPriority(table string) int {
	for i, t := range a.Defaults {
		if t == table {
			return len(a.Defaults) - i
		}
	}
	return 0
}
