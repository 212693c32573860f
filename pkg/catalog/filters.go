package catalog

import (
	"regexp"
	"strings"

	"github.com/nl2db/nl2db/pkg/models"
)

var (
	longDateSuffix    = regexp.MustCompile(`_\d{8,}`)
	yearMonthSuffix   = regexp.MustCompile(`_\d{4}(_\d{2})?$`)
	technicalPrefixes = []string{"etl_", "dms_", "cdc_"}
	technicalSuffixes = []string{"_audit", "_checksum"}
	technicalExact    = map[string]bool{
		"created_by":      true,
		"updated_by":      true,
		"last_updated_by": true,
		"row_id":          true,
		"batch_id":        true,
	}
)

// IsCoreTable reports whether a discovered table is a stable warehouse table
// rather than a temporary, test or dated snapshot copy.
func IsCoreTable(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "temp") || strings.Contains(lower, "_test") {
		return false
	}
	if longDateSuffix.MatchString(lower) || yearMonthSuffix.MatchString(lower) {
		return false
	}
	return true
}

// IsTechnicalColumn reports whether a column is pipeline bookkeeping that is
// hidden from prompts and rendered descriptions.
func IsTechnicalColumn(name string) bool {
	lower := strings.ToLower(name)
	if technicalExact[lower] {
		return true
	}
	for _, p := range technicalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, s := range technicalSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// MapType maps a database type name to the closed set of column types.
func MapType(dbType string) models.ColumnType {
	t := strings.ToLower(strings.TrimSpace(dbType))
	switch {
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "date"), strings.HasPrefix(t, "time"):
		return models.ColumnTypeTimestamp
	case t == "boolean" || t == "bool":
		return models.ColumnTypeBoolean
	case strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"),
		strings.HasPrefix(t, "double"), strings.HasPrefix(t, "real"), strings.HasPrefix(t, "float"):
		return models.ColumnTypeDecimal
	case strings.HasPrefix(t, "interval"):
		return models.ColumnTypeText
	case strings.Contains(t, "int"):
		return models.ColumnTypeInteger
	default:
		return models.ColumnTypeText
	}
}

var measureHints = []string{
	"usage", "volume", "amount", "total", "count", "size", "bytes",
	"duration", "distance", "speed", "mileage", "price", "cost", "qty", "quantity",
}

// InferRole guesses a column's semantic role from its name and type.
func InferRole(c models.ColumnDescriptor) models.ColumnRole {
	name := strings.ToLower(c.Name)

	switch {
	case name == "id" || strings.HasSuffix(name, "_id") || name == "sn" || strings.HasSuffix(name, "_sn"):
		return models.RoleIdentifier
	case strings.Contains(name, "status") || name == "state":
		return models.RoleStatus
	case c.Type == models.ColumnTypeTimestamp,
		strings.HasPrefix(name, "created"), strings.HasSuffix(name, "time"), strings.HasSuffix(name, "_at"):
		return models.RoleTimestamp
	}

	if c.Type.IsNumeric() {
		for _, h := range measureHints {
			if strings.Contains(name, h) {
				return models.RoleMeasure
			}
		}
	}
	return models.RoleNone
}

var warehouseAffixes = map[string]bool{
	"ods": true, "fact": true, "prod": true, "dim": true, "f": true,
	"info": true, "daily": true, "weekly": true, "monthly": true, "data": true,
}

// DefaultKeywords derives relevance keywords from a table name by dropping
// warehouse layer prefixes and suffixes: ods_camera_event_f yields camera, event.
func DefaultKeywords(tableName string) []string {
	var out []string
	for _, part := range strings.Split(strings.ToLower(tableName), "_") {
		if part == "" || warehouseAffixes[part] || isDigits(part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
