package models

// ColumnType is the closed set of logical types the generator reasons about.
type ColumnType string

const (
	ColumnTypeText      ColumnType = "text"
	ColumnTypeInteger   ColumnType = "integer"
	ColumnTypeDecimal   ColumnType = "decimal"
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeBoolean   ColumnType = "boolean"
)

// IsNumeric reports whether values of this type can be summed or averaged.
func (t ColumnType) IsNumeric() bool {
	return t == ColumnTypeInteger || t == ColumnTypeDecimal
}

// ColumnRole is the semantic role a column plays in generated queries.
type ColumnRole string

const (
	RoleNone       ColumnRole = ""
	RoleIdentifier ColumnRole = "identifier"
	RoleStatus     ColumnRole = "status"
	RoleTimestamp  ColumnRole = "timestamp"
	RoleMeasure    ColumnRole = "measure"
)

// ValidColumnRoles lists the roles accepted in annotation files.
var ValidColumnRoles = []ColumnRole{RoleIdentifier, RoleStatus, RoleTimestamp, RoleMeasure}

// IsValid reports whether r is empty or one of ValidColumnRoles.
func (r ColumnRole) IsValid() bool {
	if r == RoleNone {
		return true
	}
	for _, v := range ValidColumnRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ColumnDescriptor describes one column of a catalog table.
type ColumnDescriptor struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Role       ColumnRole `json:"role,omitempty"`
	DataType   string     `json:"data_type,omitempty"` // raw database type, e.g. "character varying(256)"
	IsNullable bool       `json:"is_nullable"`
}

// TableDescriptor describes one queryable table.
// Keywords are lowercase tokens that suggest relevance to a question.
type TableDescriptor struct {
	Schema      string             `json:"schema,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Columns     []ColumnDescriptor `json:"columns"`
	Keywords    []string           `json:"keywords,omitempty"`
	Restricted  bool               `json:"restricted,omitempty"`
	Priority    int                `json:"priority,omitempty"`
}

// Column returns the column with the given name, or nil.
func (t *TableDescriptor) Column(name string) *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnsWithRole returns the columns carrying role, in declaration order.
func (t *TableDescriptor) ColumnsWithRole(role ColumnRole) []ColumnDescriptor {
	var out []ColumnDescriptor
	for _, c := range t.Columns {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}
