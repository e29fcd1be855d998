// The TableSpec types need to live in a place both the transform engine and
// the backend packages can import without circular deps.
package storage

type TableSpec struct {
	Name            string           `json:"name"`
	AutoCreateTable bool             `json:"auto_create_table"`
	PrimaryKey      *PrimaryKeySpec  `json:"primary_key,omitempty"`
	Columns         []ColumnSpec     `json:"columns"`
	Constraints     []ConstraintSpec `json:"constraints,omitempty"`
}

// PrimaryKeySpec describes a system-generated surrogate key column.
// Only the issue sink uses one; validated entity tables carry natural keys.
type PrimaryKeySpec struct {
	Name string `json:"name"`
	Type string `json:"type"` // e.g. serial / int identity, etc
}

type ColumnSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	References string `json:"references,omitempty"`
	Nullable   *bool  `json:"nullable,omitempty"`
}

type ConstraintSpec struct {
	Kind    string   `json:"kind"` // "unique"
	Columns []string `json:"columns"`
}

// ColumnNames returns the configured column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Nullable is a convenience for building ColumnSpec literals.
func Nullable(b bool) *bool { return &b }
