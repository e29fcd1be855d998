// Package transform implements the metadata-driven silver transform engine:
// raw extracts are normalized, deduplicated, business-rule derived and
// referentially gated into the validated entity store, one entity spec at a
// time, in topological foreign-key order.
package transform

import (
	"time"
)

// Index maps column names to positions in a positional row.
//
// One Index is shared by every row of a dataset, so per-row access costs a
// single map lookup and no per-row allocations.
type Index map[string]int

// BuildIndex compiles a column list into an Index.
func BuildIndex(columns []string) Index {
	ix := make(Index, len(columns))
	for i, c := range columns {
		ix[c] = i
	}
	return ix
}

// Row is a positional record view over a shared column index.
//
// The typed accessors return (zero, false) when the column is absent, null,
// or holds a value of an unexpected type. Derivation code treats all three
// the same way: the input is unusable, so the derived value is null.
type Row struct {
	V  []any
	Ix Index
}

func (r Row) Any(col string) any {
	i, ok := r.Ix[col]
	if !ok {
		return nil
	}
	return r.V[i]
}

func (r Row) IsNull(col string) bool {
	return r.Any(col) == nil
}

func (r Row) Set(col string, v any) {
	if i, ok := r.Ix[col]; ok {
		r.V[i] = v
	}
}

func (r Row) Str(col string) (string, bool) {
	switch t := r.Any(col).(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

func (r Row) Float(col string) (float64, bool) {
	switch t := r.Any(col).(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func (r Row) Int(col string) (int64, bool) {
	switch t := r.Any(col).(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

// Bool tolerates the numeric forms drivers without a native boolean type
// scan for declared-boolean columns (sqlite stores them as 0/1 integers).
func (r Row) Bool(col string) (bool, bool) {
	switch t := r.Any(col).(type) {
	case bool:
		return t, true
	case int64:
		return boolFromNumber(float64(t))
	case int:
		return boolFromNumber(float64(t))
	case float64:
		return boolFromNumber(t)
	default:
		return false, false
	}
}

func boolFromNumber(f float64) (bool, bool) {
	switch f {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}

func (r Row) Time(col string) (time.Time, bool) {
	t, ok := r.Any(col).(time.Time)
	return t, ok
}

// Dataset is a fully-materialized positional table: the unit of work passed
// between the engine's normalize, dedupe, derive and gate phases.
type Dataset struct {
	Columns []string
	Ix      Index
	Rows    [][]any
}

// NewDataset builds an empty dataset over the given columns.
func NewDataset(columns []string) *Dataset {
	return &Dataset{
		Columns: columns,
		Ix:      BuildIndex(columns),
	}
}

// Row wraps the i-th positional row for typed access.
func (d *Dataset) Row(i int) Row {
	return Row{V: d.Rows[i], Ix: d.Ix}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }
