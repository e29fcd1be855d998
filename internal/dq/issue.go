// Package dq implements the data-quality rule engine: an open catalog of
// independent, read-only checks over the validated tables, and a scanner
// that runs the catalog and fills the issue sink.
package dq

import (
	"fmt"
	"strconv"
	"time"
)

// Category classifies an issue. The set is closed; the catalog of checks
// within each category is open.
type Category string

const (
	CategoryNull        Category = "null_check"
	CategoryDuplicate   Category = "duplicate_key"
	CategoryFormat      Category = "format"
	CategoryDomain      Category = "domain"
	CategoryOutOfRange  Category = "out_of_range"
	CategoryReferential Category = "referential"
	CategoryConsistency Category = "consistency"
	CategoryBusiness    Category = "business_rule"
)

// Issue is one detected violation. Many issues may exist for the same row;
// issues carry no identity beyond the surrogate id the sink assigns.
type Issue struct {
	Table      string
	Column     string // empty when the issue spans the whole row
	Category   Category
	Message    string
	Value      string // offending value, empty when null or row-scoped
	PrimaryKey string // "col=val" pairs locating the row, empty when unknown
}

// formatValue renders an offending value for the issue record.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
