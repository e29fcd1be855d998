package dq

import (
	"fmt"
	"strings"
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Snapshot is the in-memory view of the validated tables a scan runs
// against. Checks only ever read it, which is what keeps them independent
// of each other and the scan idempotent.
type Snapshot map[string]*transform.Dataset

// Check is one independent rule: it scans one table (plus, for referential
// checks, one parent table) and yields zero or more issues.
type Check struct {
	Table    string
	Column   string
	Category Category

	// Run evaluates the check against the snapshot. at is the scan's
	// reference instant; time-sensitive checks measure against it instead
	// of reading the wall clock.
	Run func(snap Snapshot, at time.Time) []Issue
}

// pk renders a row's locator from its key columns.
func pk(row transform.Row, keyCols []string) string {
	parts := make([]string, 0, len(keyCols))
	for _, c := range keyCols {
		parts = append(parts, c+"="+formatValue(row.Any(c)))
	}
	return strings.Join(parts, ",")
}

// NullCheck flags rows where a business-critical column is null.
func NullCheck(table, column string, keyCols []string) Check {
	return Check{
		Table: table, Column: column, Category: CategoryNull,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				if row.IsNull(column) {
					issues = append(issues, Issue{
						Table: table, Column: column, Category: CategoryNull,
						Message:    fmt.Sprintf("%s is null", column),
						PrimaryKey: pk(row, keyCols),
					})
				}
			}
			return issues
		},
	}
}

// DuplicateKeyCheck flags natural keys that occur more than once. One issue
// is emitted per key, not per occurrence.
func DuplicateKeyCheck(table string, keyCols []string) Check {
	return Check{
		Table: table, Category: CategoryDuplicate,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			counts := make(map[string]int, ds.Len())
			for i := 0; i < ds.Len(); i++ {
				counts[pk(ds.Row(i), keyCols)]++
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				key := pk(ds.Row(i), keyCols)
				if counts[key] > 1 {
					issues = append(issues, Issue{
						Table: table, Category: CategoryDuplicate,
						Message:    fmt.Sprintf("natural key occurs %d times", counts[key]),
						PrimaryKey: key,
					})
					counts[key] = -1 // report each key once
				}
			}
			return issues
		},
	}
}

// FormatCheck flags non-null string values failing a format predicate.
func FormatCheck(table, column, format string, keyCols []string, valid func(string) bool) Check {
	return Check{
		Table: table, Column: column, Category: CategoryFormat,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				s, ok := row.Str(column)
				if !ok {
					continue
				}
				if !valid(s) {
					issues = append(issues, Issue{
						Table: table, Column: column, Category: CategoryFormat,
						Message:    fmt.Sprintf("%s is not a valid %s", column, format),
						Value:      s,
						PrimaryKey: pk(row, keyCols),
					})
				}
			}
			return issues
		},
	}
}

// DomainCheck flags non-null values outside an allowed set. Nulls are the
// null check's business.
func DomainCheck(table, column string, keyCols []string, domain ...string) Check {
	allowed := make(map[string]struct{}, len(domain))
	for _, d := range domain {
		allowed[d] = struct{}{}
	}
	return Check{
		Table: table, Column: column, Category: CategoryDomain,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				v := row.Any(column)
				if v == nil {
					continue
				}
				s := formatValue(v)
				if _, ok := allowed[s]; !ok {
					issues = append(issues, Issue{
						Table: table, Column: column, Category: CategoryDomain,
						Message:    fmt.Sprintf("%s outside domain %v", column, domain),
						Value:      s,
						PrimaryKey: pk(row, keyCols),
					})
				}
			}
			return issues
		},
	}
}

// RangeCheck flags non-null numeric values outside [min, max]. A nil bound
// is open.
func RangeCheck(table, column string, keyCols []string, min, max *float64) Check {
	return Check{
		Table: table, Column: column, Category: CategoryOutOfRange,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				if row.IsNull(column) {
					continue
				}
				f, ok := row.Float(column)
				if !ok {
					continue
				}
				if (min != nil && f < *min) || (max != nil && f > *max) {
					issues = append(issues, Issue{
						Table: table, Column: column, Category: CategoryOutOfRange,
						Message:    fmt.Sprintf("%s out of range", column),
						Value:      formatValue(row.Any(column)),
						PrimaryKey: pk(row, keyCols),
					})
				}
			}
			return issues
		},
	}
}

// ReferentialCheck flags child rows whose foreign key has no match in the
// parent table's key set. Null foreign keys are skipped; the null check
// owns those.
func ReferentialCheck(table string, columns []string, keyCols []string, parentTable string, parentCols []string) Check {
	column := strings.Join(columns, ",")
	return Check{
		Table: table, Column: column, Category: CategoryReferential,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			parent := snap[parentTable]
			if ds == nil || parent == nil {
				return nil
			}

			keys := make(map[string]struct{}, parent.Len())
			parts := make([]any, len(parentCols))
			for i := 0; i < parent.Len(); i++ {
				row := parent.Row(i)
				for j, c := range parentCols {
					parts[j] = row.Any(c)
				}
				keys[storage.CompositeKey(parts)] = struct{}{}
			}

			var issues []Issue
			childParts := make([]any, len(columns))
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				null := false
				for j, c := range columns {
					childParts[j] = row.Any(c)
					if childParts[j] == nil {
						null = true
					}
				}
				if null {
					continue
				}
				if _, ok := keys[storage.CompositeKey(childParts)]; !ok {
					issues = append(issues, Issue{
						Table: table, Column: column, Category: CategoryReferential,
						Message:    fmt.Sprintf("%s has no match in %s", column, parentTable),
						Value:      formatValue(row.Any(columns[0])),
						PrimaryKey: pk(row, keyCols),
					})
				}
			}
			return issues
		},
	}
}

// RowCheck flags rows where a predicate holds. It serves the consistency
// and business_rule categories, whose conditions span multiple columns.
// The predicate returns whether the row violates the rule and, optionally,
// a value and a message overriding the check's default.
func RowCheck(table, column string, category Category, message string, keyCols []string, pred func(row transform.Row) (bool, string, string)) Check {
	return Check{
		Table: table, Column: column, Category: category,
		Run: func(snap Snapshot, _ time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				bad, value, msg := pred(row)
				if !bad {
					continue
				}
				if msg == "" {
					msg = message
				}
				issues = append(issues, Issue{
					Table: table, Column: column, Category: category,
					Message:    msg,
					Value:      value,
					PrimaryKey: pk(row, keyCols),
				})
			}
			return issues
		},
	}
}

// FutureDateCheck flags non-null date values after the scan's reference
// instant, so a pinned scanner clock makes the findings reproducible.
func FutureDateCheck(table, column string, keyCols []string) Check {
	return Check{
		Table: table, Column: column, Category: CategoryOutOfRange,
		Run: func(snap Snapshot, at time.Time) []Issue {
			ds := snap[table]
			if ds == nil {
				return nil
			}
			var issues []Issue
			for i := 0; i < ds.Len(); i++ {
				row := ds.Row(i)
				d, ok := row.Time(column)
				if !ok || !d.After(at) {
					continue
				}
				issues = append(issues, Issue{
					Table: table, Column: column, Category: CategoryOutOfRange,
					Message:    fmt.Sprintf("%s lies in the future", column),
					Value:      formatValue(d),
					PrimaryKey: pk(row, keyCols),
				})
			}
			return issues
		},
	}
}
