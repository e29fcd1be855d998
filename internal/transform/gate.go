package transform

import (
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// GateResult itemizes why rows were withheld from publish.
type GateResult struct {
	// MissingRequired counts rows with a null in a required column.
	MissingRequired int
	// FailedAnyTrue counts rows where no member of some any-true group
	// held true.
	FailedAnyTrue int
	// BrokenRefs counts rows whose foreign key did not resolve against the
	// parent's validated key set. A null foreign-key column counts here.
	BrokenRefs int
}

// Dropped is the total number of rows the gate withheld.
func (g GateResult) Dropped() int {
	return g.MissingRequired + g.FailedAnyTrue + g.BrokenRefs
}

// gate filters the dataset down to publishable rows, in place. Each dropped
// row is attributed to exactly one reason, checked in order: required
// columns first, any-true groups second, references last.
func gate(ds *Dataset, c *compiledSpec, parents map[string]map[string]struct{}) GateResult {
	var res GateResult
	kept := ds.Rows[:0]

rows:
	for _, row := range ds.Rows {
		for _, ix := range c.requiredIx {
			if row[ix] == nil {
				res.MissingRequired++
				continue rows
			}
		}
		for _, group := range c.anyTrueIx {
			ok := false
			for _, ix := range group {
				if b, isBool := row[ix].(bool); isBool && b {
					ok = true
					break
				}
			}
			if !ok {
				res.FailedAnyTrue++
				continue rows
			}
		}
		for _, ref := range c.refIx {
			if !refResolves(row, ref, parents) {
				res.BrokenRefs++
				continue rows
			}
		}
		kept = append(kept, row)
	}

	ds.Rows = kept
	return res
}

func refResolves(row []any, ref refAt, parents map[string]map[string]struct{}) bool {
	keys := parents[ref.parent]
	if keys == nil {
		return false
	}
	parts := make([]any, len(ref.ix))
	for i, ix := range ref.ix {
		if row[ix] == nil {
			return false
		}
		parts[i] = row[ix]
	}
	_, ok := keys[storage.CompositeKey(parts)]
	return ok
}
