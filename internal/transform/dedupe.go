package transform

import (
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// DedupeResult reports what Dedupe dropped alongside the surviving rows.
type DedupeResult struct {
	// Duplicates counts rows that lost to another row with the same key.
	Duplicates int
	// NullKeys counts rows dropped because a natural-key column was null.
	NullKeys int
}

// Dedupe keeps exactly one row per natural key, mutating ds in place.
//
// The winner is the row with the greatest rank value (typically a load
// timestamp, so latest wins). Rank ties are broken by the smaller row
// fingerprint, which makes the survivor a pure function of row content
// rather than of input order. Rows whose key contains a null cannot be
// keyed and are dropped outright.
func Dedupe(ds *Dataset, keyColumns []string, rankBy string) DedupeResult {
	var res DedupeResult
	if len(keyColumns) == 0 || ds.Len() == 0 {
		return res
	}

	keyIx := make([]int, len(keyColumns))
	for i, c := range keyColumns {
		keyIx[i] = ds.Ix[c]
	}
	rankIx := -1
	if rankBy != "" {
		rankIx = ds.Ix[rankBy]
	}

	type winner struct {
		row         []any
		rank        any
		fingerprint string
	}
	best := make(map[string]*winner, ds.Len())
	order := make([]string, 0, ds.Len())

	keyParts := make([]any, len(keyIx))
	for _, row := range ds.Rows {
		null := false
		for i, ix := range keyIx {
			if row[ix] == nil {
				null = true
				break
			}
			keyParts[i] = row[ix]
		}
		if null {
			res.NullKeys++
			continue
		}
		key := storage.CompositeKey(keyParts)

		var rank any
		if rankIx >= 0 {
			rank = row[rankIx]
		}
		cur, seen := best[key]
		if !seen {
			best[key] = &winner{row: row, rank: rank}
			order = append(order, key)
			continue
		}

		res.Duplicates++
		switch cmp := rankCompare(rank, cur.rank); {
		case cmp > 0:
			best[key] = &winner{row: row, rank: rank}
		case cmp == 0:
			if cur.fingerprint == "" {
				cur.fingerprint = Fingerprint(cur.row)
			}
			if fp := Fingerprint(row); fp < cur.fingerprint {
				best[key] = &winner{row: row, rank: rank, fingerprint: fp}
			}
		}
	}

	kept := make([][]any, 0, len(order))
	for _, key := range order {
		kept = append(kept, best[key].row)
	}
	ds.Rows = kept
	return res
}

// rankCompare orders two rank values. Nulls sort lowest; mixed types fall
// back to their canonical string form.
func rankCompare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := storage.NormalizeKey(a), storage.NormalizeKey(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}
