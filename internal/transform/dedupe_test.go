package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dedupeDataset(rows [][]any) *Dataset {
	ds := NewDataset([]string{"id", "name", "load_date"})
	ds.Rows = rows
	return ds
}

func TestDedupeLatestWins(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	ds := dedupeDataset([][]any{
		{"C1", "old name", older},
		{"C1", "new name", newer},
		{"C2", "only", older},
	})
	res := Dedupe(ds, []string{"id"}, "load_date")

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, "new name", ds.Rows[0][1])
}

func TestDedupeTieBreakIsContentDeterministic(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := []any{"C1", "aaa", ts}
	b := []any{"C1", "bbb", ts}

	// Same key, same rank, both input orders: the winner must be the same
	// row either way.
	first := dedupeDataset([][]any{a, b})
	Dedupe(first, []string{"id"}, "load_date")
	second := dedupeDataset([][]any{b, a})
	Dedupe(second, []string{"id"}, "load_date")

	require.Equal(t, 1, first.Len())
	require.Equal(t, 1, second.Len())
	assert.Equal(t, first.Rows[0][1], second.Rows[0][1])
}

func TestDedupeDropsNullKeys(t *testing.T) {
	ts := time.Now().UTC()
	ds := dedupeDataset([][]any{
		{nil, "no key", ts},
		{"C1", "keyed", ts},
	})
	res := Dedupe(ds, []string{"id"}, "load_date")

	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, res.NullKeys)
	assert.Equal(t, 0, res.Duplicates)
}

func TestDedupeNullRankLosesToAnyRank(t *testing.T) {
	ts := time.Now().UTC()
	ds := dedupeDataset([][]any{
		{"C1", "ranked", ts},
		{"C1", "unranked", nil},
	})
	Dedupe(ds, []string{"id"}, "load_date")

	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "ranked", ds.Rows[0][1])
}

func TestDedupePreservesFirstSeenKeyOrder(t *testing.T) {
	ts := time.Now().UTC()
	ds := dedupeDataset([][]any{
		{"C3", "", ts},
		{"C1", "", ts},
		{"C3", "", ts.Add(time.Hour)},
		{"C2", "", ts},
	})
	Dedupe(ds, []string{"id"}, "load_date")

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, "C3", ds.Rows[0][0])
	assert.Equal(t, "C1", ds.Rows[1][0])
	assert.Equal(t, "C2", ds.Rows[2][0])
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Fingerprint([]any{"x", int64(1), ts})
	b := Fingerprint([]any{"x", int64(1), ts})
	c := Fingerprint([]any{"x", int64(2), ts})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)

	// Null and empty string must not collide.
	assert.NotEqual(t, Fingerprint([]any{nil}), Fingerprint([]any{""}))
}
