package dq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

func snapTable(snap Snapshot, name string, columns []string, rows ...[]any) {
	ds := transform.NewDataset(columns)
	ds.Rows = rows
	snap[name] = ds
}

func TestNullCheck(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "email"},
		[]any{"1", "a@example.com"},
		[]any{"2", nil},
	)

	issues := NullCheck("t", "email", []string{"id"}).Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryNull, issues[0].Category)
	assert.Equal(t, "email", issues[0].Column)
	assert.Equal(t, "id=2", issues[0].PrimaryKey)
}

func TestDuplicateKeyCheckReportsEachKeyOnce(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"a", "b"},
		[]any{"1", "x"},
		[]any{"1", "x"},
		[]any{"1", "x"},
		[]any{"2", "y"},
	)

	issues := DuplicateKeyCheck("t", []string{"a", "b"}).Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, "a=1,b=x", issues[0].PrimaryKey)
	assert.Contains(t, issues[0].Message, "3 times")
}

func TestFormatCheckSkipsNulls(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "email"},
		[]any{"1", "bad"},
		[]any{"2", nil},
		[]any{"3", "ok@example.com"},
	)

	issues := FormatCheck("t", "email", "email address", []string{"id"}, validEmail).Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, "bad", issues[0].Value)
}

func TestDomainCheck(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "status"},
		[]any{"1", "COMPLETED"},
		[]any{"2", "WEIRD"},
		[]any{"3", nil},
	)

	issues := DomainCheck("t", "status", []string{"id"}, "COMPLETED", "CANCELLED").Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, "WEIRD", issues[0].Value)
	assert.Equal(t, "id=2", issues[0].PrimaryKey)
}

func TestRangeCheckBounds(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "rating"},
		[]any{"1", 4.5},
		[]any{"2", -1.0},
		[]any{"3", 5.5},
		[]any{"4", nil},
	)

	issues := RangeCheck("t", "rating", []string{"id"}, bound(0), bound(5)).Run(snap, time.Time{})
	require.Len(t, issues, 2)
	assert.Equal(t, "id=2", issues[0].PrimaryKey)
	assert.Equal(t, "id=3", issues[1].PrimaryKey)
}

func TestReferentialCheck(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "child", []string{"id", "parent_id"},
		[]any{"1", "P1"},
		[]any{"2", "P9"},
		[]any{"3", nil}, // null FK belongs to the null check
	)
	snapTable(snap, "parent", []string{"parent_id"},
		[]any{"P1"},
		[]any{"P2"},
	)

	issues := ReferentialCheck("child", []string{"parent_id"}, []string{"id"},
		"parent", []string{"parent_id"}).Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, "id=2", issues[0].PrimaryKey)
	assert.Equal(t, "P9", issues[0].Value)
}

func TestRowCheckUsesPredicateMessage(t *testing.T) {
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "tag"},
		[]any{"1", "BR2: Failed payment with invalid refund_status"},
		[]any{"2", nil},
	)

	issues := RowCheck("t", "tag", CategoryBusiness, "default", []string{"id"},
		func(row transform.Row) (bool, string, string) {
			tag, ok := row.Str("tag")
			return ok, tag, tag
		}).Run(snap, time.Time{})
	require.Len(t, issues, 1)
	assert.Equal(t, "BR2: Failed payment with invalid refund_status", issues[0].Message)
}

func TestFutureDateCheckUsesScanInstant(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{}
	snapTable(snap, "t", []string{"id", "effective_date"},
		[]any{"1", at.AddDate(0, 0, -1)},
		[]any{"2", at.AddDate(0, 0, 1)},
		[]any{"3", nil},
	)

	check := FutureDateCheck("t", "effective_date", []string{"id"})
	issues := check.Run(snap, at)
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryOutOfRange, issues[0].Category)
	assert.Equal(t, "id=2", issues[0].PrimaryKey)

	// Once the reference instant passes the date, the same snapshot is
	// clean: the check measures against the scan clock, not the wall clock.
	issues = check.Run(snap, at.AddDate(1, 0, 0))
	assert.Empty(t, issues)
}

func TestChecksIgnoreMissingTables(t *testing.T) {
	snap := Snapshot{}
	assert.Empty(t, NullCheck("absent", "c", []string{"id"}).Run(snap, time.Time{}))
	assert.Empty(t, DuplicateKeyCheck("absent", []string{"id"}).Run(snap, time.Time{}))
	assert.Empty(t, ReferentialCheck("absent", []string{"x"}, []string{"id"}, "also_absent", []string{"x"}).Run(snap, time.Time{}))
}

func TestCatalogCoversEveryCategory(t *testing.T) {
	seen := make(map[Category]bool)
	for _, c := range Catalog() {
		seen[c.Category] = true
		assert.NotEmpty(t, c.Table)
		assert.NotNil(t, c.Run)
	}
	for _, cat := range []Category{
		CategoryNull, CategoryDuplicate, CategoryFormat, CategoryDomain,
		CategoryOutOfRange, CategoryReferential, CategoryConsistency,
		CategoryBusiness,
	} {
		assert.True(t, seen[cat], "category %s has no checks", cat)
	}
}
