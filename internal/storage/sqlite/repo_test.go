package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

func TestBuildCreateTableSQL(t *testing.T) {
	spec := storage.TableSpec{
		Name: "slv_customer",
		Columns: []storage.ColumnSpec{
			{Name: "customer_id", Type: "varchar(64)", Nullable: storage.Nullable(false)},
			{Name: "email", Type: "text"},
			{Name: "dwh_load_ts", Type: "timestamptz"},
		},
		Constraints: []storage.ConstraintSpec{
			{Kind: "unique", Columns: []string{"customer_id"}},
		},
	}

	sqlStr, err := buildCreateTableSQL(spec, spec.Name, true)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	for _, frag := range []string{
		"CREATE TABLE IF NOT EXISTS",
		`"slv_customer"`,
		`"customer_id" varchar(64) NOT NULL`,
		`"email" text`,
		`UNIQUE ("customer_id")`,
	} {
		if !strings.Contains(sqlStr, frag) {
			t.Fatalf("sql %q lacks %q", sqlStr, frag)
		}
	}
}

func TestBuildCreateTableSQLAutoincrementKey(t *testing.T) {
	spec := storage.TableSpec{
		Name:       "dq_issues",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "issue_id", Type: "serial"},
		Columns:    []storage.ColumnSpec{{Name: "table_name", Type: "text"}},
	}

	sqlStr, err := buildCreateTableSQL(spec, spec.Name, false)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	if !strings.Contains(sqlStr, `"issue_id" INTEGER PRIMARY KEY AUTOINCREMENT`) {
		t.Fatalf("sql %q lacks rowid key translation", sqlStr)
	}
	if strings.Contains(sqlStr, "IF NOT EXISTS") {
		t.Fatalf("sql %q has unexpected IF NOT EXISTS", sqlStr)
	}
}

func TestBuildCreateTableSQLRejectsUnsupportedConstraint(t *testing.T) {
	spec := storage.TableSpec{
		Name:        "t",
		Columns:     []storage.ColumnSpec{{Name: "a", Type: "text"}},
		Constraints: []storage.ConstraintSpec{{Kind: "check", Columns: []string{"a"}}},
	}
	if _, err := buildCreateTableSQL(spec, spec.Name, true); err == nil {
		t.Fatal("expected error for unsupported constraint kind")
	}
}

// SQLite has no native boolean type; declared-boolean columns come back as
// 0/1 integers. Flag columns must survive a real write-read cycle and still
// read as booleans through the row accessors.
func TestBooleanRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := New(ctx, storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "t.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	spec := storage.TableSpec{
		Name:            "slv_payment_channel",
		AutoCreateTable: true,
		Columns: []storage.ColumnSpec{
			{Name: "channel_id", Type: "varchar(64)"},
			{Name: "is_card", Type: "boolean"},
			{Name: "is_wallet", Type: "boolean"},
		},
	}
	if err := repo.EnsureTables(ctx, []storage.TableSpec{spec}); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}

	columns := spec.ColumnNames()
	in := [][]any{
		{"CH1", true, false},
		{"CH2", false, true},
	}
	if err := repo.ReplaceRows(ctx, spec, columns, in); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}

	rows, err := repo.SelectRows(ctx, spec.Name, columns)
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	ds := transform.NewDataset(columns)
	ds.Rows = rows
	for i, want := range []struct{ card, wallet bool }{
		{true, false},
		{false, true},
	} {
		row := ds.Row(i)
		card, ok := row.Bool("is_card")
		if !ok || card != want.card {
			t.Fatalf("row %d is_card = (%v, %v) from %T, want (%v, true)",
				i, card, ok, row.Any("is_card"), want.card)
		}
		wallet, ok := row.Bool("is_wallet")
		if !ok || wallet != want.wallet {
			t.Fatalf("row %d is_wallet = (%v, %v) from %T, want (%v, true)",
				i, wallet, ok, row.Any("is_wallet"), want.wallet)
		}
	}
}

func TestSQLIdentQuoting(t *testing.T) {
	if got := sqlIdent(`odd"name`); got != `"odd""name"` {
		t.Fatalf("sqlIdent = %s", got)
	}
	if got := joinIdentList([]string{"a", "b"}); got != `"a", "b"` {
		t.Fatalf("joinIdentList = %s", got)
	}
}
