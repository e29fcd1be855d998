package postgres

import (
	"strings"
	"testing"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

func TestBuildInsertSQLPlaceholderNumbering(t *testing.T) {
	sqlStr, args := buildInsertSQL("slv_customer", []string{"customer_id", "email"}, [][]any{
		{"C1", "a@example.com"},
		{"C2", nil},
	})

	want := `INSERT INTO "slv_customer" ("customer_id", "email") VALUES ($1, $2), ($3, $4);`
	if sqlStr != want {
		t.Fatalf("sql = %s, want %s", sqlStr, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[0] != "C1" || args[3] != nil {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	spec := storage.TableSpec{
		Name: "slv_product",
		Columns: []storage.ColumnSpec{
			{Name: "product_id", Type: "varchar(64)", Nullable: storage.Nullable(false)},
			{Name: "rating", Type: "double precision"},
		},
		Constraints: []storage.ConstraintSpec{
			{Kind: "unique", Columns: []string{"product_id"}},
		},
	}

	sqlStr, err := buildCreateTableSQL(spec, spec.Name, true)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	for _, frag := range []string{
		"CREATE TABLE IF NOT EXISTS",
		`"slv_product"`,
		`"product_id" varchar(64) NOT NULL`,
		`"rating" double precision`,
		`UNIQUE ("product_id")`,
	} {
		if !strings.Contains(sqlStr, frag) {
			t.Fatalf("sql %q lacks %q", sqlStr, frag)
		}
	}
}

func TestBuildCreateTableSQLSerialPrimaryKey(t *testing.T) {
	spec := storage.TableSpec{
		Name:       "dq_issues",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "issue_id", Type: "serial"},
		Columns: []storage.ColumnSpec{
			{Name: "table_name", Type: "text"},
		},
	}

	sqlStr, err := buildCreateTableSQL(spec, spec.Name, false)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	if !strings.Contains(sqlStr, `"issue_id" INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`) {
		t.Fatalf("sql %q lacks identity primary key", sqlStr)
	}
	if strings.Contains(sqlStr, "IF NOT EXISTS") {
		t.Fatalf("sql %q has unexpected IF NOT EXISTS", sqlStr)
	}
}

func TestBuildCreateTableSQLRejectsBadSpecs(t *testing.T) {
	if _, err := buildCreateTableSQL(storage.TableSpec{Name: "t"}, "t", true); err == nil {
		t.Fatal("expected error for a table with no columns")
	}

	bad := storage.TableSpec{
		Name:        "t",
		Columns:     []storage.ColumnSpec{{Name: "a", Type: "text"}},
		Constraints: []storage.ConstraintSpec{{Kind: "check", Columns: []string{"a"}}},
	}
	if _, err := buildCreateTableSQL(bad, bad.Name, true); err == nil {
		t.Fatal("expected error for unsupported constraint kind")
	}
}

func TestPgTableIdent(t *testing.T) {
	cases := map[string]string{
		"slv_order":        `"slv_order"`,
		"silver.slv_order": `"silver"."slv_order"`,
		`odd"name`:         `"odd""name"`,
	}
	for in, want := range cases {
		if got := pgTableIdent(in); got != want {
			t.Fatalf("pgTableIdent(%q) = %s, want %s", in, got, want)
		}
	}
}
