package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// This implementation supports:
//   - Idempotent table creation guarded by OBJECT_ID (no IF NOT EXISTS syntax).
//   - Full-table reads for the DQ scanner.
//   - Atomic full-refresh publishing. SQL Server DDL participates in
//     transactions, so the staging-table build, the drop of the live table
//     and the sp_rename publish all commit or roll back together.
//
// Identity surrogate keys ("serial"/"identity" in TableSpec) are rendered as
// INT IDENTITY(1,1).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
// It validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if !t.AutoCreateTable {
			continue
		}
		defs, err := buildCreateTableDefs(t)
		if err != nil {
			return err
		}
		ddl := wrapCreateIfMissing(t.Name, defs)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(columns), mssqlTableIdent(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: select %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("mssql: scan %s: %w", table, err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// ReplaceRows atomically replaces the full contents of spec.Name using a
// staging table built and published inside one transaction.
func (r *Repo) ReplaceRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) error {
	stage := spec.Name + "__stage"

	stageSpec := spec
	stageSpec.Name = stage
	defs, err := buildCreateTableDefs(stageSpec)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	dropStale := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;", stage, mssqlTableIdent(stage))
	if _, err := tx.ExecContext(ctx, dropStale); err != nil {
		return fmt.Errorf("mssql: drop stale staging %s: %w", stage, err)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s);", mssqlTableIdent(stage), defs)
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("mssql: create staging %s: %w", stage, err)
	}

	if err := insertChunked(ctx, tx, stage, columns, rows); err != nil {
		return err
	}

	dropLive := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;", spec.Name, mssqlTableIdent(spec.Name))
	if _, err := tx.ExecContext(ctx, dropLive); err != nil {
		return fmt.Errorf("mssql: drop %s: %w", spec.Name, err)
	}

	rename := fmt.Sprintf("EXEC sp_rename N'%s', N'%s';", stage, spec.Name)
	if _, err := tx.ExecContext(ctx, rename); err != nil {
		return fmt.Errorf("mssql: publish %s: %w", spec.Name, err)
	}

	return tx.Commit()
}

func (r *Repo) SelectKeySet(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(keyColumns), mssqlTableIdent(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: select keys %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		vals := make([]any, len(keyColumns))
		dests := make([]any, len(keyColumns))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("mssql: scan keys %s: %w", table, err)
		}
		out[storage.CompositeKey(vals)] = struct{}{}
	}
	return out, rows.Err()
}

// insertChunked bulk-inserts rows in chunks. SQL Server caps a statement at
// 2100 parameters; the chunk size keeps a wide margin under that.
func insertChunked(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	const maxArgs = 2000
	perStmt := maxArgs / len(columns)
	if perStmt < 1 {
		perStmt = 1
	}

	for start := 0; start < len(rows); start += perStmt {
		end := start + perStmt
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		query, args := buildBulkInsertSQL(table, columns, part)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
	}
	return nil
}

// buildBulkInsertSQL renders a multi-row INSERT with @p1.. ordinal markers.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("@p%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// buildCreateTableDefs produces the "(...)" inner content for CREATE TABLE.
func buildCreateTableDefs(t storage.TableSpec) (string, error) {
	var parts []string

	if t.PrimaryKey != nil {
		pkDef, err := mssqlPrimaryKeyDef(*t.PrimaryKey)
		if err != nil {
			return "", err
		}
		parts = append(parts, pkDef)
	}

	for _, c := range t.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, def)
	}

	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return "", fmt.Errorf("%s unique constraint has no columns", t.Name)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, mssqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", t.Name)
	}
	return strings.Join(parts, ", "), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
//
// This keeps EnsureTables idempotent without requiring IF NOT EXISTS syntax.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		tableName,
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// mssqlPrimaryKeyDef returns a column definition for an identity primary key.
//
// Supported types (case-insensitive):
//   - "serial", "identity" variants -> INT IDENTITY(1,1) PRIMARY KEY
//   - "bigserial" -> BIGINT IDENTITY(1,1) PRIMARY KEY
//   - otherwise uses pk.Type verbatim with PRIMARY KEY.
func mssqlPrimaryKeyDef(pk storage.PrimaryKeySpec) (string, error) {
	if strings.TrimSpace(pk.Name) == "" {
		return "", fmt.Errorf("mssql: primary key name is empty")
	}
	typ := strings.ToLower(strings.TrimSpace(pk.Type))
	switch typ {
	case "serial", "int identity", "integer identity", "identity":
		return fmt.Sprintf("%s INT IDENTITY(1,1) PRIMARY KEY", mssqlIdent(pk.Name)), nil
	case "bigserial":
		return fmt.Sprintf("%s BIGINT IDENTITY(1,1) PRIMARY KEY", mssqlIdent(pk.Name)), nil
	default:
		return fmt.Sprintf("%s %s PRIMARY KEY", mssqlIdent(pk.Name), pk.Type), nil
	}
}

// mssqlColumnDef builds a SQL Server column definition from storage.ColumnSpec.
//
// It respects nullability and attaches a raw REFERENCES clause if provided.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("mssql: column %s type is empty", c.Name)
	}

	var b strings.Builder
	b.WriteString(mssqlIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(translateType(c.Type))

	nullable := true
	if c.Nullable != nil {
		nullable = *c.Nullable
	}
	if !nullable {
		b.WriteString(" NOT NULL")
	}
	if strings.TrimSpace(c.References) != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(c.References)
	}

	return b.String(), nil
}

// translateType maps the portable column types used by the warehouse schemas
// onto SQL Server equivalents. Unknown types pass through verbatim.
func translateType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text":
		return "NVARCHAR(MAX)"
	case "double precision":
		return "FLOAT"
	case "boolean":
		return "BIT"
	case "timestamptz":
		return "DATETIME2"
	default:
		return t
	}
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func joinIdentList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, mssqlIdent(c))
	}
	return strings.Join(out, ", ")
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.slv_orders" -> [dbo].[slv_orders]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
