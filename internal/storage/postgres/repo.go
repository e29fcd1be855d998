package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

It provides:
  - Idempotent DDL from TableSpec (EnsureTables)
  - Full-table reads for the DQ scanner
  - Atomic full-refresh publishing via staging table + rename, which is safe
    because Postgres DDL is transactional

Surrogate keys declared as "serial"/"bigserial" are rendered as identity
columns rather than literal SERIAL: SERIAL creates a named sequence tied to
the staging table's name, which would collide on the next run after the
rename. Identity columns get system-chosen sequence names and avoid the
collision entirely.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a new Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTables creates destination tables (and their schema, when the name is
// schema-qualified) if they do not exist. This method is idempotent.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if !t.AutoCreateTable {
			continue
		}

		if schema, _ := splitQualifiedName(t.Name); schema != "" {
			q := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
			if _, err := r.pool.Exec(ctx, q); err != nil {
				return fmt.Errorf("create schema for %s: %w", t.Name, err)
			}
		}

		ddl, err := buildCreateTableSQL(t, t.Name, true)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(columns), pgTableIdent(table))

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		// IMPORTANT: pgx requires that Scan destinations are pointers.
		// Build a parallel destinations slice containing &vals[i]; this is
		// the standard pgx pattern for scanning a dynamic column list.
		vals := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", table, err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// ReplaceRows atomically replaces the full contents of spec.Name.
//
// Everything happens in one transaction: create staging, bulk insert, drop
// the live table, rename staging into place. Readers either see the old
// contents or the new contents, never a partially loaded table.
func (r *Repo) ReplaceRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) error {
	stage := spec.Name + "__stage"

	stageDDL, err := buildCreateTableSQL(spec, stage, false)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgTableIdent(stage)); err != nil {
		return fmt.Errorf("postgres: drop stale staging %s: %w", stage, err)
	}
	if _, err := tx.Exec(ctx, stageDDL); err != nil {
		return fmt.Errorf("postgres: create staging %s: %w", stage, err)
	}

	if err := insertChunked(ctx, tx, stage, columns, rows); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgTableIdent(spec.Name)); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", spec.Name, err)
	}

	_, bare := splitQualifiedName(spec.Name)
	_, stageBare := splitQualifiedName(stage)
	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pgTableIdent(stageBare), pgIdent(bare))
	if schema, _ := splitQualifiedName(spec.Name); schema != "" {
		renameSQL = fmt.Sprintf("ALTER TABLE %s.%s RENAME TO %s", pgIdent(schema), pgIdent(stageBare), pgIdent(bare))
	}
	if _, err := tx.Exec(ctx, renameSQL); err != nil {
		return fmt.Errorf("postgres: publish %s: %w", spec.Name, err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) SelectKeySet(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(keyColumns), pgTableIdent(table))

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: select keys %s: %w", table, err)
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
			return nil, fmt.Errorf("postgres: scan keys %s: %w", table, err)
		}
		out[storage.CompositeKey(vals)] = struct{}{}
	}
	return out, rows.Err()
}

// insertChunked bulk-inserts rows in chunks that keep the statement parameter
// count well below Postgres's limit.
func insertChunked(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) error {
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

		sql, args := buildInsertSQL(table, columns, part)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
	}
	return nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Why this exists:
//   - It is pure and deterministic, so placeholder numbering can be unit
//     tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// buildCreateTableSQL renders DDL for a table under the given name.
func buildCreateTableSQL(t storage.TableSpec, name string, ifNotExists bool) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("buildCreateTableSQL: table name is empty")
	}

	cols := make([]string, 0, len(t.Columns)+1)

	if t.PrimaryKey != nil {
		pk := strings.TrimSpace(t.PrimaryKey.Name)
		if pk == "" {
			return "", fmt.Errorf("table %s: primary_key.name is required", t.Name)
		}
		pkType := strings.ToLower(strings.TrimSpace(t.PrimaryKey.Type))
		switch pkType {
		case "serial", "int identity", "integer identity", "identity":
			cols = append(cols, fmt.Sprintf(`%s INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`, pgIdent(pk)))
		case "bigserial":
			cols = append(cols, fmt.Sprintf(`%s BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`, pgIdent(pk)))
		default:
			cols = append(cols, fmt.Sprintf(`%s %s PRIMARY KEY`, pgIdent(pk), t.PrimaryKey.Type))
		}
	}

	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		cols = append(cols, def)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s: no columns", t.Name)
	}

	for _, con := range t.Constraints {
		kind := strings.ToLower(strings.TrimSpace(con.Kind))
		if kind != "unique" {
			return "", fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return "", fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		var parts []string
		for _, c := range con.Columns {
			parts = append(parts, pgIdent(strings.TrimSpace(c)))
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(parts, ", ")))
	}

	create := "CREATE TABLE "
	if ifNotExists {
		create = "CREATE TABLE IF NOT EXISTS "
	}
	return fmt.Sprintf(`%s%s (%s);`, create, pgTableIdent(name), strings.Join(cols, ", ")), nil
}

// buildColumnDef renders a single column definition.
//
// Nullable semantics:
//   - nullable == nil  => NULL allowed (warehouse columns default to nullable;
//     required fields are enforced by the referential gate, not the DDL).
//   - nullable == false => NOT NULL.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	typ := strings.TrimSpace(c.Type)
	if name == "" || typ == "" {
		return "", fmt.Errorf("column name/type must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(typ)

	nullable := true
	if c.Nullable != nil {
		nullable = *c.Nullable
	}
	if !nullable {
		b.WriteString(" NOT NULL")
	}

	if ref := strings.TrimSpace(c.References); ref != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(ref)
	}

	return b.String(), nil
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "silver.customers" => ("silver", "customers")
//   - "customers"        => ("", "customers")
//
// This helper is intentionally conservative: it only handles a single dot.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// pgTableIdent quotes a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

func joinIdentList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, pgIdent(c))
	}
	return strings.Join(out, ", ")
}
