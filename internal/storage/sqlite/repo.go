package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no schemas, so the warehouse layers are expressed as table
//     name prefixes (brz_/slv_/dq_) rather than schema qualification.
//   - Timestamps are stored as RFC3339Nano TEXT for reliable round-trip
//     behavior with modernc.org/sqlite.
//   - The atomic publish uses DROP + ALTER TABLE RENAME inside a single
//     transaction; SQLite DDL is transactional, so readers never observe a
//     half-replaced table.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	// The rename swap requires the staging and live table to be visible to
	// the same connection; modernc's default pool size is fine, but a shared
	// in-memory DSN must be used for ":memory:" based tests.
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables creates destination tables when they do not exist yet.
// Keeps pipeline startup idempotent.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if !t.AutoCreateTable {
			continue
		}
		ddl, err := buildCreateTableSQL(t, t.Name, true)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(columns), sqlIdent(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select %s: %w", table, err)
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
			return nil, fmt.Errorf("sqlite: scan %s: %w", table, err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// ReplaceRows atomically replaces the full contents of spec.Name.
//
// The flow inside one transaction:
//   - drop any leftover staging table from a previously failed run
//   - create <table>__stage with the destination DDL
//   - bulk insert the new rows (chunked to respect the bind-variable limit)
//   - drop the live table and rename the staging table into place
//
// A failure anywhere rolls the whole thing back, leaving the previous
// contents untouched.
func (r *Repo) ReplaceRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) error {
	stage := spec.Name + "__stage"

	stageDDL, err := buildCreateTableSQL(spec, stage, false)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(stage)); err != nil {
		return fmt.Errorf("sqlite: drop stale staging %s: %w", stage, err)
	}
	if _, err := tx.ExecContext(ctx, stageDDL); err != nil {
		return fmt.Errorf("sqlite: create staging %s: %w", stage, err)
	}

	if err := insertChunked(ctx, tx, stage, columns, rows); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return fmt.Errorf("sqlite: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", sqlIdent(stage), sqlIdent(spec.Name))); err != nil {
		return fmt.Errorf("sqlite: publish %s: %w", spec.Name, err)
	}

	return tx.Commit()
}

func (r *Repo) SelectKeySet(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s`, joinIdentList(keyColumns), sqlIdent(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select keys %s: %w", table, err)
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
			return nil, fmt.Errorf("sqlite: scan keys %s: %w", table, err)
		}
		out[storage.CompositeKey(vals)] = struct{}{}
	}
	return out, rows.Err()
}

// insertChunked performs multi-row inserts sized to stay well under SQLite's
// bind-variable limit regardless of column count.
func insertChunked(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	const maxArgs = 900
	perStmt := maxArgs / len(columns)
	if perStmt < 1 {
		perStmt = 1
	}

	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", sqlIdent(table), joinIdentList(columns))

	for start := 0; start < len(rows); start += perStmt {
		end := start + perStmt
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, len(part)*len(columns))
		for i, row := range part {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholders)
			args = append(args, row...)
		}

		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
	}
	return nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdentList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, sqlIdent(c))
	}
	return strings.Join(out, ", ")
}

// buildCreateTableSQL generates DDL for a table under the given name.
//
// includeIfNotExists distinguishes the idempotent EnsureTables path from the
// staging path, where the table was just dropped and a silent no-op would
// mask a bug.
func buildCreateTableSQL(t storage.TableSpec, name string, includeIfNotExists bool) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	var parts []string

	if t.PrimaryKey != nil {
		pkType := strings.TrimSpace(strings.ToLower(t.PrimaryKey.Type))

		// Translate common postgres/mssql-ish pk types into sqlite semantics.
		// "INTEGER PRIMARY KEY" is special in sqlite: it becomes the rowid and
		// auto-generates values.
		switch pkType {
		case "serial", "bigserial", "int identity", "integer identity", "identity":
			parts = append(parts, fmt.Sprintf(`%s INTEGER PRIMARY KEY AUTOINCREMENT`, sqlIdent(t.PrimaryKey.Name)))
		default:
			parts = append(parts, fmt.Sprintf(`%s %s PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name), t.PrimaryKey.Type))
		}
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), c.Type)
		nullable := true
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		if !nullable {
			col += " NOT NULL"
		}
		// SQLite supports REFERENCES, but enforcement depends on PRAGMA foreign_keys=ON.
		if c.References != "" {
			col += " REFERENCES " + c.References
		}
		parts = append(parts, col)
	}

	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	create := "CREATE TABLE "
	if includeIfNotExists {
		create = "CREATE TABLE IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, sqlIdent(name), strings.Join(parts, ",\n  ")), nil
}
