package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic interface for the warehouse pipeline.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the transform engine and the DQ scanner need. Each backend
// implements these semantics in its own idiomatic way (Postgres staging
// table + rename, SQLite rename inside a transaction, etc).
type Repository interface {
	// Close releases any backend resources (connections, prepared statements, etc).
	//
	// Edge cases:
	//   - Implementations should be safe to call once at process shutdown.
	//   - Callers should treat Close as "call once".
	Close()

	// EnsureTables creates tables and constraints as needed.
	// Backends implement "create-if-not-exists" semantics so pipeline
	// startup is idempotent.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// SelectRows reads the named columns of every row in a table.
	// Row values are positional, aligned to columns.
	SelectRows(ctx context.Context, table string, columns []string) ([][]any, error)

	// ReplaceRows atomically replaces the full contents of a table.
	// The new rows are built into a staging table first and published in a
	// single step, so a failure mid-write never leaves the destination
	// half-populated.
	ReplaceRows(ctx context.Context, spec TableSpec, columns []string, rows [][]any) error

	// SelectKeySet returns the set of (possibly composite) key values present
	// in a table, keyed by the canonical form produced by CompositeKey.
	SelectKeySet(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	factoryMu.RLock()
	f := factories[cfg.Kind]
	factoryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
