package transform

import (
	"fmt"
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// PrepareContext carries dataset-level facts (e.g. an average used for
// tiering) into per-row derivation. It is produced once per entity by an
// optional Prepare pass over the deduplicated dataset.
type PrepareContext map[string]any

// DeriveFunc computes an entity's derived columns for one row. The row
// already holds normalized raw values plus empty slots for every derived
// column; the function fills the slots it can and leaves the rest null.
type DeriveFunc func(r Row, pc PrepareContext)

// PrepareFunc inspects the whole deduplicated dataset before derivation.
// runAt is the engine's run timestamp, so clock-dependent derivations stay
// pinned to one instant per run.
type PrepareFunc func(ds *Dataset, runAt time.Time) PrepareContext

// ForeignKey declares that an entity's column(s) must resolve against the
// validated key set of a parent entity. Composite keys list columns in the
// parent's natural-key order.
type ForeignKey struct {
	Columns []string
	Parent  string
}

// Spec is the complete metadata for one entity's raw-to-validated
// transform. The engine interprets specs; it contains no per-entity code.
type Spec struct {
	// Name is the entity name, unique across the run. Parents referenced by
	// ForeignKey entries are looked up by this name.
	Name string

	// Source is the raw extract this entity reads from.
	Source string

	// RawColumns is the ordered list of columns read from the extract.
	RawColumns []string

	// Rules maps raw columns to their normalization. Columns without a rule
	// pass through untouched.
	Rules map[string]FieldRule

	// NaturalKey identifies a logical record for dedupe and for children's
	// foreign-key resolution.
	NaturalKey []string

	// RankBy is the column ranked descending to pick the dedupe winner,
	// typically the extract load timestamp. Empty means first-seen wins
	// on rank, with the fingerprint tie-break still applied.
	RankBy string

	// DerivedColumns are appended to the working row after normalization
	// and filled by Derive.
	DerivedColumns []string

	Prepare PrepareFunc
	Derive  DeriveFunc

	// Required lists columns that must be non-null for a row to publish.
	Required []string

	// AnyTrue lists column groups where at least one member must be true.
	AnyTrue [][]string

	// Refs are foreign keys gated against parent entities in this run.
	Refs []ForeignKey

	// Table is the validated destination. Its column list (minus the load
	// timestamp column, which the engine stamps) selects and orders the
	// published columns by name from the working row.
	Table storage.TableSpec
}

// compiledSpec is a Spec with every column reference resolved to an integer
// index into the working row, so the per-row hot path does no map lookups.
type compiledSpec struct {
	spec Spec

	workingColumns []string
	workingIx      Index

	ruleIx   []ruleAt
	keyIx    []int
	requiredIx []int
	anyTrueIx  [][]int
	refIx      []refAt
	outputIx   []int // -1 marks the load timestamp column
	loadTSCol  string
}

type ruleAt struct {
	ix   int
	rule FieldRule
}

type refAt struct {
	ix     []int
	parent string
}

// LoadTimestampColumn is stamped on every published row with the run's
// start time.
const LoadTimestampColumn = "dwh_load_ts"

func compileSpec(s Spec) (*compiledSpec, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("entity spec missing name")
	}
	if s.Source == "" {
		return nil, fmt.Errorf("entity %q: missing source", s.Name)
	}
	if len(s.RawColumns) == 0 {
		return nil, fmt.Errorf("entity %q: no raw columns", s.Name)
	}
	if len(s.NaturalKey) == 0 {
		return nil, fmt.Errorf("entity %q: no natural key", s.Name)
	}
	if len(s.Table.Columns) == 0 {
		return nil, fmt.Errorf("entity %q: destination table %q has no columns", s.Name, s.Table.Name)
	}

	working := make([]string, 0, len(s.RawColumns)+len(s.DerivedColumns))
	working = append(working, s.RawColumns...)
	working = append(working, s.DerivedColumns...)
	ix := BuildIndex(working)
	if len(ix) != len(working) {
		return nil, fmt.Errorf("entity %q: duplicate column in raw+derived set", s.Name)
	}

	c := &compiledSpec{
		spec:           s,
		workingColumns: working,
		workingIx:      ix,
		loadTSCol:      LoadTimestampColumn,
	}

	resolve := func(col, role string) (int, error) {
		i, ok := ix[col]
		if !ok {
			return 0, fmt.Errorf("entity %q: %s column %q not in raw+derived set", s.Name, role, col)
		}
		return i, nil
	}

	for col, rule := range s.Rules {
		i, err := resolve(col, "rule")
		if err != nil {
			return nil, err
		}
		c.ruleIx = append(c.ruleIx, ruleAt{ix: i, rule: rule})
	}
	for _, col := range s.NaturalKey {
		i, err := resolve(col, "natural key")
		if err != nil {
			return nil, err
		}
		c.keyIx = append(c.keyIx, i)
	}
	if s.RankBy != "" {
		if _, err := resolve(s.RankBy, "rank"); err != nil {
			return nil, err
		}
	}
	for _, col := range s.Required {
		i, err := resolve(col, "required")
		if err != nil {
			return nil, err
		}
		c.requiredIx = append(c.requiredIx, i)
	}
	for _, group := range s.AnyTrue {
		gix := make([]int, 0, len(group))
		for _, col := range group {
			i, err := resolve(col, "any-true")
			if err != nil {
				return nil, err
			}
			gix = append(gix, i)
		}
		c.anyTrueIx = append(c.anyTrueIx, gix)
	}
	for _, ref := range s.Refs {
		if ref.Parent == "" || len(ref.Columns) == 0 {
			return nil, fmt.Errorf("entity %q: malformed foreign key %+v", s.Name, ref)
		}
		rix := make([]int, 0, len(ref.Columns))
		for _, col := range ref.Columns {
			i, err := resolve(col, "foreign key")
			if err != nil {
				return nil, err
			}
			rix = append(rix, i)
		}
		c.refIx = append(c.refIx, refAt{ix: rix, parent: ref.Parent})
	}
	for _, col := range s.Table.Columns {
		if col.Name == c.loadTSCol {
			c.outputIx = append(c.outputIx, -1)
			continue
		}
		i, err := resolve(col.Name, "output")
		if err != nil {
			return nil, err
		}
		c.outputIx = append(c.outputIx, i)
	}
	return c, nil
}
