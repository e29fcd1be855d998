package transform

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

type fakeRepo struct {
	mu sync.Mutex

	ensureCalls int
	replaced    map[string][][]any
	replacedCol map[string][]string
	failTable   string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		replaced:    make(map[string][][]any),
		replacedCol: make(map[string][]string),
	}
}

func (r *fakeRepo) Close() {}

func (r *fakeRepo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCalls++
	return nil
}

func (r *fakeRepo) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaced[table], nil
}

func (r *fakeRepo) ReplaceRows(ctx context.Context, spec storage.TableSpec, columns []string, rows [][]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if spec.Name == r.failTable {
		return errors.New("disk full")
	}
	r.replaced[spec.Name] = rows
	r.replacedCol[spec.Name] = columns
	return nil
}

func (r *fakeRepo) SelectKeySet(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error) {
	return nil, nil
}

type fakeRaw struct {
	data map[string][][]any
	err  error
}

func (f *fakeRaw) ReadEntity(ctx context.Context, source string, columns []string) ([][]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[source], nil
}

func parentChildSpecs() []Spec {
	parent := Spec{
		Name:       "parents",
		Source:     "parents",
		RawColumns: []string{"parent_id", "name", "load_date"},
		Rules: map[string]FieldRule{
			"parent_id": {Kind: RuleTrim},
			"name":      {Kind: RuleTrim},
			"load_date": {Kind: RuleTimestamp},
		},
		NaturalKey: []string{"parent_id"},
		RankBy:     "load_date",
		Table: storage.TableSpec{
			Name:            "slv_parents",
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "parent_id", Type: "varchar(64)"},
				{Name: "name", Type: "text"},
				{Name: LoadTimestampColumn, Type: "timestamptz"},
			},
		},
	}
	child := Spec{
		Name:       "children",
		Source:     "children",
		RawColumns: []string{"child_id", "parent_id", "amount", "load_date"},
		Rules: map[string]FieldRule{
			"child_id":  {Kind: RuleTrim},
			"parent_id": {Kind: RuleTrim},
			"amount":    {Kind: RuleFloat, Min: Bound(0)},
			"load_date": {Kind: RuleTimestamp},
		},
		NaturalKey:     []string{"child_id"},
		RankBy:         "load_date",
		DerivedColumns: []string{"doubled"},
		Derive: func(r Row, _ PrepareContext) {
			if a, ok := r.Float("amount"); ok {
				r.Set("doubled", 2*a)
			}
		},
		Required: []string{"amount"},
		Refs: []ForeignKey{
			{Columns: []string{"parent_id"}, Parent: "parents"},
		},
		Table: storage.TableSpec{
			Name:            "slv_children",
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "child_id", Type: "varchar(64)"},
				{Name: "parent_id", Type: "varchar(64)"},
				{Name: "amount", Type: "double precision"},
				{Name: "doubled", Type: "double precision"},
				{Name: LoadTimestampColumn, Type: "timestamptz"},
			},
		},
	}
	return []Spec{parent, child}
}

func parentChildRaw() *fakeRaw {
	return &fakeRaw{data: map[string][][]any{
		"parents": {
			{"P1", "old", "2024-01-01T00:00:00Z"},
			{"P1", "new", "2024-02-01T00:00:00Z"},
			{"P2", "two", "2024-01-01T00:00:00Z"},
		},
		"children": {
			{"C1", "P1", "10", "2024-01-01T00:00:00Z"},
			{"C2", "P9", "5", "2024-01-01T00:00:00Z"},  // broken ref
			{"C3", "P2", "-4", "2024-01-01T00:00:00Z"}, // amount clamps to null, fails required
		},
	}}
}

func newTestEngine(t *testing.T, repo *fakeRepo, raw RawSource, specs []Spec) *Engine {
	t.Helper()
	e, err := New(Options{
		Repo:  repo,
		Raw:   raw,
		Specs: specs,
		now:   func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEngineRunPublishesGatedRows(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(t, repo, parentChildRaw(), parentChildSpecs())

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID == "" {
		t.Fatal("expected a run id")
	}
	if repo.ensureCalls != 1 {
		t.Fatalf("EnsureTables calls = %d, want 1", repo.ensureCalls)
	}

	parents := repo.replaced["slv_parents"]
	if len(parents) != 2 {
		t.Fatalf("published parents = %d, want 2", len(parents))
	}
	// The dedupe winner for P1 is the later load.
	if parents[0][1] != "new" {
		t.Fatalf("P1 winner name = %v, want new", parents[0][1])
	}

	children := repo.replaced["slv_children"]
	if len(children) != 1 {
		t.Fatalf("published children = %d, want 1", len(children))
	}
	want := []any{"C1", "P1", 10.0, 20.0, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	if !reflect.DeepEqual(children[0], want) {
		t.Fatalf("child row = %v, want %v", children[0], want)
	}

	var childStats StageStats
	for _, s := range report.Stages {
		if s.Entity == "children" {
			childStats = s
		}
	}
	if childStats.Gate.BrokenRefs != 1 {
		t.Fatalf("broken refs = %d, want 1", childStats.Gate.BrokenRefs)
	}
	if childStats.Gate.MissingRequired != 1 {
		t.Fatalf("missing required = %d, want 1", childStats.Gate.MissingRequired)
	}
	if childStats.Published != 1 {
		t.Fatalf("published = %d, want 1", childStats.Published)
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	first := newFakeRepo()
	e1 := newTestEngine(t, first, parentChildRaw(), parentChildSpecs())
	if _, err := e1.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := newFakeRepo()
	e2 := newTestEngine(t, second, parentChildRaw(), parentChildSpecs())
	if _, err := e2.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first.replaced, second.replaced) {
		t.Fatal("identical raw snapshots produced different validated stores")
	}
}

func TestEngineStageFailureSkipsDependents(t *testing.T) {
	repo := newFakeRepo()
	repo.failTable = "slv_parents"
	e := newTestEngine(t, repo, parentChildRaw(), parentChildSpecs())

	_, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected the parent stage failure to surface")
	}
	if _, ok := repo.replaced["slv_children"]; ok {
		t.Fatal("dependent entity ran after its parent stage failed")
	}
}

func TestEngineRawErrorCarriesEntityContext(t *testing.T) {
	repo := newFakeRepo()
	raw := &fakeRaw{err: fmt.Errorf("connection refused")}
	e := newTestEngine(t, repo, raw, parentChildSpecs())

	_, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected raw read error")
	}
	if got := err.Error(); got == "connection refused" {
		t.Fatalf("error lacks entity context: %q", got)
	}
}

func TestNewRejectsBadSpecs(t *testing.T) {
	specs := parentChildSpecs()
	specs[1].Required = append(specs[1].Required, "no_such_column")

	_, err := New(Options{Repo: newFakeRepo(), Raw: &fakeRaw{}, Specs: specs})
	if err == nil {
		t.Fatal("expected compile error for unknown required column")
	}
}
