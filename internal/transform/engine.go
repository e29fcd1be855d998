package transform

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/metrics"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
)

// Logger is the minimal logging interface used by the engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// RawSource provides raw extracts by entity source name. Implementations
// exist for staged raw tables and for CSV extract directories; tests inject
// deterministic in-memory sources.
//
// Errors:
//   - Implementations return a non-nil error for fatal read failures.
//   - Each returned row has exactly len(columns) values, positionally
//     matching columns. Missing fields are nil.
type RawSource interface {
	ReadEntity(ctx context.Context, source string, columns []string) ([][]any, error)
}

// Engine runs the full raw-to-validated transform across all entity specs.
// Specs are compiled once at construction; Run can be called repeatedly and
// each run is independent.
type Engine struct {
	repo    storage.Repository
	raw     RawSource
	logger  Logger
	metrics metrics.Backend

	compiled []*compiledSpec
	layers   [][]int

	parallelism int

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time
}

// Options configures an Engine. Repo, Raw and Specs are required.
type Options struct {
	Repo  storage.Repository
	Raw   RawSource
	Specs []Spec

	Logger  Logger
	Metrics metrics.Backend

	// Parallelism bounds concurrent entity stages within a dependency
	// layer. Values < 1 mean unbounded (layer width).
	Parallelism int

	now func() time.Time
}

// New compiles the specs, orders them into dependency layers and returns a
// ready engine.
//
// Errors:
//   - A spec referencing columns outside its raw+derived set.
//   - Duplicate entity names, unknown foreign-key parents, or cycles.
func New(opts Options) (*Engine, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("engine: Repo is required")
	}
	if opts.Raw == nil {
		return nil, fmt.Errorf("engine: Raw is required")
	}
	if len(opts.Specs) == 0 {
		return nil, fmt.Errorf("engine: no entity specs")
	}

	compiled := make([]*compiledSpec, len(opts.Specs))
	for i, s := range opts.Specs {
		c, err := compileSpec(s)
		if err != nil {
			return nil, err
		}
		compiled[i] = c
	}
	layers, err := TopoLayers(opts.Specs)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	mb := opts.Metrics
	if mb == nil {
		mb = metrics.Nop{}
	}
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Engine{
		repo:        opts.Repo,
		raw:         opts.Raw,
		logger:      logger,
		metrics:     mb,
		compiled:    compiled,
		layers:      layers,
		parallelism: opts.Parallelism,
		now:         nowFn,
	}, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// StageStats summarizes one entity's transform.
type StageStats struct {
	Entity    string
	RawRows   int
	Published int
	Dedupe    DedupeResult
	Gate      GateResult
	Duration  time.Duration
}

// RunReport summarizes one engine run. Stages appear in completion order.
type RunReport struct {
	RunID   string
	Started time.Time
	Stages  []StageStats
}

// Run transforms every entity and atomically publishes the survivors.
//
// Entities within a dependency layer run concurrently; a layer starts only
// after all previous layers finished, so every parent's validated key set
// exists before its children are gated. The first stage error cancels the
// run, and entities downstream of a failed stage never execute.
//
// Every published row is stamped with the run's start time in the
// LoadTimestampColumn, so a run is reproducible modulo that timestamp.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:   uuid.NewString(),
		Started: e.now().UTC(),
	}
	e.logger.Printf("stage=transform_start run=%s entities=%d layers=%d",
		report.RunID, len(e.compiled), len(e.layers))

	ddlStart := e.now()
	tables := make([]storage.TableSpec, len(e.compiled))
	for i, c := range e.compiled {
		tables[i] = c.spec.Table
	}
	if err := e.repo.EnsureTables(ctx, tables); err != nil {
		return report, fmt.Errorf("ensure validated tables: %w", err)
	}
	e.logger.Printf("stage=ddl ok duration=%s", durMS(ddlStart, e.now))

	var mu sync.Mutex
	parents := make(map[string]map[string]struct{}, len(e.compiled))

	for _, layer := range e.layers {
		g, gctx := errgroup.WithContext(ctx)
		if e.parallelism > 0 {
			g.SetLimit(e.parallelism)
		}
		for _, i := range layer {
			c := e.compiled[i]
			g.Go(func() error {
				// Parents are complete: they live in earlier layers.
				mu.Lock()
				parentView := make(map[string]map[string]struct{}, len(c.refIx))
				for _, ref := range c.refIx {
					parentView[ref.parent] = parents[ref.parent]
				}
				mu.Unlock()

				stats, keys, err := e.runStage(gctx, c, report.Started, parentView)
				status := "ok"
				if err != nil {
					status = "error"
				}
				e.metrics.IncCounter(metrics.StageTotal, 1, metrics.Labels{
					"entity": c.spec.Name, "status": status,
				})
				e.metrics.ObserveHistogram(metrics.StageDurationSeconds,
					stats.Duration.Seconds(), metrics.Labels{
						"entity": c.spec.Name, "status": status,
					})
				if err != nil {
					return fmt.Errorf("entity %s: %w", c.spec.Name, err)
				}

				mu.Lock()
				parents[c.spec.Name] = keys
				report.Stages = append(report.Stages, stats)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	e.logger.Printf("stage=transform_done run=%s", report.RunID)
	return report, nil
}

func (e *Engine) runStage(
	ctx context.Context,
	c *compiledSpec,
	loadTS time.Time,
	parents map[string]map[string]struct{},
) (StageStats, map[string]struct{}, error) {
	start := e.now()
	stats := StageStats{Entity: c.spec.Name}
	defer func() { stats.Duration = e.now().Sub(start) }()

	rawRows, err := e.raw.ReadEntity(ctx, c.spec.Source, c.spec.RawColumns)
	if err != nil {
		return stats, nil, fmt.Errorf("read raw %s: %w", c.spec.Source, err)
	}
	stats.RawRows = len(rawRows)

	ds := NewDataset(c.workingColumns)
	ds.Rows = make([][]any, len(rawRows))
	for i, raw := range rawRows {
		row := make([]any, len(c.workingColumns))
		copy(row, raw)
		ds.Rows[i] = row
	}

	for _, row := range ds.Rows {
		for _, ra := range c.ruleIx {
			row[ra.ix] = ra.rule.Apply(row[ra.ix])
		}
	}

	stats.Dedupe = Dedupe(ds, c.spec.NaturalKey, c.spec.RankBy)

	if c.spec.Derive != nil {
		var pc PrepareContext
		if c.spec.Prepare != nil {
			pc = c.spec.Prepare(ds, loadTS)
		}
		for i := 0; i < ds.Len(); i++ {
			c.spec.Derive(ds.Row(i), pc)
		}
	}

	stats.Gate = gate(ds, c, parents)
	stats.Published = ds.Len()

	out := make([][]any, ds.Len())
	for i, row := range ds.Rows {
		o := make([]any, len(c.outputIx))
		for j, ix := range c.outputIx {
			if ix < 0 {
				o[j] = loadTS
				continue
			}
			o[j] = row[ix]
		}
		out[i] = o
	}
	if err := e.repo.ReplaceRows(ctx, c.spec.Table, c.spec.Table.ColumnNames(), out); err != nil {
		return stats, nil, fmt.Errorf("publish %s: %w", c.spec.Table.Name, err)
	}

	keys := make(map[string]struct{}, ds.Len())
	parts := make([]any, len(c.keyIx))
	for _, row := range ds.Rows {
		for i, ix := range c.keyIx {
			parts[i] = row[ix]
		}
		keys[storage.CompositeKey(parts)] = struct{}{}
	}

	e.reportRowCounts(stats)
	e.logger.Printf(
		"stage=entity name=%s raw=%d published=%d duplicates=%d null_keys=%d missing_required=%d failed_any_true=%d broken_refs=%d duration=%s",
		stats.Entity, stats.RawRows, stats.Published,
		stats.Dedupe.Duplicates, stats.Dedupe.NullKeys,
		stats.Gate.MissingRequired, stats.Gate.FailedAnyTrue, stats.Gate.BrokenRefs,
		e.now().Sub(start).Truncate(time.Millisecond),
	)
	return stats, keys, nil
}

func (e *Engine) reportRowCounts(stats StageStats) {
	count := func(outcome string, n int) {
		if n == 0 {
			return
		}
		e.metrics.IncCounter(metrics.RowsTotal, float64(n), metrics.Labels{
			"entity": stats.Entity, "outcome": outcome,
		})
	}
	count("published", stats.Published)
	count("duplicate", stats.Dedupe.Duplicates)
	count("null_key", stats.Dedupe.NullKeys)
	count("missing_required", stats.Gate.MissingRequired)
	count("failed_any_true", stats.Gate.FailedAnyTrue)
	count("broken_ref", stats.Gate.BrokenRefs)
}

func durMS(start time.Time, now func() time.Time) time.Duration {
	return now().Sub(start).Truncate(time.Millisecond)
}
