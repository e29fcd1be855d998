package dq

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
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
)

// Logger is the minimal logging interface used by the scanner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Scanner loads one snapshot of the validated tables, runs every check
// against it and replaces the issue sink with the findings.
type Scanner struct {
	repo    storage.Repository
	tables  []storage.TableSpec
	sink    storage.TableSpec
	checks  []Check
	logger  Logger
	metrics metrics.Backend

	parallelism int

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time
}

// Options configures a Scanner. Repo, Tables, IssueTable and Checks are
// required.
type Options struct {
	Repo storage.Repository

	// Tables are the validated tables to snapshot. Every table a check
	// reads, including referential parents, must be listed.
	Tables []storage.TableSpec

	// IssueTable is the sink replaced on every scan.
	IssueTable storage.TableSpec

	Checks  []Check
	Logger  Logger
	Metrics metrics.Backend

	// Parallelism bounds concurrent snapshot loads. Values < 1 mean one
	// load per table.
	Parallelism int

	now func() time.Time
}

// NewScanner validates the options and returns a ready scanner.
func NewScanner(opts Options) (*Scanner, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("scanner: Repo is required")
	}
	if len(opts.Tables) == 0 {
		return nil, fmt.Errorf("scanner: no tables to snapshot")
	}
	if opts.IssueTable.Name == "" {
		return nil, fmt.Errorf("scanner: issue table is required")
	}
	if len(opts.Checks) == 0 {
		return nil, fmt.Errorf("scanner: empty check catalog")
	}

	byName := make(map[string]struct{}, len(opts.Tables))
	for _, t := range opts.Tables {
		byName[t.Name] = struct{}{}
	}
	for _, c := range opts.Checks {
		if _, ok := byName[c.Table]; !ok {
			return nil, fmt.Errorf("scanner: check on %s/%s targets a table outside the snapshot", c.Table, c.Column)
		}
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

	return &Scanner{
		repo:        opts.Repo,
		tables:      opts.Tables,
		sink:        opts.IssueTable,
		checks:      opts.Checks,
		logger:      logger,
		metrics:     mb,
		parallelism: opts.Parallelism,
		now:         nowFn,
	}, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// ScanReport summarizes one scan.
type ScanReport struct {
	RunID      string
	Issues     int
	ByCategory map[Category]int
	Duration   time.Duration
}

// Run executes the full catalog once and truncate-and-fills the issue
// sink. Checks are independent and read-only, so re-running against an
// unchanged validated store yields the same issues modulo detected_at.
func (s *Scanner) Run(ctx context.Context) (*ScanReport, error) {
	start := s.now()
	report := &ScanReport{
		RunID:      uuid.NewString(),
		ByCategory: make(map[Category]int),
	}
	s.logger.Printf("stage=scan_start run=%s tables=%d checks=%d",
		report.RunID, len(s.tables), len(s.checks))

	if err := s.repo.EnsureTables(ctx, []storage.TableSpec{s.sink}); err != nil {
		return report, fmt.Errorf("ensure issue sink: %w", err)
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return report, err
	}

	detectedAt := start.UTC()

	var issues []Issue
	for _, c := range s.checks {
		found := c.Run(snap, detectedAt)
		issues = append(issues, found...)
		for _, issue := range found {
			report.ByCategory[issue.Category]++
			s.metrics.IncCounter(metrics.IssuesTotal, 1, metrics.Labels{
				"table": issue.Table, "category": string(issue.Category),
			})
		}
	}
	report.Issues = len(issues)

	rows := make([][]any, len(issues))
	for i, issue := range issues {
		rows[i] = []any{
			issue.Table,
			nullable(issue.Column),
			string(issue.Category),
			issue.Message,
			nullable(issue.Value),
			nullable(issue.PrimaryKey),
			detectedAt,
		}
	}
	if err := s.repo.ReplaceRows(ctx, s.sink, s.sink.ColumnNames(), rows); err != nil {
		return report, fmt.Errorf("publish %s: %w", s.sink.Name, err)
	}

	report.Duration = s.now().Sub(start)
	s.metrics.ObserveHistogram(metrics.ScanDurationSeconds,
		report.Duration.Seconds(), metrics.Labels{"status": "ok"})
	s.logger.Printf("stage=scan_done run=%s issues=%d duration=%s",
		report.RunID, report.Issues, report.Duration.Truncate(time.Millisecond))
	return report, nil
}

// loadSnapshot reads every validated table once. Tables load concurrently;
// each check then works off the same immutable view.
func (s *Scanner) loadSnapshot(ctx context.Context) (Snapshot, error) {
	snap := make(Snapshot, len(s.tables))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	} else {
		g.SetLimit(1)
	}
	for _, t := range s.tables {
		g.Go(func() error {
			columns := t.ColumnNames()
			rows, err := s.repo.SelectRows(gctx, t.Name, columns)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", t.Name, err)
			}
			ds := transform.NewDataset(columns)
			ds.Rows = rows
			mu.Lock()
			snap[t.Name] = ds
			mu.Unlock()
			s.logger.Printf("stage=snapshot table=%s rows=%d", t.Name, len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
