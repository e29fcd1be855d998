// Package metrics defines the minimal metrics surface the warehouse
// pipeline emits to. Core code depends only on Backend; concrete exporters
// (Datadog, or nothing at all) live in subpackages.
package metrics

// Labels are free-form metric dimensions, e.g. {"entity": "orders"}.
type Labels map[string]string

// Backend receives counters and histogram samples from the pipeline.
//
// Implementations must be safe for concurrent use: entity stages run in
// parallel and all report through the same backend.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the transform engine and the quality scanner.
const (
	// RowsTotal counts rows per entity and disposition. Labels: entity,
	// outcome (published, duplicate, null_key, missing_required,
	// failed_any_true, broken_ref).
	RowsTotal = "dwh_rows_total"

	// StageTotal counts entity stage completions. Labels: entity, status
	// (ok, error).
	StageTotal = "dwh_stage_total"

	// StageDurationSeconds samples per-entity stage wall time. Labels:
	// entity, status.
	StageDurationSeconds = "dwh_stage_duration_seconds"

	// IssuesTotal counts recorded quality issues. Labels: table, category.
	IssuesTotal = "dwh_issues_total"

	// ScanDurationSeconds samples whole-scan wall time. Labels: status.
	ScanDurationSeconds = "dwh_scan_duration_seconds"
)

// Nop is a Backend that discards everything. Useful as a default so callers
// never need nil checks.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
