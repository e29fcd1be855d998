// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// The backend buffers metrics in memory, submits them on a periodic ticker
// and flushes one final time on Close. Long pipeline runs therefore show up
// as a time series instead of a single spike at process exit, while short
// runs still deliver everything through the final flush.
//
// Concurrency model:
//   - pipeline goroutines call IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush() periodically; Close() stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "dwh".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:dwh"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; unit tests
	// use them to avoid real network submission and nondeterministic
	// clocks/tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics. The
// Datadog SDK exposes a concrete *datadogV2.MetricsApi; depending on this
// interface instead keeps the backend testable with a fake submitter.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// labeledKey folds a label set into a map key, NUL-separated in a fixed
// per-metric label order.
func labeledKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

func splitLabeledKey(k string, n int) []string {
	parts := strings.SplitN(k, "\x00", n)
	for len(parts) < n {
		parts = append(parts, "unknown")
	}
	return parts
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	rowCounts     map[string]float64 // entity\x00outcome
	stageCounts   map[string]float64 // entity\x00status
	issueCounts   map[string]float64 // table\x00category
	stageDuration map[string][]float64
	scanDuration  map[string][]float64 // status
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "dwh".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "dwh"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		rowCounts:     make(map[string]float64),
		stageCounts:   make(map[string]float64),
		issueCounts:   make(map[string]float64),
		stageDuration: make(map[string][]float64),
		scanDuration:  make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
// Close once; a second Close panics on the closed stop channel, matching
// the usual process-lifetime Close semantics.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.RowsTotal:
		b.rowCounts[labeledKey(labels["entity"], labels["outcome"])] += delta
	case metrics.StageTotal:
		b.stageCounts[labeledKey(labels["entity"], labels["status"])] += delta
	case metrics.IssuesTotal:
		b.issueCounts[labeledKey(labels["table"], labels["category"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StageDurationSeconds:
		k := labeledKey(labels["entity"], labels["status"])
		b.stageDuration[k] = append(b.stageDuration[k], value)
	case metrics.ScanDurationSeconds:
		k := labels["status"]
		if k == "" {
			k = "unknown"
		}
		b.scanDuration[k] = append(b.scanDuration[k], value)
	}
}

// snapshot is the buffered state detached for one flush. Flush must reset
// buffers under the lock but submit out-of-lock; the snapshot separates
// collect+reset from payload building and submission.
type snapshot struct {
	rowCounts     map[string]float64
	stageCounts   map[string]float64
	issueCounts   map[string]float64
	stageDuration map[string][]float64
	scanDuration  map[string][]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		rowCounts:     b.rowCounts,
		stageCounts:   b.stageCounts,
		issueCounts:   b.issueCounts,
		stageDuration: b.stageDuration,
		scanDuration:  b.scanDuration,
	}

	b.rowCounts = make(map[string]float64)
	b.stageCounts = make(map[string]float64)
	b.issueCounts = make(map[string]float64)
	b.stageDuration = make(map[string][]float64)
	b.scanDuration = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.rowCounts) == 0 &&
		len(s.stageCounts) == 0 &&
		len(s.issueCounts) == 0 &&
		len(s.stageDuration) == 0 &&
		len(s.scanDuration) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Edge cases:
//   - Returns nil without submitting when there is nothing buffered.
//   - Buffers reset even if submission fails, to keep the pipeline from
//     blocking on a broken metrics endpoint.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. Pure: no locks, no network, no clocks.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0,
		len(s.rowCounts)+len(s.stageCounts)+len(s.issueCounts)+32)

	for k, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		p := splitLabeledKey(k, 2)
		tags := withTags(b.baseTags, "entity:"+p[0], "outcome:"+p[1])
		series = append(series, countSeries("dwh.rows.total", v, tags, nowUnix))
	}
	for k, v := range s.stageCounts {
		if v == 0 {
			continue
		}
		p := splitLabeledKey(k, 2)
		tags := withTags(b.baseTags, "entity:"+p[0], "status:"+p[1])
		series = append(series, countSeries("dwh.stage.total", v, tags, nowUnix))
	}
	for k, v := range s.issueCounts {
		if v == 0 {
			continue
		}
		p := splitLabeledKey(k, 2)
		tags := withTags(b.baseTags, "table:"+p[0], "category:"+p[1])
		series = append(series, countSeries("dwh.issues.total", v, tags, nowUnix))
	}

	for k, samples := range s.stageDuration {
		p := splitLabeledKey(k, 2)
		tags := withTags(b.baseTags, "entity:"+p[0], "status:"+p[1])
		appendPercentiles(&series, "dwh.stage.duration_seconds", samples, tags, nowUnix)
	}
	for status, samples := range s.scanDuration {
		tags := withTags(b.baseTags, "status:"+status)
		appendPercentiles(&series, "dwh.scan.duration_seconds", samples, tags, nowUnix)
	}

	return series
}

// appendPercentiles publishes a fixed percentile set for a sample slice.
// Sorts a copy; the snapshot stays untouched.
func appendPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:dwh".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
