package datadog

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/metrics"
)

// fakeSubmitter records every payload it receives.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, nil
}

func (f *fakeSubmitter) series() []datadogV2.MetricSeries {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datadogV2.MetricSeries
	for _, p := range f.payloads {
		out = append(out, p.Series...)
	}
	return out
}

func testBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "dwh-test",
		Tags:       []string{"service:warehouse"},
		FlushEvery: time.Hour, // the test drives Flush explicitly
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		newTicker:  time.NewTicker,
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func findSeries(series []datadogV2.MetricSeries, metric, tag string) *datadogV2.MetricSeries {
	for i := range series {
		if series[i].Metric != metric {
			continue
		}
		for _, tg := range series[i].Tags {
			if tg == tag {
				return &series[i]
			}
		}
	}
	return nil
}

func TestFlushSubmitsCounters(t *testing.T) {
	sub := &fakeSubmitter{}
	b := testBackend(t, sub)

	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"entity": "order", "outcome": "published"})
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"entity": "order", "outcome": "published"})
	b.IncCounter(metrics.IssuesTotal, 1, metrics.Labels{"table": "slv_order", "category": "domain"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	series := sub.series()
	rows := findSeries(series, "dwh.rows.total", "entity:order")
	if rows == nil {
		t.Fatal("dwh.rows.total series missing")
	}
	if got := *rows.Points[0].Value; got != 5 {
		t.Fatalf("rows.total = %v, want 5", got)
	}
	if *rows.Points[0].Timestamp != 1700000000 {
		t.Fatalf("timestamp = %d", *rows.Points[0].Timestamp)
	}

	issues := findSeries(series, "dwh.issues.total", "table:slv_order")
	if issues == nil {
		t.Fatal("dwh.issues.total series missing")
	}
	for _, want := range []string{"job:dwh-test", "service:warehouse", "category:domain"} {
		found := false
		for _, tg := range issues.Tags {
			if tg == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("tags %v lack %s", issues.Tags, want)
		}
	}
}

func TestFlushResetsBuffers(t *testing.T) {
	sub := &fakeSubmitter{}
	b := testBackend(t, sub)

	b.IncCounter(metrics.StageTotal, 1, metrics.Labels{"entity": "customer", "status": "ok"})
	if err := b.Flush(); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(sub.payloads) != 1 {
		t.Fatalf("payloads = %d, want 1 (empty flush must not submit)", len(sub.payloads))
	}
	_ = b.Close()
}

func TestHistogramPercentiles(t *testing.T) {
	sub := &fakeSubmitter{}
	b := testBackend(t, sub)

	for _, v := range []float64{0.5, 0.1, 0.9, 0.3} {
		b.ObserveHistogram(metrics.StageDurationSeconds, v, metrics.Labels{"entity": "order", "status": "ok"})
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	series := sub.series()
	max := findSeries(series, "dwh.stage.duration_seconds.max", "entity:order")
	if max == nil || *max.Points[0].Value != 0.9 {
		t.Fatalf("max series = %v", max)
	}
	samples := findSeries(series, "dwh.stage.duration_seconds.samples", "entity:order")
	if samples == nil || *samples.Points[0].Value != 4 {
		t.Fatalf("samples series = %v", samples)
	}
}

func TestIgnoresInvalidInput(t *testing.T) {
	sub := &fakeSubmitter{}
	b := testBackend(t, sub)

	b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"entity": "x", "outcome": "published"})
	b.IncCounter("unrelated_metric", 1, nil)
	b.ObserveHistogram(metrics.ScanDurationSeconds, -1, metrics.Labels{"status": "ok"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sub.payloads) != 0 {
		t.Fatalf("payloads = %d, want 0", len(sub.payloads))
	}
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	sort.Float64s(s)

	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.5, 6},
		{0.9, 9},
		{1, 10},
	}
	for _, tc := range cases {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty percentile = %v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod, service:dwh ,,team:data ")
	want := []string{"env:prod", "service:dwh", "team:data"}
	if len(got) != len(want) {
		t.Fatalf("ParseTagsCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseTagsCSV = %v, want %v", got, want)
		}
	}
	if ParseTagsCSV("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
