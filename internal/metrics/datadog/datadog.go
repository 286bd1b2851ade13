// Package datadog ships datenorm metrics to Datadog.
//
// Events are buffered in memory and submitted on a ticker (every minute by
// default) plus once more on Close, so long imports show up as a time series
// and short ones still report their tail. Counters become COUNT series;
// step durations become p50/p90/p95/p99/max/samples gauges.
//
// Only the metric names declared in package metrics are accepted. Anything
// else is dropped so an unexpected label set cannot explode tag cardinality.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"datenorm/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options configures NewBackend.
type Options struct {
	// JobName becomes tag "job:<name>". Defaults to "datenorm".
	JobName string

	// Tags are appended to every series ("team:ingest", "operadora:x").
	Tags []string

	// FlushEvery is the submit interval. Defaults to 60s.
	FlushEvery time.Duration

	// Test seams; production leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

// submitter is the slice of *datadogV2.MetricsApi the backend needs.
type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesKey identifies one buffered counter or histogram: a Datadog metric
// name plus its tag list rendered as a single key.
type seriesKey struct {
	metric string
	tags   string // "\x00"-joined, already ordered
}

// Backend implements metrics.Backend.
type Backend struct {
	api submitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu      sync.Mutex
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

// metricSpec maps a metrics package name to its Datadog name and the labels
// turned into tags, in tag order.
type metricSpec struct {
	ddName string
	labels []string
}

var counterSpecs = map[string]metricSpec{
	metrics.ColumnsTotal: {"datenorm.columns.total", []string{"column", "outcome", "source"}},
	metrics.ValuesTotal:  {"datenorm.values.total", []string{"kind"}},
	metrics.StepTotal:    {"datenorm.step.total", []string{"step", "status"}},
}

var histogramSpecs = map[string]metricSpec{
	metrics.StepDurationSeconds: {"datenorm.step.duration_seconds", []string{"step", "status"}},
}

func envTag() string {
	for _, k := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// NewBackend starts a backend with its flush loop running. Call Close when
// the run ends. API keys and site come from the usual DD_API_KEY / DD_SITE
// environment through dd.NewDefaultContext.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, fmt.Errorf("datadog metrics init: nil context")
	}
	job := opts.JobName
	if job == "" {
		job = "datenorm"
	}
	every := opts.FlushEvery
	if every <= 0 {
		every = time.Minute
	}

	b := &Backend{
		api:        opts.submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: every,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   append([]string{envTag(), "job:" + job}, opts.Tags...),
		now:        opts.now,
		newTicker:  opts.newTicker,
		counts:     make(map[seriesKey]float64),
		samples:    make(map[seriesKey][]float64),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
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

// Close stops the flush loop and submits what is left. Safe to call more
// than once; later calls only flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

func key(spec metricSpec, labels metrics.Labels) seriesKey {
	parts := make([]string, len(spec.labels))
	for i, l := range spec.labels {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		parts[i] = l + ":" + v
	}
	return seriesKey{metric: spec.ddName, tags: strings.Join(parts, "\x00")}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	spec, ok := counterSpecs[name]
	if !ok {
		return
	}
	k := key(spec, labels)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[k] += delta
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	spec, ok := histogramSpecs[name]
	if !ok {
		return
	}
	k := key(spec, labels)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[k] = append(b.samples[k], value)
}

type snapshot struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func (s snapshot) empty() bool { return len(s.counts) == 0 && len(s.samples) == 0 }

func (b *Backend) drain() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := snapshot{counts: b.counts, samples: b.samples}
	b.counts = make(map[seriesKey]float64)
	b.samples = make(map[seriesKey][]float64)
	return s
}

// Flush submits and clears the buffers. Buffers are cleared even when the
// submission fails. Nothing buffered means no request.
func (b *Backend) Flush() error {
	snap := b.drain()
	if snap.empty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit %d series: %w", len(payload.Series), err)
	}
	return nil
}

// buildSeries is pure: same snapshot and timestamp, same output. Series are
// ordered by metric then tags.
func (b *Backend) buildSeries(s snapshot, ts int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(s.counts)+6*len(s.samples))

	for _, k := range sortedKeys(s.counts) {
		v := s.counts[k]
		if v == 0 {
			continue
		}
		out = append(out, point(k.metric, datadogV2.METRICINTAKETYPE_COUNT, v, b.tags(k), ts))
	}

	for _, k := range sortedKeys(s.samples) {
		vals := append([]float64(nil), s.samples[k]...)
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		tags := b.tags(k)
		for _, q := range []struct {
			suffix string
			p      float64
		}{{"p50", 0.50}, {"p90", 0.90}, {"p95", 0.95}, {"p99", 0.99}} {
			out = append(out, point(k.metric+"."+q.suffix, datadogV2.METRICINTAKETYPE_GAUGE, nearestRank(vals, q.p), tags, ts))
		}
		out = append(out,
			point(k.metric+".max", datadogV2.METRICINTAKETYPE_GAUGE, vals[len(vals)-1], tags, ts),
			point(k.metric+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(vals)), tags, ts),
		)
	}
	return out
}

func (b *Backend) tags(k seriesKey) []string {
	out := make([]string, 0, len(b.baseTags)+3)
	out = append(out, b.baseTags...)
	if k.tags != "" {
		out = append(out, strings.Split(k.tags, "\x00")...)
	}
	return out
}

func point(metric string, typ datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	keys := make([]seriesKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].tags < keys[j].tags
	})
	return keys
}

// nearestRank expects s sorted ascending.
func nearestRank(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

// ParseTags splits "team:ingest, operadora:x" into trimmed, non-empty tags.
func ParseTags(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
