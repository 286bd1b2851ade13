package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process backend that keeps totals. It backs the
// "datenorm normalize --metrics-summary" output and tests.
type Memory struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{counters: map[string]float64{}, samples: map[string][]float64{}}
}

// Key renders name{k=v,...} with labels sorted by key.
func Key(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// IncCounter implements Backend.
func (m *Memory) IncCounter(name string, delta float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[Key(name, labels)] += delta
}

// ObserveHistogram implements Backend.
func (m *Memory) ObserveHistogram(name string, value float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(name, labels)
	m.samples[k] = append(m.samples[k], value)
}

// Flush implements Backend. Memory keeps its totals.
func (m *Memory) Flush() error { return nil }

// Counter returns the total for name and labels.
func (m *Memory) Counter(name string, labels Labels) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[Key(name, labels)]
}

// Samples returns a copy of the observations for name and labels.
func (m *Memory) Samples(name string, labels Labels) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.samples[Key(name, labels)]...)
}

// Counters returns a copy of every counter keyed by Key.
func (m *Memory) Counters() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
