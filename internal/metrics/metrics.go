// Package metrics is the backend-neutral metrics surface of datenorm.
//
// Callers record through the package-level helpers; the concrete backend
// (Datadog, or the in-memory one in tests) is chosen once at startup with
// SetBackend. The default backend drops everything.
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	ColumnsTotal        = "datenorm_columns_total"
	ValuesTotal         = "datenorm_values_total"
	StepTotal           = "datenorm_step_total"
	StepDurationSeconds = "datenorm_step_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	current Backend = nopBackend{}
)

// SetBackend installs b. nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		current = nopBackend{}
		return
	}
	current = b
}

func backend() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error { return backend().Flush() }

// RecordColumn counts one column outcome. source is how the format was
// obtained (inferred, sibling, probed, cascade, layout) and may be empty.
func RecordColumn(column, outcome, source string) {
	if source == "" {
		source = "none"
	}
	IncCounter(ColumnsTotal, 1, Labels{"column": column, "outcome": outcome, "source": source})
}

// RecordValues counts n values of a kind (parsed, null, unparseable,
// century_corrected, degraded).
func RecordValues(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(ValuesTotal, float64(n), Labels{"kind": kind})
}

// RecordStep counts a pipeline step and observes its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}
