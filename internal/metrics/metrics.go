// Package metrics is the backend-neutral metrics facade. Components record
// through the package functions; cmd/mastr installs a concrete backend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends translate them into their own naming scheme.
const (
	StepTotal           = "mastr_step_total"
	StepDurationSeconds = "mastr_step_duration_seconds"
	RowsTotal           = "mastr_rows_total"
	HTTPRequestsTotal   = "mastr_http_requests_total"
	HTTPDurationSeconds = "mastr_http_request_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
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
	backend Backend = nopBackend{}
)

// SetBackend installs b process-wide. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered observations of the installed backend.
func Flush() error { return current().Flush() }

// RecordStep counts one execution of step and its duration since start,
// labelled "ok" or "error".
func RecordStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}

// RecordRows counts rows written to table.
func RecordRows(table string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"table": table})
}

// RecordHTTP counts one HTTP round trip. statusCode 0 means a transport
// error with no response.
func RecordHTTP(statusCode int, d time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	l := Labels{"status": status}
	IncCounter(HTTPRequestsTotal, 1, l)
	ObserveHistogram(HTTPDurationSeconds, d.Seconds(), l)
}
