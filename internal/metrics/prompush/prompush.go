// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Observations accumulate in a private registry
// and are pushed (replacing the job's group) on Flush.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"mastr/internal/metrics"
)

type Backend struct {
	pusher *push.Pusher

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labelNames map[string][]string
}

// NewBackend registers the known metric families and targets gatewayURL
// under job jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if jobName == "" {
		jobName = "mastr"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		labelNames: map[string][]string{},
	}

	counter := func(name, help string, labels ...string) {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		reg.MustRegister(v)
		b.counters[name] = v
		b.labelNames[name] = labels
	}
	histogram := func(name, help string, labels ...string) {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}, labels)
		reg.MustRegister(v)
		b.histograms[name] = v
		b.labelNames[name] = labels
	}

	counter(metrics.StepTotal, "Pipeline steps by outcome.", "step", "status")
	counter(metrics.RowsTotal, "Rows written to the warehouse.", "table")
	counter(metrics.HTTPRequestsTotal, "Registry HTTP round trips.", "status")
	histogram(metrics.StepDurationSeconds, "Pipeline step duration.", "step", "status")
	histogram(metrics.HTTPDurationSeconds, "Registry HTTP round-trip duration.", "status")

	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)
	return b, nil
}

func (b *Backend) values(name string, labels metrics.Labels) []string {
	names := b.labelNames[name]
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = labels[n]
	}
	return out
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	v, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	v.WithLabelValues(b.values(name, labels)...).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	v, ok := b.histograms[name]
	if !ok {
		return
	}
	v.WithLabelValues(b.values(name, labels)...).Observe(value)
}

// Flush pushes the full registry to the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
