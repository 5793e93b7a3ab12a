package main

import (
	"context"
	"time"

	"mastr/internal/metrics"
	"mastr/internal/metrics/datadog"
	"mastr/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend. A backend that fails
// to initialize leaves the nop backend in place; metrics never fail a run.
func (a *app) setupMetrics(ctx context.Context, command string) {
	jobName := "mastr_" + command

	switch a.settings.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend(jobName, a.settings.PushgatewayURL)
		if err != nil {
			a.log.Warnw("metrics: failed to init prom push backend; using nop", "err", err)
			return
		}
		a.log.Debugw("metrics enabled", "backend", "pushgateway", "url", a.settings.PushgatewayURL, "job_name", jobName)
		metrics.SetBackend(b)
		a.cleanup = append(a.cleanup, func() {
			if err := metrics.Flush(); err != nil {
				a.log.Warnw("metrics: flush error", "err", err)
			}
			metrics.SetBackend(nil)
		})

	case "datadog":
		tags := datadog.ParseTagsCSV(a.settings.MetricsTags)
		// Detached from ctx so the final flush still runs after cancellation.
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			a.log.Warnw("metrics: failed to init datadog backend; using nop", "err", err)
			return
		}
		a.log.Debugw("metrics enabled", "backend", "datadog", "job_name", jobName, "tags", tags)
		metrics.SetBackend(b)
		a.cleanup = append(a.cleanup, func() {
			// Close stops the flush loop and submits what is still buffered.
			if err := b.Close(); err != nil {
				a.log.Warnw("metrics: datadog close/flush error", "err", err)
			}
			metrics.SetBackend(nil)
		})

	case "", "none":
		a.log.Debugw("metrics disabled")

	default:
		a.log.Warnw("metrics: unknown backend; metrics disabled", "backend", a.settings.MetricsBackend)
	}
}
