package datadog

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastr/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() datadogV2.MetricPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[len(f.payloads)-1]
}

func quietBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "upload",
		Tags:      []string{"team:energy"},
		submitter: fs,
		now:       func() time.Time { return time.Unix(1000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func byName(p datadogV2.MetricPayload) map[string]datadogV2.MetricSeries {
	out := map[string]datadogV2.MetricSeries{}
	for _, s := range p.Series {
		out[s.Metric] = s
	}
	return out
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name, env, dd, want string
	}{
		{"ENV wins", "prod", "stage", "env:prod"},
		{"DD_ENV fallback", "", "stage", "env:stage"},
		{"whitespace ignored", "  ", "\t", "env:unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			assert.Equal(t, tc.want, resolveEnvTag())
		})
	}
}

func TestFlush_SubmitsCountersAndPercentiles(t *testing.T) {
	t.Setenv("ENV", "test")
	fs := &fakeSubmitter{}
	b := quietBackend(t, fs)

	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"table": "wind"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"table": "wind"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, metrics.Labels{"step": "load", "status": "ok"})
	b.IncCounter("unknown_metric", 1, nil)

	require.NoError(t, b.Flush())
	require.Equal(t, 1, fs.count())

	series := byName(fs.last())
	rows, ok := series["mastr.rows.total"]
	require.True(t, ok)
	assert.Equal(t, 5.0, *rows.Points[0].Value)
	assert.Equal(t, int64(1000), *rows.Points[0].Timestamp)
	assert.Equal(t, []string{"env:test", "job:upload", "team:energy", "table:wind"}, rows.Tags)

	p50, ok := series["mastr.step.duration_seconds.p50"]
	require.True(t, ok)
	assert.Equal(t, 1.5, *p50.Points[0].Value)
	assert.Contains(t, p50.Tags, "status:ok")
	assert.Contains(t, p50.Tags, "step:load")
	assert.Contains(t, series, "mastr.step.duration_seconds.samples")

	for name := range series {
		assert.NotContains(t, name, "unknown")
	}

	require.NoError(t, b.Flush())
	assert.Equal(t, 1, fs.count(), "empty buffers are not submitted")
}

func TestFlush_ResetsEvenOnError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403")}
	b := quietBackend(t, fs)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "upload", "status": "ok"})
	require.Error(t, b.Flush())

	fs.err = nil
	require.NoError(t, b.Flush())
	assert.Equal(t, 1, fs.count())
}

func TestIgnoresNonPositiveValues(t *testing.T) {
	fs := &fakeSubmitter{}
	b := quietBackend(t, fs)

	b.IncCounter(metrics.RowsTotal, 0, nil)
	b.ObserveHistogram(metrics.HTTPDurationSeconds, -1, nil)
	require.NoError(t, b.Flush())
	assert.Equal(t, 0, fs.count())
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
	})
	require.NoError(t, err)

	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": "200"})
	assert.Eventually(t, func() bool { return fs.count() >= 1 }, time.Second, 2*time.Millisecond)

	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": "200"})
	require.NoError(t, b.Close())
	assert.GreaterOrEqual(t, fs.count(), 2)
}

func TestConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := quietBackend(t, fs)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "hydro"})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, b.Flush())
	assert.Equal(t, 800.0, *byName(fs.last())["mastr.rows.total"].Points[0].Value)
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.0, percentileNearestRank(nil, 0.5))
	assert.Equal(t, 1.0, percentileNearestRank(s, 0))
	assert.Equal(t, 3.0, percentileNearestRank(s, 0.5))
	assert.Equal(t, 5.0, percentileNearestRank(s, 0.99))
	assert.Equal(t, 5.0, percentileNearestRank(s, 1))
}

func TestLabelTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", labelTags(nil))
	assert.Equal(t, "status:unknown\x00step:load", labelTags(metrics.Labels{"step": "load", "status": ""}))
}

func TestFlush_KeepsCommasInsideLabelValues(t *testing.T) {
	fs := &fakeSubmitter{}
	b := quietBackend(t, fs)

	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"table": "wind,hydro"})
	require.NoError(t, b.Flush())

	tags := byName(fs.last())["mastr.rows.total"].Tags
	require.Len(t, tags, len(b.baseTags)+1)
	assert.Equal(t, "table:wind,hydro", tags[len(tags)-1])
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseTagsCSV(""))
	assert.Equal(t, []string{"env:prod", "team:energy"}, ParseTagsCSV(" env:prod, ,team:energy "))
}
