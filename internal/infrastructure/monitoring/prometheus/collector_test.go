package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/testutil"
	"github.com/turtacn/BioMapper/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, nil)
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

// assertSample checks for an exact "name{labels} value" exposition line.
func assertSample(t *testing.T, output, sample string) {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if line == sample {
			return
		}
	}
	t.Errorf("sample %q not found in:\n%s", sample, output)
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestNewMetricsCollector_RuntimeCollectors(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "rt", EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("events_total", "events", "kind")
	vec.WithLabelValues("a").Inc()
	vec.WithLabelValues("a").Add(2)

	assertSample(t, scrapeMetrics(t, c), `test_unit_events_total{kind="a"} 3`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("depth", "depth", "queue").WithLabelValues("q")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()

	assertSample(t, scrapeMetrics(t, c), `test_unit_depth{queue="q"} 4`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "latency", nil, "op").WithLabelValues("x").Observe(0.2)

	out := scrapeMetrics(t, c)
	assertSample(t, out, `test_unit_latency_seconds_count{op="x"} 1`)
	assertSample(t, out, `test_unit_latency_seconds_bucket{op="x",le="0.25"} 1`)
}

func TestRegister_SameNameReturnsExisting(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "dup", "l").WithLabelValues("x").Inc()
	c.RegisterCounter("dup_total", "dup", "l").WithLabelValues("x").Inc()

	assertSample(t, scrapeMetrics(t, c), `test_unit_dup_total{l="x"} 2`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logger)
	require.NoError(t, err)

	c.RegisterCounter("thing", "thing")
	g := c.RegisterGauge("thing", "thing")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(1) })
	assert.True(t, logger.HasMessage("warn", "metric type mismatch"))
}

func TestRegister_ConcurrentSafe(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("race_total", "race").WithLabelValues().Inc()
		}()
	}
	wg.Wait()
	assertSample(t, scrapeMetrics(t, c), `test_unit_race_total 20`)
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	timer := NewTimer(c.RegisterHistogram("timed_seconds", "timed", nil).WithLabelValues())
	time.Sleep(time.Millisecond)
	assert.Positive(t, timer.ObserveDuration())
	assertSample(t, scrapeMetrics(t, c), `test_unit_timed_seconds_count 1`)

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

//Personal.AI order the ending
