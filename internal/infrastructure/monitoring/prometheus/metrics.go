package prometheus

import (
	"time"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// MappingMetrics holds the pipeline and resolver metrics.
type MappingMetrics struct {
	// Pipeline
	StageDuration HistogramVec
	StageInput    GaugeVec
	StageCoverage GaugeVec
	MatchesTotal  CounterVec
	ObsoleteTotal CounterVec
	RunsTotal     CounterVec
	RunDuration   HistogramVec

	// Resolver
	ResolverBatchesTotal  CounterVec
	ResolverBatchDuration HistogramVec
	ResolverBatchSize     HistogramVec
	ResolverRetriesTotal  CounterVec
	CacheLookupsTotal     CounterVec
	BreakerTransitions    CounterVec
}

// Default buckets.
var (
	DefaultStageDurationBuckets = []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60, 300}
	DefaultBatchDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultBatchSizeBuckets     = []float64{1, 10, 25, 50, 100, 250, 500}
)

// NewMappingMetrics registers every metric on collector.
func NewMappingMetrics(collector MetricsCollector) *MappingMetrics {
	m := &MappingMetrics{}

	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Stage execution time", DefaultStageDurationBuckets, "stage", "method")
	m.StageInput = collector.RegisterGauge("stage_input_identifiers", "Source identifiers entering the most recent stage run", "stage")
	m.StageCoverage = collector.RegisterGauge("stage_cumulative_coverage", "Fraction of source identifiers mapped after the stage", "stage")
	m.MatchesTotal = collector.RegisterCounter("matches_total", "Matches produced", "stage", "method")
	m.ObsoleteTotal = collector.RegisterCounter("obsolete_identifiers_total", "Identifiers classified obsolete", "stage", "failed")
	m.RunsTotal = collector.RegisterCounter("runs_total", "Pipeline runs by final state", "state")
	m.RunDuration = collector.RegisterHistogram("run_duration_seconds", "Pipeline run time", DefaultStageDurationBuckets, "state")

	m.ResolverBatchesTotal = collector.RegisterCounter("resolver_batches_total", "Resolver batches by outcome", "authority", "outcome")
	m.ResolverBatchDuration = collector.RegisterHistogram("resolver_batch_duration_seconds", "Resolver batch time including retries", DefaultBatchDurationBuckets, "authority")
	m.ResolverBatchSize = collector.RegisterHistogram("resolver_batch_size", "Identifiers per resolver batch", DefaultBatchSizeBuckets, "authority")
	m.ResolverRetriesTotal = collector.RegisterCounter("resolver_retries_total", "Resolver retry attempts", "authority")
	m.CacheLookupsTotal = collector.RegisterCounter("resolution_cache_lookups_total", "Resolution cache lookups", "result")
	m.BreakerTransitions = collector.RegisterCounter("circuit_breaker_transitions_total", "Circuit breaker state changes", "from", "to")

	return m
}

// ── pipeline.Metrics ─────────────────────────────────────────────────────────

func (m *MappingMetrics) ObserveStage(stats mapping.StageStats, matches []mapping.Match) {
	m.StageDuration.WithLabelValues(stats.StageName, stats.Method).Observe(stats.Elapsed.Seconds())
	m.StageInput.WithLabelValues(stats.StageName).Set(float64(stats.InputCount))
	m.StageCoverage.WithLabelValues(stats.StageName).Set(stats.CumulativeCoverage)

	byMethod := make(map[mapping.Method]int)
	for _, match := range matches {
		byMethod[match.Method]++
	}
	for method, n := range byMethod {
		m.MatchesTotal.WithLabelValues(stats.StageName, method.String()).Add(float64(n))
	}

	if stats.ObsoleteCount > 0 {
		failed := stats.ResolutionFailedCount
		m.ObsoleteTotal.WithLabelValues(stats.StageName, "true").Add(float64(failed))
		m.ObsoleteTotal.WithLabelValues(stats.StageName, "false").Add(float64(stats.ObsoleteCount - failed))
	}
}

func (m *MappingMetrics) RecordRun(phase mapping.Phase, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(string(phase)).Inc()
	m.RunDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// ── resolution.Metrics ───────────────────────────────────────────────────────

func (m *MappingMetrics) RecordBatch(authority, outcome string, size int, d time.Duration) {
	m.ResolverBatchesTotal.WithLabelValues(authority, outcome).Inc()
	m.ResolverBatchSize.WithLabelValues(authority).Observe(float64(size))
	if outcome != resolution.OutcomeCircuitOpen {
		m.ResolverBatchDuration.WithLabelValues(authority).Observe(d.Seconds())
	}
}

func (m *MappingMetrics) RecordRetry(authority string) {
	m.ResolverRetriesTotal.WithLabelValues(authority).Inc()
}

func (m *MappingMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *MappingMetrics) RecordBreakerTransition(from, to string) {
	m.BreakerTransitions.WithLabelValues(from, to).Inc()
}

var (
	_ pipeline.Metrics   = (*MappingMetrics)(nil)
	_ resolution.Metrics = (*MappingMetrics)(nil)
)

//Personal.AI order the ending
