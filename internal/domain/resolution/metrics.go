package resolution

import "time"

// Batch outcome labels reported to Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCancelled   = "cancelled"
)

// Metrics receives resolver telemetry.  The prometheus package provides the
// production implementation.
type Metrics interface {
	RecordBatch(authority, outcome string, size int, d time.Duration)
	RecordRetry(authority string)
	RecordCacheLookup(hit bool)
	RecordBreakerTransition(from, to string)
}

type noopMetrics struct{}

func (noopMetrics) RecordBatch(string, string, int, time.Duration) {}
func (noopMetrics) RecordRetry(string)                             {}
func (noopMetrics) RecordCacheLookup(bool)                         {}
func (noopMetrics) RecordBreakerTransition(string, string)         {}

// NoopMetrics returns a Metrics that discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }

//Personal.AI order the ending
