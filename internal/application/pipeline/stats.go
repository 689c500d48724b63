package pipeline

import (
	"math"
	"sync"
	"time"

	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// StageRecord is what the orchestrator reports to the Aggregator after a
// stage: the raw match count from the stage, the final deduplicated matches
// and the resolver diagnostics.
type StageRecord struct {
	Number      int
	Name        string
	Method      StageMethod
	InputCount  int
	RawMatches  int
	Matches     []mapping.Match
	Elapsed     time.Duration
	Diagnostics StageDiagnostics
}

// Aggregator keeps the append-only stage history of a run.  Cumulative
// counters are derived from the previous entry, never recomputed.
type Aggregator struct {
	mu             sync.Mutex
	totalSources   int
	history        []mapping.StageStats
	matchedSources map[string]struct{}
}

// NewAggregator returns an Aggregator for a run over totalSources source
// identifiers.
func NewAggregator(totalSources int) *Aggregator {
	return &Aggregator{totalSources: totalSources, matchedSources: make(map[string]struct{})}
}

// Record appends the statistics of one stage and returns them.
func (a *Aggregator) Record(r StageRecord) mapping.StageStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	prevCumulative, prevSources := 0, 0
	if n := len(a.history); n > 0 {
		prevCumulative = a.history[n-1].CumulativeMatched
		prevSources = a.history[n-1].CumulativeSourcesMatched
	}

	newSources := 0
	for _, m := range r.Matches {
		if _, seen := a.matchedSources[m.SourceID]; !seen {
			a.matchedSources[m.SourceID] = struct{}{}
			newSources++
		}
	}

	minC, maxC, avgC := confidenceSummary(r.Matches)
	stats := mapping.StageStats{
		StageNumber:              r.Number,
		StageName:                r.Name,
		Method:                   string(r.Method),
		InputCount:               r.InputCount,
		Elapsed:                  r.Elapsed,
		MatchedCount:             r.RawMatches,
		NewMatches:               len(r.Matches),
		CumulativeMatched:        prevCumulative + len(r.Matches),
		NewSourcesMatched:        newSources,
		CumulativeSourcesMatched: prevSources + newSources,
		ConfidenceMin:            minC,
		ConfidenceMax:            maxC,
		ConfidenceAvg:            avgC,
		ObsoleteCount:            r.Diagnostics.Obsolete,
		ResolutionFailedCount:    r.Diagnostics.ResolutionFailed,
		CircuitOpen:              r.Diagnostics.CircuitOpen,
	}
	if stats.MatchedCount < stats.NewMatches {
		stats.MatchedCount = stats.NewMatches
	}
	if a.totalSources > 0 {
		stats.CumulativeCoverage = float64(stats.CumulativeSourcesMatched) / float64(a.totalSources)
	}

	a.history = append(a.history, stats)
	return stats
}

// Snapshot returns a copy of the history.
func (a *Aggregator) Snapshot() []mapping.StageStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]mapping.StageStats{}, a.history...)
}

// CumulativeMatched returns the latest cumulative match count.
func (a *Aggregator) CumulativeMatched() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) == 0 {
		return 0
	}
	return a.history[len(a.history)-1].CumulativeMatched
}

// confidenceSummary returns min, max and mean confidence; all zero for an
// empty set.
func confidenceSummary(matches []mapping.Match) (float64, float64, float64) {
	if len(matches) == 0 {
		return 0, 0, 0
	}
	minC, maxC, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, m := range matches {
		minC = math.Min(minC, m.Confidence)
		maxC = math.Max(maxC, m.Confidence)
		sum += m.Confidence
	}
	return minC, maxC, sum / float64(len(matches))
}

//Personal.AI order the ending
