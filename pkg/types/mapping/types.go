// Package mapping defines the value types exchanged between the identifier
// normalizer, the matchers, the historical resolver and the stage
// orchestrator, together with the output contract consumed by reporting and
// export collaborators.
package mapping

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// MatchMode controls how many matches a single source identifier may produce.
type MatchMode string

const (
	MatchModeOneToOne   MatchMode = "one_to_one"
	MatchModeManyToMany MatchMode = "many_to_many"
)

// IsValid reports whether m is a recognised match mode.
func (m MatchMode) IsValid() bool {
	return m == MatchModeOneToOne || m == MatchModeManyToMany
}

func (m MatchMode) String() string { return string(m) }

// CompositeHandling selects which lookups the matcher issues per source id.
type CompositeHandling string

const (
	CompositeSplitAndMatch CompositeHandling = "split_and_match"
	CompositeMatchWhole    CompositeHandling = "match_whole"
	CompositeBoth          CompositeHandling = "both"
)

// IsValid reports whether h is a recognised composite handling mode.
func (h CompositeHandling) IsValid() bool {
	switch h {
	case CompositeSplitAndMatch, CompositeMatchWhole, CompositeBoth:
		return true
	}
	return false
}

// MatchesWhole reports whether the whole normalized value is matched.
func (h CompositeHandling) MatchesWhole() bool {
	return h == CompositeMatchWhole || h == CompositeBoth
}

// MatchesParts reports whether each composite part is matched.
func (h CompositeHandling) MatchesParts() bool {
	return h == CompositeSplitAndMatch || h == CompositeBoth
}

func (h CompositeHandling) String() string { return string(h) }

// ResolutionType classifies the outcome of a historical lookup.
type ResolutionType string

const (
	ResolutionPrimary   ResolutionType = "primary"
	ResolutionSecondary ResolutionType = "secondary"
	ResolutionDemerged  ResolutionType = "demerged"
	ResolutionObsolete  ResolutionType = "obsolete"
)

// IsValid reports whether t is a recognised resolution type.
func (t ResolutionType) IsValid() bool {
	switch t {
	case ResolutionPrimary, ResolutionSecondary, ResolutionDemerged, ResolutionObsolete:
		return true
	}
	return false
}

func (t ResolutionType) String() string { return string(t) }

// Method names the technique that produced a Match.  It is also the key of
// the confidence scorer table.
type Method string

const (
	MethodDirect              Method = "direct"
	MethodComposite           Method = "composite"
	MethodHistoricalPrimary   Method = "historical_primary"
	MethodHistoricalSecondary Method = "historical_secondary"
	MethodHistoricalDemerged  Method = "historical_demerged"
	MethodSimilarity          Method = "similarity"
)

func (m Method) String() string { return string(m) }

// MethodForResolution maps a resolution type to the method recorded on the
// resulting matches.  Obsolete records never produce matches and yield "".
func MethodForResolution(t ResolutionType) Method {
	switch t {
	case ResolutionPrimary:
		return MethodHistoricalPrimary
	case ResolutionSecondary:
		return MethodHistoricalSecondary
	case ResolutionDemerged:
		return MethodHistoricalDemerged
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Identifier
// ─────────────────────────────────────────────────────────────────────────────

// Identifier is a semantic string value plus provenance.  Normalized is a
// deterministic function of Raw and the normalizer configuration; when
// CompositeParts is non-empty, joining it with the configured delimiter
// reproduces Normalized.
type Identifier struct {
	Raw            string            `json:"raw_value"`
	Normalized     string            `json:"normalized_value"`
	CompositeParts []string          `json:"composite_parts,omitempty"`
	SourceDataset  string            `json:"source_dataset,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsComposite reports whether the identifier was parsed into two or more parts.
func (id Identifier) IsComposite() bool {
	return len(id.CompositeParts) > 1
}

// ─────────────────────────────────────────────────────────────────────────────
// ResolutionRecord
// ─────────────────────────────────────────────────────────────────────────────

// ResolutionRecord is the historical resolver's verdict for one input id.
type ResolutionRecord struct {
	InputID     string         `json:"input_id"`
	ResolvedIDs []string       `json:"resolved_ids"`
	Type        ResolutionType `json:"resolution_type"`
	Confidence  float64        `json:"confidence"`

	// ResolutionFailed marks obsolete records produced by degradation (retries
	// exhausted or circuit open) rather than by a definitive "not found".
	ResolutionFailed bool   `json:"resolution_failed,omitempty"`
	Diagnostic       string `json:"diagnostic,omitempty"`
}

// Validate checks the structural invariants of a record.
func (r ResolutionRecord) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("resolution record %q: unknown type %q", r.InputID, r.Type)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("resolution record %q: confidence %v outside [0,1]", r.InputID, r.Confidence)
	}
	switch r.Type {
	case ResolutionObsolete:
		if len(r.ResolvedIDs) != 0 || r.Confidence != 0 {
			return fmt.Errorf("resolution record %q: obsolete must have no resolved ids and zero confidence", r.InputID)
		}
	case ResolutionDemerged:
		if len(r.ResolvedIDs) < 2 {
			return fmt.Errorf("resolution record %q: demerged requires more than one resolved id", r.InputID)
		}
	default:
		if len(r.ResolvedIDs) != 1 {
			return fmt.Errorf("resolution record %q: %s requires exactly one resolved id", r.InputID, r.Type)
		}
	}
	return nil
}

// Clone returns a deep copy so cached records are never aliased.
func (r ResolutionRecord) Clone() ResolutionRecord {
	out := r
	if r.ResolvedIDs != nil {
		out.ResolvedIDs = make([]string, len(r.ResolvedIDs))
		copy(out.ResolvedIDs, r.ResolvedIDs)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Match
// ─────────────────────────────────────────────────────────────────────────────

// Match pairs a source identifier with a target identifier.
type Match struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Stage      int     `json:"stage"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Key returns the (source, target) pair used for deduplication.
func (m Match) Key() MatchKey {
	return MatchKey{SourceID: m.SourceID, TargetID: m.TargetID}
}

// MatchKey identifies a (source, target) pair.
type MatchKey struct {
	SourceID string
	TargetID string
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage statistics and results
// ─────────────────────────────────────────────────────────────────────────────

// StageStats is the immutable statistics snapshot of one stage execution.
// CumulativeMatched(n) == CumulativeMatched(n-1) + NewMatches(n).
type StageStats struct {
	StageNumber int           `json:"stage_number"`
	StageName   string        `json:"stage_name"`
	Method      string        `json:"method"`
	InputCount  int           `json:"input_count"`
	Elapsed     time.Duration `json:"elapsed"`

	MatchedCount      int `json:"matched_count"`
	NewMatches        int `json:"new_matches"`
	CumulativeMatched int `json:"cumulative_matched"`

	NewSourcesMatched        int     `json:"new_sources_matched"`
	CumulativeSourcesMatched int     `json:"cumulative_sources_matched"`
	CumulativeCoverage       float64 `json:"cumulative_coverage"`

	ConfidenceMin float64 `json:"confidence_min"`
	ConfidenceMax float64 `json:"confidence_max"`
	ConfidenceAvg float64 `json:"confidence_avg"`

	ObsoleteCount         int  `json:"obsolete_count,omitempty"`
	ResolutionFailedCount int  `json:"resolution_failed_count,omitempty"`
	CircuitOpen           bool `json:"circuit_open,omitempty"`
}

// StageResult is produced once per stage execution and never mutated after
// it is returned.
type StageResult struct {
	StageNumber    int          `json:"stage_number"`
	StageName      string       `json:"stage_name"`
	Matches        []Match      `json:"matches"`
	UnmappedSource []Identifier `json:"unmapped_source"`
	UnmappedTarget []Identifier `json:"unmapped_target"`
	Stats          StageStats   `json:"stats"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline state and output contract
// ─────────────────────────────────────────────────────────────────────────────

// Phase is the coarse orchestrator state.
type Phase string

const (
	PhasePending  Phase = "PENDING"
	PhaseRunning  Phase = "RUNNING_STAGE"
	PhaseComplete Phase = "COMPLETE"
	PhaseAborted  Phase = "ABORTED"
)

// State is the orchestrator state; Stage is meaningful only while running.
type State struct {
	Phase Phase `json:"phase"`
	Stage int   `json:"stage,omitempty"`
}

func (s State) String() string {
	if s.Phase == PhaseRunning {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Stage)
	}
	return string(s.Phase)
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s.Phase == PhaseComplete || s.Phase == PhaseAborted
}

// Result is the sole contract handed to reporting, export and visualization
// collaborators.
type Result struct {
	RunID               string       `json:"run_id"`
	State               State        `json:"state"`
	Matches             []Match      `json:"matches"`
	FinalUnmappedSource []Identifier `json:"final_unmapped_source"`
	FinalUnmappedTarget []Identifier `json:"final_unmapped_target"`
	StageHistory        []StageStats `json:"stage_history"`

	// FailedStage is the 1-based number of the stage that aborted the run, or
	// zero when no stage failed.
	FailedStage int    `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
}

//Personal.AI order the ending
