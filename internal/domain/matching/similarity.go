package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"

	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// Algorithm names a string similarity metric.
type Algorithm string

const (
	AlgorithmJaroWinkler  Algorithm = "jaro_winkler"
	AlgorithmSorensenDice Algorithm = "sorensen_dice"
	AlgorithmJaccard      Algorithm = "jaccard"
	AlgorithmLevenshtein  Algorithm = "levenshtein"
)

// SimilarityConfig configures the fuzzy matcher.
type SimilarityConfig struct {
	Algorithm Algorithm `mapstructure:"algorithm" yaml:"algorithm"`

	// Threshold is the minimum similarity in [0,1] for a candidate to match.
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`

	// MaxCandidates caps matches per source in many_to_many mode; 0 means no
	// cap.
	MaxCandidates int  `mapstructure:"max_candidates" yaml:"max_candidates"`
	CaseSensitive bool `mapstructure:"case_sensitive" yaml:"case_sensitive"`
}

// DefaultSimilarityConfig returns Jaro-Winkler at 0.9.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{Algorithm: AlgorithmJaroWinkler, Threshold: 0.9, MaxCandidates: 1}
}

// Validate checks the algorithm name and threshold range.
func (c SimilarityConfig) Validate() error {
	switch c.Algorithm {
	case AlgorithmJaroWinkler, AlgorithmSorensenDice, AlgorithmJaccard, AlgorithmLevenshtein:
	default:
		return errors.Configuration("unknown similarity algorithm").WithDetail(string(c.Algorithm))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Configuration("similarity threshold outside [0,1]")
	}
	if c.MaxCandidates < 0 {
		return errors.Configuration("similarity max_candidates must be >= 0")
	}
	return nil
}

// SimilarityMatcher pairs identifiers whose normalized values are close
// under a string metric.  Confidence is the similarity clipped to [0,1].
type SimilarityMatcher struct {
	cfg    SimilarityConfig
	scorer *Scorer
	metric func(a, b string) float64
}

// NewSimilarityMatcher validates cfg and returns a matcher.
func NewSimilarityMatcher(cfg SimilarityConfig, scorer *Scorer) (*SimilarityMatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		scorer = DefaultScorer()
	}
	sm := &SimilarityMatcher{cfg: cfg, scorer: scorer}

	switch cfg.Algorithm {
	case AlgorithmJaroWinkler:
		jw := metrics.NewJaroWinkler()
		jw.CaseSensitive = cfg.CaseSensitive
		sm.metric = func(a, b string) float64 { return strutil.Similarity(a, b, jw) }
	case AlgorithmSorensenDice:
		sd := metrics.NewSorensenDice()
		sd.CaseSensitive = cfg.CaseSensitive
		sm.metric = func(a, b string) float64 { return strutil.Similarity(a, b, sd) }
	case AlgorithmJaccard:
		jc := metrics.NewJaccard()
		jc.CaseSensitive = cfg.CaseSensitive
		sm.metric = func(a, b string) float64 { return strutil.Similarity(a, b, jc) }
	case AlgorithmLevenshtein:
		caseSensitive := cfg.CaseSensitive
		sm.metric = func(a, b string) float64 {
			if !caseSensitive {
				a, b = strings.ToLower(a), strings.ToLower(b)
			}
			return levenshteinSimilarity(a, b)
		}
	}
	return sm, nil
}

// Similarity returns the raw metric value for a and b.
func (sm *SimilarityMatcher) Similarity(a, b string) float64 {
	return sm.metric(a, b)
}

// levenshteinSimilarity is 1 - distance/max(len) over runes.
func levenshteinSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

type candidate struct {
	target mapping.Identifier
	score  float64
}

// Match compares every source with every target.  Candidates at or above the
// threshold become matches; one_to_one keeps the best, ties going to the
// earlier target.
func (sm *SimilarityMatcher) Match(source, target []mapping.Identifier, stage int, mode mapping.MatchMode) (*Outcome, error) {
	if stage < 1 {
		return nil, errors.InvalidParam("stage number must be >= 1")
	}
	if !mode.IsValid() {
		return nil, errors.New(errors.ErrCodeUnknownMatchMode, "unknown match_mode").WithDetail(mode.String())
	}

	out := &Outcome{}
	hitTargets := make(map[string]struct{})

	for _, src := range source {
		var cands []candidate
		for _, t := range target {
			score := sm.scorer.Similarity(sm.metric(src.Normalized, t.Normalized))
			if score >= sm.cfg.Threshold && score > 0 {
				cands = append(cands, candidate{target: t, score: score})
			}
		}
		if len(cands) == 0 {
			out.UnmappedSource = append(out.UnmappedSource, src)
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

		limit := len(cands)
		if mode == mapping.MatchModeOneToOne {
			limit = 1
		} else if sm.cfg.MaxCandidates > 0 && sm.cfg.MaxCandidates < limit {
			limit = sm.cfg.MaxCandidates
		}
		for _, c := range cands[:limit] {
			hitTargets[c.target.Raw] = struct{}{}
			out.Matches = append(out.Matches, mapping.Match{
				SourceID:   src.Raw,
				TargetID:   c.target.Raw,
				Stage:      stage,
				Method:     mapping.MethodSimilarity,
				Confidence: c.score,
			})
		}
	}

	for _, t := range target {
		if _, hit := hitTargets[t.Raw]; !hit {
			out.UnmappedTarget = append(out.UnmappedTarget, t)
		}
	}
	return out, nil
}

//Personal.AI order the ending
