// Package matching holds the closed-form matchers of the pipeline: the
// direct/bidirectional matcher with composite handling, the fuzzy similarity
// matcher, and the confidence scorer table every matcher and the historical
// stage consult when they create a Match.
package matching

import (
	"math"

	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Scorer
// ─────────────────────────────────────────────────────────────────────────────

// ScorerConfig carries the base confidence per method.
type ScorerConfig struct {
	Direct              float64 `mapstructure:"direct" yaml:"direct"`
	Composite           float64 `mapstructure:"composite" yaml:"composite"`
	HistoricalPrimary   float64 `mapstructure:"historical_primary" yaml:"historical_primary"`
	HistoricalSecondary float64 `mapstructure:"historical_secondary" yaml:"historical_secondary"`
	HistoricalDemerged  float64 `mapstructure:"historical_demerged" yaml:"historical_demerged"`
}

// DefaultScorerConfig returns the standard confidence tiers.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Direct:              1.0,
		Composite:           0.95,
		HistoricalPrimary:   1.0,
		HistoricalSecondary: 0.9,
		HistoricalDemerged:  0.85,
	}
}

// Validate checks that every tier lies in [0,1] and that composite matches
// score strictly below 1.
func (c ScorerConfig) Validate() error {
	tiers := map[string]float64{
		"direct":               c.Direct,
		"composite":            c.Composite,
		"historical_primary":   c.HistoricalPrimary,
		"historical_secondary": c.HistoricalSecondary,
		"historical_demerged":  c.HistoricalDemerged,
	}
	for name, v := range tiers {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.Configuration("confidence tier outside [0,1]").WithDetail(name)
		}
	}
	if c.Composite >= 1 {
		return errors.Configuration("composite confidence must be below 1.0")
	}
	return nil
}

// Scorer is the single method → base-confidence table.  It is a pure lookup.
type Scorer struct {
	table map[mapping.Method]float64
}

// NewScorer validates cfg and builds the table.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{table: map[mapping.Method]float64{
		mapping.MethodDirect:              cfg.Direct,
		mapping.MethodComposite:           cfg.Composite,
		mapping.MethodHistoricalPrimary:   cfg.HistoricalPrimary,
		mapping.MethodHistoricalSecondary: cfg.HistoricalSecondary,
		mapping.MethodHistoricalDemerged:  cfg.HistoricalDemerged,
	}}, nil
}

// DefaultScorer returns a Scorer over DefaultScorerConfig.
func DefaultScorer() *Scorer {
	s, _ := NewScorer(DefaultScorerConfig())
	return s
}

// Score returns the base confidence for method.  Similarity has no fixed base
// and scores 1.0 here; use Similarity for fuzzy matches.  Unknown methods
// score 0.
func (s *Scorer) Score(method mapping.Method) float64 {
	if method == mapping.MethodSimilarity {
		return 1.0
	}
	return s.table[method]
}

// ForResolution returns the confidence for a historical resolution type.
// Obsolete always scores 0.
func (s *Scorer) ForResolution(t mapping.ResolutionType) float64 {
	m := mapping.MethodForResolution(t)
	if m == "" {
		return 0
	}
	return s.table[m]
}

// Similarity clips a raw similarity score to [0,1].  NaN scores 0.
func (s *Scorer) Similarity(sim float64) float64 {
	return Clip(sim)
}

// Clip bounds v to [0,1].
func Clip(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Tiers returns a copy of the table.
func (s *Scorer) Tiers() map[mapping.Method]float64 {
	out := make(map[mapping.Method]float64, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

//Personal.AI order the ending
