package matching

import (
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// MatchOptions parameterizes one Match call.
type MatchOptions struct {
	// Stage is the 1-based stage number recorded on every Match.
	Stage             int
	Mode              mapping.MatchMode
	CompositeHandling mapping.CompositeHandling

	// WholeMethod and PartMethod name the methods recorded for whole-value and
	// composite-part hits.  They default to direct and composite.
	WholeMethod mapping.Method
	PartMethod  mapping.Method
}

// Validate reports configuration errors in opts.
func (o MatchOptions) Validate() error {
	if o.Stage < 1 {
		return errors.InvalidParam("stage number must be >= 1")
	}
	if !o.Mode.IsValid() {
		return errors.New(errors.ErrCodeUnknownMatchMode, "unknown match_mode").WithDetail(o.Mode.String())
	}
	if !o.CompositeHandling.IsValid() {
		return errors.New(errors.ErrCodeUnknownCompositeHandling, "unknown composite_handling").
			WithDetail(o.CompositeHandling.String())
	}
	return nil
}

// Outcome is the result of one Match call.  UnmappedSource and UnmappedTarget
// preserve input order.
type Outcome struct {
	Matches        []mapping.Match
	UnmappedSource []mapping.Identifier
	UnmappedTarget []mapping.Identifier
}

// Matcher is the direct/bidirectional matcher.  It indexes the target set by
// normalized value and looks it up with each source identifier.  It performs no
// I/O and is deterministic for given inputs.
type Matcher struct {
	scorer *Scorer
}

// NewMatcher returns a Matcher that scores hits with scorer.
func NewMatcher(scorer *Scorer) *Matcher {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	return &Matcher{scorer: scorer}
}

type lookupHit struct {
	target     mapping.Identifier
	method     mapping.Method
	confidence float64
}

// Match pairs source with target.  Whole-value lookups run before composite
// part lookups.  In many_to_many mode one Match is emitted per distinct target
// hit; in one_to_one mode only the highest-confidence hit is kept, ties going
// to the earliest lookup.
func (m *Matcher) Match(source, target []mapping.Identifier, opts MatchOptions) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	wholeMethod, partMethod := opts.WholeMethod, opts.PartMethod
	if wholeMethod == "" {
		wholeMethod = mapping.MethodDirect
	}
	if partMethod == "" {
		partMethod = mapping.MethodComposite
	}

	index := make(map[string]mapping.Identifier, len(target))
	for _, t := range target {
		if _, exists := index[t.Normalized]; !exists {
			index[t.Normalized] = t
		}
	}

	out := &Outcome{}
	hitTargets := make(map[string]struct{})

	for _, src := range source {
		var hits []lookupHit
		seen := make(map[string]struct{})
		find := func(value string, method mapping.Method) {
			t, ok := index[value]
			if !ok {
				return
			}
			if _, dup := seen[t.Raw]; dup {
				return
			}
			seen[t.Raw] = struct{}{}
			hits = append(hits, lookupHit{target: t, method: method, confidence: m.scorer.Score(method)})
		}

		if opts.CompositeHandling.MatchesWhole() {
			find(src.Normalized, wholeMethod)
		}
		if opts.CompositeHandling.MatchesParts() {
			for _, part := range src.CompositeParts {
				find(part, partMethod)
			}
		}

		if len(hits) == 0 {
			out.UnmappedSource = append(out.UnmappedSource, src)
			continue
		}
		if opts.Mode == mapping.MatchModeOneToOne {
			hits = []lookupHit{bestHit(hits)}
		}
		for _, h := range hits {
			hitTargets[h.target.Raw] = struct{}{}
			out.Matches = append(out.Matches, mapping.Match{
				SourceID:   src.Raw,
				TargetID:   h.target.Raw,
				Stage:      opts.Stage,
				Method:     h.method,
				Confidence: h.confidence,
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

func bestHit(hits []lookupHit) lookupHit {
	best := hits[0]
	for _, h := range hits[1:] {
		if h.confidence > best.confidence {
			best = h
		}
	}
	return best
}

//Personal.AI order the ending
