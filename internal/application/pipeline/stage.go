package pipeline

import (
	"context"

	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stage contract
// ─────────────────────────────────────────────────────────────────────────────

// StageMethod names a stage technique.  Methods have a cost rank; stages
// must be ordered from cheapest to most expensive.
type StageMethod string

const (
	StageDirect     StageMethod = "direct"
	StageComposite  StageMethod = "composite"
	StageHistorical StageMethod = "historical"
	StageSimilarity StageMethod = "similarity"
)

var methodRank = map[StageMethod]int{
	StageDirect:     0,
	StageComposite:  1,
	StageHistorical: 2,
	StageSimilarity: 3,
}

// Rank returns the method's cost rank and whether the method is known.
func (m StageMethod) Rank() (int, bool) {
	r, ok := methodRank[m]
	return r, ok
}

// StageInput is what the orchestrator hands a stage: exactly the source
// identifiers left unmapped by earlier stages, and the full target set.
type StageInput struct {
	Number int
	Source []mapping.Identifier
	Target []mapping.Identifier
	Mode   mapping.MatchMode
}

// StageDiagnostics carries resolver outcomes into the stage statistics.
type StageDiagnostics struct {
	Obsolete         int
	ResolutionFailed int
	CircuitOpen      bool
}

// StageOutput is a stage's raw result.  The orchestrator validates and
// deduplicates Matches and derives the unmapped sets itself.
type StageOutput struct {
	Matches     []mapping.Match
	Diagnostics StageDiagnostics
}

// Stage is one resolution technique.
type Stage interface {
	Name() string
	Method() StageMethod
	Run(ctx context.Context, pctx *PipelineContext, in StageInput) (StageOutput, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// DirectStage
// ─────────────────────────────────────────────────────────────────────────────

// DirectStage matches whole normalized values.
type DirectStage struct {
	name    string
	matcher *matching.Matcher
}

// NewDirectStage returns a direct-match stage.
func NewDirectStage(name string, matcher *matching.Matcher) *DirectStage {
	return &DirectStage{name: name, matcher: matcher}
}

func (s *DirectStage) Name() string        { return s.name }
func (s *DirectStage) Method() StageMethod { return StageDirect }

func (s *DirectStage) Run(_ context.Context, _ *PipelineContext, in StageInput) (StageOutput, error) {
	out, err := s.matcher.Match(in.Source, in.Target, matching.MatchOptions{
		Stage:             in.Number,
		Mode:              in.Mode,
		CompositeHandling: mapping.CompositeMatchWhole,
	})
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Matches: out.Matches}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CompositeStage
// ─────────────────────────────────────────────────────────────────────────────

// CompositeStage parses each source into composite parts and looks up the
// target index with them.  Source values that fail to parse are logged and
// stay unmapped.
type CompositeStage struct {
	name       string
	matcher    *matching.Matcher
	normalizer *identifier.Normalizer
	handling   mapping.CompositeHandling
	logger     logging.Logger
}

// NewCompositeStage returns a composite stage.
func NewCompositeStage(name string, matcher *matching.Matcher, normalizer *identifier.Normalizer, handling mapping.CompositeHandling, logger logging.Logger) *CompositeStage {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CompositeStage{name: name, matcher: matcher, normalizer: normalizer, handling: handling, logger: logger}
}

func (s *CompositeStage) Name() string        { return s.name }
func (s *CompositeStage) Method() StageMethod { return StageComposite }

func (s *CompositeStage) Run(ctx context.Context, pctx *PipelineContext, in StageInput) (StageOutput, error) {
	parsed := make([]mapping.Identifier, 0, len(in.Source))
	for _, src := range in.Source {
		id, err := s.normalizer.NormalizeComposite(src.Raw, src.SourceDataset)
		if err != nil {
			s.logger.WithContext(ctx).Warn("skipping unparsable composite identifier",
				logging.String("raw", src.Raw), logging.Err(err))
			pctx.AddWarning("composite parse failed: " + src.Raw)
			continue
		}
		id.Metadata = src.Metadata
		parsed = append(parsed, id)
	}

	out, err := s.matcher.Match(parsed, in.Target, matching.MatchOptions{
		Stage:             in.Number,
		Mode:              in.Mode,
		CompositeHandling: s.handling,
	})
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Matches: out.Matches}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HistoricalStage
// ─────────────────────────────────────────────────────────────────────────────

// HistoricalStage resolves sources through the historical resolver.  Every
// resolved id becomes a match target scored by the stage's confidence table,
// or by the record's own confidence when the stage has none; when
// a resolved id equals a target's normalized value the target's raw value is
// used.  With requireTarget, resolved ids absent from the target set are
// dropped.
type HistoricalStage struct {
	name          string
	resolver      *resolution.Resolver
	requireTarget bool
	scorer        *matching.Scorer
	logger        logging.Logger
}

// NewHistoricalStage returns a historical stage.
func NewHistoricalStage(name string, resolver *resolution.Resolver, requireTarget bool, logger logging.Logger) *HistoricalStage {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HistoricalStage{name: name, resolver: resolver, requireTarget: requireTarget, logger: logger}
}

func (s *HistoricalStage) Name() string        { return s.name }
func (s *HistoricalStage) Method() StageMethod { return StageHistorical }

func (s *HistoricalStage) Run(ctx context.Context, _ *PipelineContext, in StageInput) (StageOutput, error) {
	ids := make([]string, 0, len(in.Source))
	for _, src := range in.Source {
		ids = append(ids, src.Normalized)
	}
	res := s.resolver.ResolveBatch(ctx, ids)

	targetIndex := make(map[string]string, len(in.Target))
	for _, t := range in.Target {
		if _, exists := targetIndex[t.Normalized]; !exists {
			targetIndex[t.Normalized] = t.Raw
		}
	}

	out := StageOutput{Diagnostics: StageDiagnostics{CircuitOpen: res.CircuitOpen}}
	for _, src := range in.Source {
		rec, ok := res.Records[src.Normalized]
		if !ok {
			continue
		}
		if rec.Type == mapping.ResolutionObsolete {
			out.Diagnostics.Obsolete++
			if rec.ResolutionFailed {
				out.Diagnostics.ResolutionFailed++
			}
			continue
		}

		method := mapping.MethodForResolution(rec.Type)
		confidence := rec.Confidence
		if s.scorer != nil {
			confidence = s.scorer.ForResolution(rec.Type)
		}
		for _, resolved := range rec.ResolvedIDs {
			targetID, inTarget := targetIndex[resolved]
			if !inTarget {
				if s.requireTarget {
					continue
				}
				targetID = resolved
			}
			out.Matches = append(out.Matches, mapping.Match{
				SourceID:   src.Raw,
				TargetID:   targetID,
				Stage:      in.Number,
				Method:     method,
				Confidence: confidence,
			})
			if in.Mode == mapping.MatchModeOneToOne {
				break
			}
		}
	}

	if res.CircuitOpen {
		s.logger.WithContext(ctx).Warn("historical stage degraded: circuit open",
			logging.Int("failed", out.Diagnostics.ResolutionFailed))
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SimilarityStage
// ─────────────────────────────────────────────────────────────────────────────

// SimilarityStage pairs sources with near-identical targets.
type SimilarityStage struct {
	name    string
	matcher *matching.SimilarityMatcher
}

// NewSimilarityStage returns a fuzzy-match stage.
func NewSimilarityStage(name string, matcher *matching.SimilarityMatcher) *SimilarityStage {
	return &SimilarityStage{name: name, matcher: matcher}
}

func (s *SimilarityStage) Name() string        { return s.name }
func (s *SimilarityStage) Method() StageMethod { return StageSimilarity }

func (s *SimilarityStage) Run(_ context.Context, _ *PipelineContext, in StageInput) (StageOutput, error) {
	out, err := s.matcher.Match(in.Source, in.Target, in.Number, in.Mode)
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Matches: out.Matches}, nil
}

//Personal.AI order the ending
