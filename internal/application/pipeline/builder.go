package pipeline

import (
	"fmt"

	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// StageConfig declares one stage.
type StageConfig struct {
	Name   string      `mapstructure:"name" yaml:"name" json:"name"`
	Method StageMethod `mapstructure:"method" yaml:"method" json:"method"`

	// CompositeHandling overrides the pipeline-level value for a composite
	// stage.
	CompositeHandling mapping.CompositeHandling `mapstructure:"composite_handling" yaml:"composite_handling,omitempty" json:"composite_handling,omitempty"`

	// RequireTarget restricts historical matches to resolved ids present in
	// the target set.
	RequireTarget bool `mapstructure:"require_target" yaml:"require_target,omitempty" json:"require_target,omitempty"`

	// Similarity overrides the pipeline-level similarity settings.
	Similarity *matching.SimilarityConfig `mapstructure:"similarity" yaml:"similarity,omitempty" json:"similarity,omitempty"`
}

// Config is the run configuration of a pipeline.
type Config struct {
	MatchMode          mapping.MatchMode         `mapstructure:"match_mode" yaml:"match_mode" json:"match_mode"`
	CompositeHandling  mapping.CompositeHandling `mapstructure:"composite_handling" yaml:"composite_handling" json:"composite_handling"`
	CompositeDelimiter string                    `mapstructure:"composite_delimiter" yaml:"composite_delimiter" json:"composite_delimiter"`
	Normalizer         identifier.Config         `mapstructure:"normalizer" yaml:"normalizer" json:"normalizer"`
	Scorer             matching.ScorerConfig     `mapstructure:"scorer" yaml:"scorer" json:"scorer"`
	Similarity         matching.SimilarityConfig `mapstructure:"similarity" yaml:"similarity" json:"similarity"`
	Stages             []StageConfig             `mapstructure:"stages" yaml:"stages" json:"stages"`
}

// DefaultConfig returns the three-stage protein pipeline: direct, composite,
// then historical restricted to the target set.
func DefaultConfig() Config {
	return Config{
		MatchMode:          mapping.MatchModeOneToOne,
		CompositeHandling:  mapping.CompositeSplitAndMatch,
		CompositeDelimiter: "_",
		Normalizer:         identifier.DefaultConfig(),
		Scorer:             matching.DefaultScorerConfig(),
		Similarity:         matching.DefaultSimilarityConfig(),
		Stages: []StageConfig{
			{Name: "direct", Method: StageDirect},
			{Name: "composite", Method: StageComposite},
			{Name: "historical", Method: StageHistorical, RequireTarget: true},
		},
	}
}

// Validate checks enumerations, scorer tiers and stage ordering.
func (c Config) Validate() error {
	if !c.MatchMode.IsValid() {
		return apperrors.New(apperrors.ErrCodeUnknownMatchMode, "unknown match_mode").WithDetail(c.MatchMode.String())
	}
	if !c.CompositeHandling.IsValid() {
		return apperrors.New(apperrors.ErrCodeUnknownCompositeHandling, "unknown composite_handling").
			WithDetail(c.CompositeHandling.String())
	}
	if c.delimiter() == "" {
		return apperrors.Configuration("composite_delimiter must not be empty")
	}
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	if len(c.Stages) == 0 {
		return apperrors.Configuration("pipeline has no stages")
	}

	names := make(map[string]struct{}, len(c.Stages))
	prevRank := -1
	for i, sc := range c.Stages {
		rank, ok := sc.Method.Rank()
		if !ok {
			return apperrors.New(apperrors.ErrCodeUnknownStageMethod, "unknown stage method").
				WithDetail(fmt.Sprintf("stage %d: %q", i+1, sc.Method))
		}
		if rank < prevRank {
			return apperrors.New(apperrors.ErrCodeInvalidStageOrder, "stages must run from cheapest to most expensive").
				WithDetail(fmt.Sprintf("stage %d (%s)", i+1, sc.Method))
		}
		prevRank = rank

		name := sc.name()
		if _, dup := names[name]; dup {
			return apperrors.Configuration("duplicate stage name").WithDetail(name)
		}
		names[name] = struct{}{}

		if sc.CompositeHandling != "" && !sc.CompositeHandling.IsValid() {
			return apperrors.New(apperrors.ErrCodeUnknownCompositeHandling, "unknown composite_handling").
				WithDetail(fmt.Sprintf("stage %d: %q", i+1, sc.CompositeHandling))
		}
		if sc.Method == StageSimilarity {
			if err := c.similarityFor(sc).Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// RequiresResolver reports whether any stage is historical.
func (c Config) RequiresResolver() bool {
	for _, sc := range c.Stages {
		if sc.Method == StageHistorical {
			return true
		}
	}
	return false
}

func (c Config) delimiter() string {
	if c.CompositeDelimiter != "" {
		return c.CompositeDelimiter
	}
	return c.Normalizer.CompositeDelimiter
}

func (c Config) similarityFor(sc StageConfig) matching.SimilarityConfig {
	if sc.Similarity != nil {
		return *sc.Similarity
	}
	return c.Similarity
}

func (sc StageConfig) name() string {
	if sc.Name != "" {
		return sc.Name
	}
	return string(sc.Method)
}

// Dependencies are the collaborators Build wires into stages.
type Dependencies struct {
	// Resolver is required when any stage is historical.
	Resolver *resolution.Resolver
	Logger   logging.Logger
}

// Build validates cfg and assembles an Orchestrator with a configured
// Normalizer.  Every error it returns is a configuration error.
func Build(cfg Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.RequiresResolver() && deps.Resolver == nil {
		return nil, apperrors.Configuration("historical stage configured without a resolver")
	}

	scorer, err := matching.NewScorer(cfg.Scorer)
	if err != nil {
		return nil, err
	}
	ncfg := cfg.Normalizer
	ncfg.CompositeDelimiter = cfg.delimiter()
	normalizer := identifier.NewNormalizer(ncfg, logger)
	matcher := matching.NewMatcher(scorer)

	stages := make([]Stage, 0, len(cfg.Stages))
	for _, sc := range cfg.Stages {
		switch sc.Method {
		case StageDirect:
			stages = append(stages, NewDirectStage(sc.name(), matcher))
		case StageComposite:
			handling := cfg.CompositeHandling
			if sc.CompositeHandling != "" {
				handling = sc.CompositeHandling
			}
			stages = append(stages, NewCompositeStage(sc.name(), matcher, normalizer, handling, logger.Named("composite")))
		case StageHistorical:
			hs := NewHistoricalStage(sc.name(), deps.Resolver, sc.RequireTarget, logger.Named("historical"))
			hs.scorer = scorer
			stages = append(stages, hs)
		case StageSimilarity:
			sm, err := matching.NewSimilarityMatcher(cfg.similarityFor(sc), scorer)
			if err != nil {
				return nil, err
			}
			stages = append(stages, NewSimilarityStage(sc.name(), sm))
		}
	}

	opts = append([]Option{WithLogger(logger), WithNormalizer(normalizer)}, opts...)
	return NewOrchestrator(stages, cfg.MatchMode, opts...)
}

//Personal.AI order the ending
