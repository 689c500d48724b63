package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Port interfaces
// ─────────────────────────────────────────────────────────────────────────────

// Metrics receives per-stage and per-run observations.
type Metrics interface {
	ObserveStage(stats mapping.StageStats, matches []mapping.Match)
	RecordRun(phase mapping.Phase, elapsed time.Duration)
}

// EventPublisher forwards stage statistics and the final Result to
// downstream consumers.  Publication is best effort: errors are logged and
// never change the outcome of a run.
type EventPublisher interface {
	PublishStage(ctx context.Context, runID string, stats mapping.StageStats) error
	PublishResult(ctx context.Context, result *mapping.Result) error
}

// StageObserver is called with every StageResult, in stage order.
type StageObserver func(mapping.StageResult)

type noopMetrics struct{}

func (noopMetrics) ObserveStage(mapping.StageStats, []mapping.Match) {}
func (noopMetrics) RecordRun(mapping.Phase, time.Duration)           {}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithStageObserver registers a callback for every StageResult.
func WithStageObserver(fn StageObserver) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// WithNormalizer sets the normalizer used by RunRaw.
func WithNormalizer(n *identifier.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithSlowStageThreshold sets the elapsed time above which a stage is logged
// at warn level.
func WithSlowStageThreshold(d time.Duration) Option {
	return func(o *Orchestrator) { o.slowStage = d }
}

// withRunIDGenerator replaces uuid generation in tests.
func withRunIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// ─────────────────────────────────────────────────────────────────────────────
// Orchestrator
// ─────────────────────────────────────────────────────────────────────────────

// Orchestrator runs an ordered, validated list of stages.  Each stage sees
// exactly the source identifiers that every earlier stage left unmapped.  An
// Orchestrator holds no per-run state and may run concurrently.
type Orchestrator struct {
	stages     []Stage
	mode       mapping.MatchMode
	normalizer *identifier.Normalizer
	logger     logging.Logger
	metrics    Metrics
	publisher  EventPublisher
	observers  []StageObserver
	slowStage  time.Duration
	newRunID   func() string
}

// NewOrchestrator validates the stage list and match mode.  Configuration
// errors are returned here so that no stage ever starts with them.
func NewOrchestrator(stages []Stage, mode mapping.MatchMode, opts ...Option) (*Orchestrator, error) {
	if !mode.IsValid() {
		return nil, apperrors.New(apperrors.ErrCodeUnknownMatchMode, "unknown match_mode").WithDetail(mode.String())
	}
	if err := validateStages(stages); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		stages:    append([]Stage(nil), stages...),
		mode:      mode,
		logger:    logging.NewNopLogger(),
		metrics:   noopMetrics{},
		slowStage: 10 * time.Second,
		newRunID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("pipeline")
	return o, nil
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// MatchMode returns the configured match mode.
func (o *Orchestrator) MatchMode() mapping.MatchMode { return o.mode }

// RunRaw normalizes the raw source and target values, skipping malformed
// ones, and runs the pipeline over the result.
func (o *Orchestrator) RunRaw(ctx context.Context, source, target []string, sourceDataset, targetDataset string) (*mapping.Result, error) {
	n := o.normalizer
	if n == nil {
		n = identifier.NewNormalizer(identifier.DefaultConfig(), o.logger)
	}
	src, skippedSrc := n.NormalizeAll(source, sourceDataset)
	tgt, skippedTgt := n.NormalizeAll(target, targetDataset)
	if skippedSrc+skippedTgt > 0 {
		o.logger.WithContext(ctx).Warn("malformed identifiers skipped",
			logging.Int("source_skipped", skippedSrc), logging.Int("target_skipped", skippedTgt))
	}
	return o.Run(ctx, src, tgt)
}

// Run executes the stages.  The returned Result is never nil; the error is
// non-nil exactly when the run ends ABORTED.
func (o *Orchestrator) Run(ctx context.Context, source, target []mapping.Identifier) (*mapping.Result, error) {
	runID := o.newRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := o.logger.WithContext(ctx)

	source = dedupeByRaw(source)
	target = dedupeByRaw(target)

	r := &run{
		o:              o,
		ctx:            ctx,
		log:            log,
		pctx:           NewPipelineContext(runID, o.mode, target, len(source)),
		agg:            NewAggregator(len(source)),
		target:         target,
		unmapped:       source,
		seenPairs:      make(map[mapping.MatchKey]struct{}),
		matchedTargets: make(map[string]struct{}),
		result:         &mapping.Result{RunID: runID, Matches: []mapping.Match{}},
		started:        time.Now(),
	}
	r.enter(mapping.State{Phase: mapping.PhasePending})

	log.Info("pipeline started",
		logging.Int("source", len(source)),
		logging.Int("target", len(target)),
		logging.Int("stages", len(o.stages)),
		logging.String("match_mode", o.mode.String()))

	return r.execute()
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-run execution
// ─────────────────────────────────────────────────────────────────────────────

type run struct {
	o    *Orchestrator
	ctx  context.Context
	log  logging.Logger
	pctx *PipelineContext
	agg  *Aggregator

	target         []mapping.Identifier
	unmapped       []mapping.Identifier
	seenPairs      map[mapping.MatchKey]struct{}
	matchedTargets map[string]struct{}

	state   mapping.State
	result  *mapping.Result
	started time.Time
}

func (r *run) execute() (*mapping.Result, error) {
	for i, stage := range r.o.stages {
		n := i + 1
		if len(r.unmapped) == 0 {
			break
		}
		if err := r.ctx.Err(); err != nil {
			return r.abort(0, apperrors.Wrap(err, apperrors.ErrCodePipelineAborted,
				fmt.Sprintf("pipeline aborted before stage %d", n)))
		}
		if err := r.enter(mapping.State{Phase: mapping.PhaseRunning, Stage: n}); err != nil {
			return r.abort(n, err)
		}
		if err := r.runStage(n, stage); err != nil {
			return r.abort(n, err)
		}
		// A stage that outlives its context may have degraded its output.
		if err := r.ctx.Err(); err != nil {
			return r.abort(n, apperrors.Wrap(err, apperrors.ErrCodePipelineAborted,
				fmt.Sprintf("pipeline aborted during stage %d", n)))
		}
	}

	if err := r.enter(mapping.State{Phase: mapping.PhaseComplete}); err != nil {
		return r.abort(0, err)
	}
	r.finish()
	r.log.Info("pipeline complete",
		logging.Int("matches", len(r.result.Matches)),
		logging.Int("unmapped_source", len(r.result.FinalUnmappedSource)),
		logging.Int("stages_run", len(r.result.StageHistory)))
	return r.result, nil
}

func (r *run) runStage(n int, stage Stage) error {
	in := StageInput{
		Number: n,
		Source: append([]mapping.Identifier(nil), r.unmapped...),
		Target: r.target,
		Mode:   r.o.mode,
	}
	fields := logging.Stage(n, stage.Name())

	start := time.Now()
	out, err := stage.Run(r.ctx, r.pctx, in)
	elapsed := time.Since(start)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeStageFailed {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStageFailed, fmt.Sprintf("stage %d (%s) failed", n, stage.Name()))
	}

	accepted, err := r.accept(n, out.Matches)
	if err != nil {
		return err
	}

	matchedSources := make(map[string]struct{}, len(accepted))
	for _, m := range accepted {
		matchedSources[m.SourceID] = struct{}{}
		r.matchedTargets[m.TargetID] = struct{}{}
		r.seenPairs[m.Key()] = struct{}{}
	}
	next := make([]mapping.Identifier, 0, len(r.unmapped))
	for _, id := range r.unmapped {
		if _, hit := matchedSources[id.Raw]; !hit {
			next = append(next, id)
		}
	}

	stats := r.agg.Record(StageRecord{
		Number:      n,
		Name:        stage.Name(),
		Method:      stage.Method(),
		InputCount:  len(in.Source),
		RawMatches:  len(out.Matches),
		Matches:     accepted,
		Elapsed:     elapsed,
		Diagnostics: out.Diagnostics,
	})

	r.unmapped = next
	r.result.Matches = append(r.result.Matches, accepted...)

	sr := mapping.StageResult{
		StageNumber:    n,
		StageName:      stage.Name(),
		Matches:        append([]mapping.Match{}, accepted...),
		UnmappedSource: append([]mapping.Identifier{}, next...),
		UnmappedTarget: r.unmappedTarget(),
		Stats:          stats,
	}
	for _, fn := range r.o.observers {
		fn(sr)
	}
	r.o.metrics.ObserveStage(stats, sr.Matches)
	if r.o.publisher != nil {
		if err := r.o.publisher.PublishStage(r.ctx, r.pctx.RunID(), stats); err != nil {
			r.log.Warn("stage event publish failed", append(fields, logging.Err(err))...)
		}
	}

	logging.LogStageDuration(r.log, "stage "+stage.Name(), start, r.o.slowStage,
		append(fields,
			logging.Int("input", stats.InputCount),
			logging.Int("new_matches", stats.NewMatches),
			logging.Int("cumulative_matched", stats.CumulativeMatched),
			logging.Float64("coverage", stats.CumulativeCoverage))...)
	return nil
}

// accept validates a stage's matches against its input and deduplicates
// them.  In one_to_one mode only the highest-confidence match per source
// survives, ties going to the first emitted.
func (r *run) accept(n int, matches []mapping.Match) ([]mapping.Match, error) {
	input := make(map[string]struct{}, len(r.unmapped))
	for _, id := range r.unmapped {
		input[id.Raw] = struct{}{}
	}

	accepted := make([]mapping.Match, 0, len(matches))
	stagePairs := make(map[mapping.MatchKey]struct{}, len(matches))
	bySource := make(map[string]int)

	for _, m := range matches {
		if _, ok := input[m.SourceID]; !ok {
			return nil, apperrors.InvariantViolation("stage matched a source outside its input").
				WithDetail(fmt.Sprintf("stage=%d source=%s", n, m.SourceID))
		}
		if m.Stage != n {
			return nil, apperrors.InvariantViolation("match carries wrong stage number").
				WithDetail(fmt.Sprintf("stage=%d match_stage=%d", n, m.Stage))
		}
		if m.TargetID == "" {
			return nil, apperrors.InvariantViolation("match has empty target").
				WithDetail(fmt.Sprintf("stage=%d source=%s", n, m.SourceID))
		}
		if math.IsNaN(m.Confidence) || m.Confidence < 0 || m.Confidence > 1 {
			return nil, apperrors.InvariantViolation("match confidence outside [0,1]").
				WithDetail(fmt.Sprintf("stage=%d source=%s confidence=%v", n, m.SourceID, m.Confidence))
		}

		key := m.Key()
		if _, dup := r.seenPairs[key]; dup {
			continue
		}
		if _, dup := stagePairs[key]; dup {
			continue
		}
		stagePairs[key] = struct{}{}

		if r.o.mode == mapping.MatchModeOneToOne {
			if idx, ok := bySource[m.SourceID]; ok {
				if m.Confidence > accepted[idx].Confidence {
					accepted[idx] = m
				}
				continue
			}
			bySource[m.SourceID] = len(accepted)
		}
		accepted = append(accepted, m)
	}
	return accepted, nil
}

func (r *run) unmappedTarget() []mapping.Identifier {
	out := make([]mapping.Identifier, 0, len(r.target))
	for _, t := range r.target {
		if _, hit := r.matchedTargets[t.Raw]; !hit {
			out = append(out, t)
		}
	}
	return out
}

func (r *run) abort(failedStage int, err error) (*mapping.Result, error) {
	// ABORTED is reachable from every non-terminal state.
	_ = r.enter(mapping.State{Phase: mapping.PhaseAborted})
	r.result.FailedStage = failedStage
	r.result.Error = err.Error()
	r.finish()
	r.log.WithError(err).Error("pipeline aborted",
		logging.Int("failed_stage", failedStage),
		logging.Int("stages_completed", len(r.result.StageHistory)))
	return r.result, err
}

func (r *run) finish() {
	r.result.State = r.state
	r.result.StageHistory = r.agg.Snapshot()
	r.result.FinalUnmappedSource = append([]mapping.Identifier{}, r.unmapped...)
	r.result.FinalUnmappedTarget = r.unmappedTarget()
	r.o.metrics.RecordRun(r.state.Phase, time.Since(r.started))

	if r.o.publisher != nil {
		// The run context may already be cancelled; publication is detached
		// from it but keeps a bound.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 5*time.Second)
		defer cancel()
		if err := r.o.publisher.PublishResult(pubCtx, r.result); err != nil {
			r.log.Warn("result event publish failed", logging.Err(err))
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// State machine
// ─────────────────────────────────────────────────────────────────────────────

// enter moves the run to next, rejecting transitions the state machine does
// not allow:
//
//	PENDING          -> RUNNING_STAGE(1) | COMPLETE | ABORTED
//	RUNNING_STAGE(n) -> RUNNING_STAGE(n+1) | COMPLETE | ABORTED
func (r *run) enter(next mapping.State) error {
	if !validTransition(r.state, next) {
		return apperrors.InvariantViolation("illegal state transition").
			WithDetail(r.state.String() + " -> " + next.String())
	}
	r.state = next
	r.pctx.recordTransition(next)
	return nil
}

func validTransition(from, to mapping.State) bool {
	switch from.Phase {
	case "":
		return to.Phase == mapping.PhasePending
	case mapping.PhasePending:
		switch to.Phase {
		case mapping.PhaseRunning:
			return to.Stage == 1
		case mapping.PhaseComplete, mapping.PhaseAborted:
			return true
		}
	case mapping.PhaseRunning:
		switch to.Phase {
		case mapping.PhaseRunning:
			return to.Stage == from.Stage+1
		case mapping.PhaseComplete, mapping.PhaseAborted:
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func validateStages(stages []Stage) error {
	if len(stages) == 0 {
		return apperrors.Configuration("pipeline has no stages")
	}
	names := make(map[string]struct{}, len(stages))
	prevRank := -1
	for i, s := range stages {
		if s == nil {
			return apperrors.Configuration(fmt.Sprintf("stage %d is nil", i+1))
		}
		if _, dup := names[s.Name()]; dup {
			return apperrors.Configuration("duplicate stage name").WithDetail(s.Name())
		}
		names[s.Name()] = struct{}{}

		rank, ok := s.Method().Rank()
		if !ok {
			return apperrors.New(apperrors.ErrCodeUnknownStageMethod, "unknown stage method").
				WithDetail(string(s.Method()))
		}
		if rank < prevRank {
			return apperrors.New(apperrors.ErrCodeInvalidStageOrder, "stages must run from cheapest to most expensive").
				WithDetail(fmt.Sprintf("stage %d (%s) after a more expensive stage", i+1, s.Method()))
		}
		prevRank = rank
	}
	return nil
}

func dedupeByRaw(ids []mapping.Identifier) []mapping.Identifier {
	out := make([]mapping.Identifier, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id.Raw]; dup {
			continue
		}
		seen[id.Raw] = struct{}{}
		out = append(out, id)
	}
	return out
}

//Personal.AI order the ending
