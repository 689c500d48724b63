package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// normalize runs raws through the default normalizer.
func normalize(t *testing.T, raws ...string) []mapping.Identifier {
	t.Helper()
	n := identifier.NewNormalizer(identifier.DefaultConfig(), logging.NewNopLogger())
	out, skipped := n.NormalizeAll(raws, "test")
	require.Zero(t, skipped)
	return out
}

func raws(ids []mapping.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Raw
	}
	return out
}

// historyAuthority answers from a fixed entry list.
type historyAuthority struct {
	entries []resolution.Entry
}

func (historyAuthority) Name() string { return "history" }

func (a historyAuthority) Lookup(_ context.Context, ids []string) ([]resolution.Entry, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []resolution.Entry
	for _, e := range a.entries {
		hit := false
		if _, ok := want[e.Primary]; ok {
			hit = true
		}
		for _, s := range e.Secondary {
			if _, ok := want[s]; ok {
				hit = true
			}
		}
		if hit {
			out = append(out, e)
		}
	}
	return out, nil
}

func uniprotHistory() historyAuthority {
	return historyAuthority{entries: []resolution.Entry{
		{Primary: "P12345", Secondary: []string{"Q99895"}},
		{Primary: "P0DOY2", Secondary: []string{"P0CG05"}},
		{Primary: "P0DOY3", Secondary: []string{"P0CG05"}},
	}}
}

func newTestResolver(t *testing.T, auth resolution.Authority) *resolution.Resolver {
	t.Helper()
	r, err := resolution.NewResolver(auth, resolution.DefaultConfig(),
		resolution.WithRetryPolicy(resolution.RetryPolicy{MaxRetries: 0}))
	require.NoError(t, err)
	return r
}

// scriptedStage returns whatever run produces and records its inputs.
type scriptedStage struct {
	name   string
	method StageMethod
	run    func(ctx context.Context, in StageInput) (StageOutput, error)

	mu     sync.Mutex
	inputs [][]string
	pctx   *PipelineContext
}

func (s *scriptedStage) Name() string        { return s.name }
func (s *scriptedStage) Method() StageMethod { return s.method }

func (s *scriptedStage) Run(ctx context.Context, pctx *PipelineContext, in StageInput) (StageOutput, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, raws(in.Source))
	s.pctx = pctx
	s.mu.Unlock()
	if s.run == nil {
		return StageOutput{}, nil
	}
	return s.run(ctx, in)
}

func (s *scriptedStage) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

// matchEvery returns a stage body that matches each listed source to target
// with the given confidence.
func matchEvery(pairs map[string]string, confidence float64) func(context.Context, StageInput) (StageOutput, error) {
	return func(_ context.Context, in StageInput) (StageOutput, error) {
		var out StageOutput
		for _, src := range in.Source {
			if tgt, ok := pairs[src.Raw]; ok {
				out.Matches = append(out.Matches, mapping.Match{
					SourceID: src.Raw, TargetID: tgt, Stage: in.Number,
					Method: mapping.MethodDirect, Confidence: confidence,
				})
			}
		}
		return out, nil
	}
}

// mockPublisher is a testify mock of EventPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishStage(ctx context.Context, runID string, stats mapping.StageStats) error {
	return m.Called(ctx, runID, stats).Error(0)
}

func (m *mockPublisher) PublishResult(ctx context.Context, result *mapping.Result) error {
	return m.Called(ctx, result).Error(0)
}

// recordingMetrics captures observations.
type recordingMetrics struct {
	mu     sync.Mutex
	stages []mapping.StageStats
	runs   []mapping.Phase
}

func (m *recordingMetrics) ObserveStage(stats mapping.StageStats, _ []mapping.Match) {
	m.mu.Lock()
	m.stages = append(m.stages, stats)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordRun(phase mapping.Phase, _ time.Duration) {
	m.mu.Lock()
	m.runs = append(m.runs, phase)
	m.mu.Unlock()
}

//Personal.AI order the ending
