package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/testutil"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}

func sampleResult() *mapping.Result {
	return &mapping.Result{
		RunID: "run-1",
		State: mapping.State{Phase: mapping.PhaseComplete},
		Matches: []mapping.Match{
			{SourceID: "P12345", TargetID: "P12345", Stage: 1, Method: mapping.MethodDirect, Confidence: 1},
		},
		FinalUnmappedSource: []mapping.Identifier{{Raw: "Q99999"}},
		StageHistory:        []mapping.StageStats{{StageNumber: 1, StageName: "direct", NewMatches: 1, CumulativeMatched: 1}},
	}
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventTypeStageCompleted, "run-1", StageCompletedPayload{RunID: "run-1", Stats: mapping.StageStats{StageNumber: 2}})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "v1", env.SchemaVersion)

	msg, err := env.ToMessage("topic")
	require.NoError(t, err)
	assert.Equal(t, "run-1", string(msg.Key))
	assert.Equal(t, EventTypeStageCompleted, msg.Headers["event_type"])
	assert.Equal(t, "run-1", msg.Headers["run_id"])

	decoded, err := EnvelopeFromMessage(msg)
	require.NoError(t, err)
	var payload StageCompletedPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, 2, payload.Stats.StageNumber)
}

func TestEnvelopeFromMessage_Invalid(t *testing.T) {
	_, err := EnvelopeFromMessage(&Message{})
	assert.Error(t, err)
	_, err = EnvelopeFromMessage(&Message{Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestEventPublisher_PublishStage(t *testing.T) {
	pub := &mockMessagePublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(m *Message) bool {
		return m.Topic == TopicStageCompleted && string(m.Key) == "run-1"
	})).Return(nil).Once()

	p := NewEventPublisher(pub, PublisherConfig{}, testutil.NewMockLogger())
	require.NoError(t, p.PublishStage(context.Background(), "run-1", mapping.StageStats{StageNumber: 1}))
	pub.AssertExpectations(t)
}

func TestEventPublisher_PublishResult(t *testing.T) {
	tests := []struct {
		name           string
		includeMatches bool
		wantMatches    int
	}{
		{"summary only", false, 0},
		{"with matches", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *Message
			pub := &mockMessagePublisher{}
			pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				captured = args.Get(1).(*Message)
			}).Return(nil)

			p := NewEventPublisher(pub, PublisherConfig{ResultTopic: "runs", IncludeMatches: tt.includeMatches}, nil)
			require.NoError(t, p.PublishResult(context.Background(), sampleResult()))
			require.NotNil(t, captured)
			assert.Equal(t, "runs", captured.Topic)

			env, err := EnvelopeFromMessage(captured)
			require.NoError(t, err)
			var payload RunCompletedPayload
			require.NoError(t, env.DecodePayload(&payload))
			assert.Equal(t, mapping.PhaseComplete, payload.State.Phase)
			assert.Equal(t, 1, payload.MatchCount)
			assert.Equal(t, 1, payload.UnmappedSourceCount)
			assert.Len(t, payload.StageHistory, 1)
			assert.Len(t, payload.Matches, tt.wantMatches)
		})
	}
}

func TestEventPublisher_Errors(t *testing.T) {
	pub := &mockMessagePublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(stderrors.New("down"))
	p := NewEventPublisher(pub, PublisherConfig{}, nil)

	assert.Error(t, p.PublishStage(context.Background(), "run-1", mapping.StageStats{}))
	assert.Error(t, p.PublishResult(context.Background(), nil))
}

func TestEventPublisher_WiredIntoOrchestrator(t *testing.T) {
	w := &mockKafkaWriter{}
	publisher := NewEventPublisher(newTestProducer(w), PublisherConfig{}, nil)

	cfg := pipeline.DefaultConfig()
	cfg.Stages = []pipeline.StageConfig{{Name: "direct", Method: pipeline.StageDirect}}
	orch, err := pipeline.Build(cfg, pipeline.Dependencies{}, pipeline.WithPublisher(publisher))
	require.NoError(t, err)

	res, err := orch.RunRaw(context.Background(), []string{"P12345", "Q99999"}, []string{"P12345"}, "src", "tgt")
	require.NoError(t, err)

	msgs := w.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, TopicStageCompleted, msgs[0].Topic)
	assert.Equal(t, TopicRunCompleted, msgs[1].Topic)
	for _, m := range msgs {
		assert.Equal(t, res.RunID, string(m.Key))
	}

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msgs[1].Value, &env))
	assert.Equal(t, EventTypeRunCompleted, env.EventType)
}

//Personal.AI order the ending
