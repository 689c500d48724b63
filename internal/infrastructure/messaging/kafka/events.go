package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// Default topics.
const (
	TopicStageCompleted = "biomapper.stage.completed"
	TopicRunCompleted   = "biomapper.run.completed"
	TopicDeadLetter     = "biomapper.dead_letter"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventTypeStageCompleted = "stage.completed"
	EventTypeRunCompleted   = "run.completed"
)

const (
	sourceService = "biomapper"
	schemaVersion = "v1"
	headerRunID   = "run_id"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	RunID         string            `json:"run_id"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StageCompletedPayload is published after every stage.
type StageCompletedPayload struct {
	RunID string             `json:"run_id"`
	Stats mapping.StageStats `json:"stats"`
}

// RunCompletedPayload summarizes a finished or aborted run.  Matches are
// included only when the publisher is configured to do so.
type RunCompletedPayload struct {
	RunID               string               `json:"run_id"`
	State               mapping.State        `json:"state"`
	MatchCount          int                  `json:"match_count"`
	UnmappedSourceCount int                  `json:"unmapped_source_count"`
	UnmappedTargetCount int                  `json:"unmapped_target_count"`
	FailedStage         int                  `json:"failed_stage,omitempty"`
	Error               string               `json:"error,omitempty"`
	StageHistory        []mapping.StageStats `json:"stage_history"`
	Matches             []mapping.Match      `json:"matches,omitempty"`
}

// NewEventEnvelope wraps payload as JSON.
func NewEventEnvelope(eventType, runID string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        sourceService,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		RunID:         runID,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.  An empty payload is
// left untouched.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload").WithDetail(e.EventType)
	}
	return nil
}

// ToMessage encodes the envelope for topic, keyed by run id.
func (e *EventEnvelope) ToMessage(topic string) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	return &Message{
		Topic: topic,
		Key:   []byte(e.RunID),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
			headerRunID:      e.RunID,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// EnvelopeFromMessage decodes a consumed message.
func EnvelopeFromMessage(msg *Message) (*EventEnvelope, error) {
	if msg == nil || len(msg.Value) == 0 {
		return nil, errors.InvalidParam("empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event envelope")
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// EventPublisher
// ─────────────────────────────────────────────────────────────────────────────

// MessagePublisher is the subset of Producer used by EventPublisher.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// PublisherConfig selects topics and payload detail.
type PublisherConfig struct {
	StageTopic     string `mapstructure:"stage_topic" yaml:"stage_topic"`
	ResultTopic    string `mapstructure:"result_topic" yaml:"result_topic"`
	IncludeMatches bool   `mapstructure:"include_matches" yaml:"include_matches"`
}

// EventPublisher implements pipeline.EventPublisher on top of a Producer.
type EventPublisher struct {
	producer MessagePublisher
	cfg      PublisherConfig
	logger   logging.Logger
}

// NewEventPublisher fills empty topics with the defaults.
func NewEventPublisher(producer MessagePublisher, cfg PublisherConfig, logger logging.Logger) *EventPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.StageTopic == "" {
		cfg.StageTopic = TopicStageCompleted
	}
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = TopicRunCompleted
	}
	return &EventPublisher{producer: producer, cfg: cfg, logger: logger.Named("events")}
}

// PublishStage emits a stage.completed event.
func (p *EventPublisher) PublishStage(ctx context.Context, runID string, stats mapping.StageStats) error {
	env, err := NewEventEnvelope(EventTypeStageCompleted, runID, StageCompletedPayload{RunID: runID, Stats: stats})
	if err != nil {
		return err
	}
	return p.send(ctx, env, p.cfg.StageTopic)
}

// PublishResult emits a run.completed event.
func (p *EventPublisher) PublishResult(ctx context.Context, result *mapping.Result) error {
	if result == nil {
		return errors.InvalidParam("nil result")
	}
	payload := RunCompletedPayload{
		RunID:               result.RunID,
		State:               result.State,
		MatchCount:          len(result.Matches),
		UnmappedSourceCount: len(result.FinalUnmappedSource),
		UnmappedTargetCount: len(result.FinalUnmappedTarget),
		FailedStage:         result.FailedStage,
		Error:               result.Error,
		StageHistory:        result.StageHistory,
	}
	if p.cfg.IncludeMatches {
		payload.Matches = result.Matches
	}
	env, err := NewEventEnvelope(EventTypeRunCompleted, result.RunID, payload)
	if err != nil {
		return err
	}
	return p.send(ctx, env, p.cfg.ResultTopic)
}

func (p *EventPublisher) send(ctx context.Context, env *EventEnvelope, topic string) error {
	msg, err := env.ToMessage(topic)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published",
		logging.String("event_type", env.EventType),
		logging.String("run_id", env.RunID),
		logging.String("topic", topic))
	return nil
}

var _ pipeline.EventPublisher = (*EventPublisher)(nil)

//Personal.AI order the ending
