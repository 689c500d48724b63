package kafka

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// TopicSpec describes a topic to create.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the event topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(ctx context.Context, brokers []string, sec SecurityConfig, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.Configuration("kafka brokers required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tlsConfig, err := sec.tlsConfig()
	if err != nil {
		return nil, err
	}
	mech, err := sec.saslMechanism()
	if err != nil {
		return nil, err
	}
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, TLS: tlsConfig, SASLMechanism: mech}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka").WithDetail(brokers[0])
	}
	return &TopicManager{conn: conn, logger: logger.Named("kafka-topics")}, nil
}

// CreateTopic creates topic unless it already exists.
func (m *TopicManager) CreateTopic(ctx context.Context, topic TopicSpec) error {
	if topic.Name == "" {
		return errors.InvalidParam("topic name required")
	}
	if topic.NumPartitions <= 0 || topic.ReplicationFactor <= 0 {
		return errors.InvalidParam("partitions and replication factor must be > 0").WithDetail(topic.Name)
	}

	cfg := kafka.TopicConfig{
		Topic:             topic.Name,
		NumPartitions:     topic.NumPartitions,
		ReplicationFactor: topic.ReplicationFactor,
	}
	if topic.RetentionMs > 0 {
		cfg.ConfigEntries = append(cfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(topic.RetentionMs, 10)})
	}
	if topic.CleanupPolicy != "" {
		cfg.ConfigEntries = append(cfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: topic.CleanupPolicy})
	}

	if err := m.conn.CreateTopics(cfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, topic.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic").WithDetail(topic.Name)
	}
	m.logger.Info("topic created", logging.String("topic", topic.Name))
	return nil
}

// TopicExists reports whether name has at least one partition.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in order and stops at the first failure.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicSpec) error {
	for _, t := range topics {
		if err := m.CreateTopic(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error { return m.conn.Close() }

// DefaultTopics returns the event topics for the configured names.
func DefaultTopics(cfg PublisherConfig, replication int) []TopicSpec {
	if replication <= 0 {
		replication = 1
	}
	const day = int64(24 * 3600 * 1000)
	stage, result := cfg.StageTopic, cfg.ResultTopic
	if stage == "" {
		stage = TopicStageCompleted
	}
	if result == "" {
		result = TopicRunCompleted
	}
	return []TopicSpec{
		{Name: stage, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 3 * day},
		{Name: result, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}

//Personal.AI order the ending
