package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/testutil"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// mockKafkaReader serves queued messages, then blocks until cancelled.
type mockKafkaReader struct {
	queue     chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func newMockKafkaReader(msgs ...kafka.Message) *mockKafkaReader {
	r := &mockKafkaReader{queue: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *mockKafkaReader) Close() error {
	r.closed = true
	return nil
}

func (r *mockKafkaReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "biomapper-test",
		Topics:  []string{TopicRunCompleted},
		Retry:   RetryConfig{RetryBackoff: time.Millisecond},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConsumerConfig)
	}{
		{"no brokers", func(c *ConsumerConfig) { c.Brokers = nil }},
		{"no group", func(c *ConsumerConfig) { c.GroupID = "" }},
		{"no topics", func(c *ConsumerConfig) { c.Topics = nil }},
		{"bad offset reset", func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" }},
		{"negative retries", func(c *ConsumerConfig) { c.Retry.MaxRetries = -1 }},
	}
	require.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConsumerConfig()
			tt.mutate(&cfg)
			assert.True(t, errors.IsConfiguration(ValidateConsumerConfig(cfg)))
		})
	}
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := newMockKafkaReader(
		kafka.Message{Topic: TopicRunCompleted, Value: []byte("a"), Headers: []kafka.Header{{Key: "run_id", Value: []byte("r1")}}},
		kafka.Message{Topic: "unknown", Value: []byte("b")},
	)
	logger := testutil.NewMockLogger()
	c := newConsumerWithReader(reader, newTestConsumerConfig(), logger)

	got := make(chan *Message, 1)
	c.Subscribe(TopicRunCompleted, func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case msg := <-got:
		assert.Equal(t, "a", string(msg.Value))
		assert.Equal(t, "r1", msg.Headers["run_id"])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, int64(1), c.Processed())
	assert.True(t, logger.HasMessage("warn", "no handler for topic"))
}

func TestConsumer_RetryThenSuccess(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.Retry.MaxRetries = 2
	c := newConsumerWithReader(newMockKafkaReader(), cfg, testutil.NewMockLogger())

	attempts := 0
	err := c.process(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return stderrors.New("fail")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestConsumer_DeadLetter(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.DeadLetterTopic = TopicDeadLetter

	dl := &mockMessagePublisher{}
	dl.On("Publish", mock.Anything, mock.MatchedBy(func(m *Message) bool {
		return m.Topic == TopicDeadLetter &&
			m.Headers["original_topic"] == "t" &&
			m.Headers["error_message"] == "boom" &&
			m.Headers["run_id"] == "r1"
	})).Return(nil).Once()

	c := newConsumerWithReader(newMockKafkaReader(), cfg, testutil.NewMockLogger())
	c.deadLetter = dl

	src := &Message{Topic: "t", Value: []byte("v"), Headers: map[string]string{"run_id": "r1"}}
	err := c.process(context.Background(), src, func(context.Context, *Message) error { return stderrors.New("boom") })
	assert.EqualError(t, err, "boom")
	assert.Equal(t, int64(1), c.DeadLettered())
	assert.NotContains(t, src.Headers, "original_topic")
	dl.AssertExpectations(t)
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	c := newConsumerWithReader(newMockKafkaReader(), newTestConsumerConfig(), testutil.NewMockLogger())
	assert.NoError(t, c.Close())
}

//Personal.AI order the ending
