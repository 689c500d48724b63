package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/testutil"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// mockKafkaWriter records written messages.
type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func (m *mockKafkaWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, testutil.NewMockLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProducerConfig)
		wantErr bool
	}{
		{"valid", func(*ProducerConfig) {}, false},
		{"no brokers", func(c *ProducerConfig) { c.Brokers = nil }, true},
		{"negative retries", func(c *ProducerConfig) { c.MaxRetries = -1 }, true},
		{"unknown acks", func(c *ProducerConfig) { c.Acks = "some" }, true},
		{"unknown compression", func(c *ProducerConfig) { c.CompressionCodec = "brotli" }, true},
		{"sasl without credentials", func(c *ProducerConfig) {
			c.Security.SASLEnabled = true
			c.Security.SASLMechanism = "PLAIN"
		}, true},
		{"sasl unknown mechanism", func(c *ProducerConfig) {
			c.Security = SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}
		}, true},
		{"tls without ca", func(c *ProducerConfig) { c.Security.TLSEnabled = true }, true},
		{"tls insecure", func(c *ProducerConfig) {
			c.Security.TLSEnabled = true
			c.Security.TLSInsecure = true
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProducerConfig{Brokers: []string{"localhost:9092"}}
			tt.mutate(&cfg)
			err := ValidateProducerConfig(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsConfiguration(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewProducer_SCRAM(t *testing.T) {
	p, err := NewProducer(ProducerConfig{
		Brokers:  []string{"localhost:9092"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"},
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{Topic: "t", Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"h": "1"}})
	require.NoError(t, err)

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "t", msgs[0].Topic)
	assert.Equal(t, "k", string(msgs[0].Key))
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("1")}}, msgs[0].Headers)
	assert.False(t, msgs[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	p.config.MaxMessageBytes = 4

	assert.Error(t, p.Publish(context.Background(), &Message{Value: []byte("v")}))
	assert.Error(t, p.Publish(context.Background(), &Message{Topic: "t"}))
	assert.Error(t, p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("too large")}))
	assert.Zero(t, p.Sent())
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return stderrors.New("broker down") }}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("v")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.Equal(t, int64(1), p.Failed())
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		errs := make(kafka.WriteErrors, len(msgs))
		errs[1] = stderrors.New("fail")
		return errs
	}}
	p := newTestProducer(w)

	res, err := p.PublishBatch(context.Background(), []*Message{
		{Topic: "t", Value: []byte("1")},
		{Topic: "t", Value: []byte("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestPublishBatch_TotalFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return stderrors.New("down") }}
	p := newTestProducer(w)

	res, err := p.PublishBatch(context.Background(), []*Message{{Topic: "t", Value: []byte("1")}, {Topic: "t", Value: []byte("2")}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, -1, res.Errors[0].Index)

	_, err = p.PublishBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("v")}), ErrProducerClosed)
}

//Personal.AI order the ending
