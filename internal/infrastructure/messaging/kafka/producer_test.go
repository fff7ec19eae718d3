package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/DexAtlas/pkg/errors"
)

// mockKafkaWriter
type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func newTestProducerConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		Topic:        "dexatlas.dataset.released",
		RequiredAcks: -1,
	}
}

func newTestProducer(w WriterInterface) *Producer {
	return NewProducerWithWriter(w, newTestProducerConfig(), logging.NewNopLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	cfg := newTestProducerConfig()
	assert.NoError(t, ValidateProducerConfig(cfg))

	cfg.Brokers = nil
	assert.True(t, apperrors.IsCode(ValidateProducerConfig(cfg), apperrors.ErrCodeConfig))

	cfg = newTestProducerConfig()
	cfg.RequiredAcks = 2
	assert.Error(t, ValidateProducerConfig(cfg))
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	w := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	}
	p := newTestProducer(w)
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "test", Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "test", captured[0].Topic)
	assert.Equal(t, "k", string(captured[0].Key))
	assert.False(t, captured[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Value: []byte("v")}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t"}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: make([]byte, maxMessageBytes+1)}))
}

func TestPublish_Failure(t *testing.T) {
	w := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("write failed")
		},
	}
	p := newTestProducer(w)
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessageQueue))
	assert.Equal(t, int64(1), p.metrics.MessagesFailed.Load())
}

func TestClose(t *testing.T) {
	calls := 0
	p := newTestProducer(&mockKafkaWriter{closeFunc: func() error { calls++; return nil }})
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, calls)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewProducerWithWriter_NilLogger(t *testing.T) {
	assert.Panics(t, func() { NewProducerWithWriter(&mockKafkaWriter{}, newTestProducerConfig(), nil) })
}

//Personal.AI order the ending
