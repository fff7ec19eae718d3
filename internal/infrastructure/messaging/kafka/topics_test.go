package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	closeFunc  func() error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func newTestTopicManager(conn ConnInterface) *TopicManager {
	return &TopicManager{conn: conn, logger: logging.NewNopLogger()}
}

func TestCreateTopic(t *testing.T) {
	var created []kafka.TopicConfig
	conn := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			created = append(created, topics...)
			return nil
		},
	}
	m := newTestTopicManager(conn)
	require.NoError(t, m.CreateTopic(context.Background(), ReleaseTopic("releases")))
	require.Len(t, created, 1)
	assert.Equal(t, "releases", created[0].Topic)
	assert.Equal(t, "retention.ms", created[0].ConfigEntries[0].ConfigName)

	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x"}))
}

func TestCreateTopic_Exists(t *testing.T) {
	conn := &mockKafkaConn{
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: topics[0]}}, nil
		},
		createFunc: func(topics ...kafka.TopicConfig) error {
			return errors.New("should not be called")
		},
	}
	assert.NoError(t, newTestTopicManager(conn).CreateTopic(context.Background(), ReleaseTopic("releases")))
}

func TestPublishReleased(t *testing.T) {
	var captured kafka.Message
	w := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs[0]
			return nil
		},
	}
	p := newTestProducer(w)
	payload := DatasetReleasedPayload{
		RunID:      "run-1",
		NRecords:   12,
		Checksums:  map[string]string{"trials_curated.json": "abc"},
		ReleasedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	env, err := p.PublishReleased(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, EventDatasetReleased, env.EventType)
	assert.Equal(t, "dexatlas.dataset.released", captured.Topic)
	assert.Equal(t, "run-1", string(captured.Key))

	decoded, err := DecodeEnvelope(captured.Value)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	var got DatasetReleasedPayload
	require.NoError(t, decoded.DecodePayload(&got))
	assert.Equal(t, payload, got)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte("{"))
	assert.Error(t, err)

	env := &EventEnvelope{}
	assert.Error(t, env.DecodePayload(&DatasetReleasedPayload{}))
}

//Personal.AI order the ending
