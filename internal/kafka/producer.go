package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/models"
)

// EventType names what happened to an embedding.
type EventType string

const (
	EventEmbeddingUpserted EventType = "embedding.upserted"
	EventEmbeddingDeleted  EventType = "embedding.deleted"
)

// EmbeddingEvent is published after every successful store write.
type EmbeddingEvent struct {
	EventID    string            `json:"event_id"`
	Type       EventType         `json:"type"`
	EntityType models.EntityType `json:"entity_type"`
	SourceID   string            `json:"source_id"`
	At         time.Time         `json:"at"`
}

func NewEmbeddingEvent(t EventType, entityType models.EntityType, sourceID string) EmbeddingEvent {
	return EmbeddingEvent{
		EventID:    uuid.NewString(),
		Type:       t,
		EntityType: entityType,
		SourceID:   sourceID,
		At:         time.Now().UTC(),
	}
}

// Producer publishes embedding events.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducerConfig mirrors the settings used for every producer here.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p := NewProducerWith(producer, topic, logger)
	p.logger.Info("Kafka producer ready", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return p, nil
}

// NewProducerWith wraps an existing SyncProducer.
func NewProducerWith(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger.Named("kafka_producer"),
	}
}

// PublishEmbeddingEvent sends the event keyed by "<entityType>:<sourceID>" so
// events for one record stay ordered on one partition.
func (p *Producer) PublishEmbeddingEvent(ctx context.Context, evt EmbeddingEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode embedding event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(string(evt.EntityType) + ":" + evt.SourceID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(evt.Type)},
			{Key: []byte("event_id"), Value: []byte(evt.EventID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send embedding event: %w", err)
	}

	p.logger.Debug("Embedding event published",
		zap.String("type", string(evt.Type)),
		zap.String("source_id", evt.SourceID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// RetryMessage wraps a message whose handler failed.
type RetryMessage struct {
	OriginalTopic string          `json:"original_topic"`
	OriginalKey   string          `json:"original_key"`
	Data          json.RawMessage `json:"data"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
}

// SendRetryMessage parks a failed message on "<topic>.retry".
func (p *Producer) SendRetryMessage(topic, key string, data []byte, retryCount int, lastError string) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}
	raw := json.RawMessage(data)
	if !json.Valid(data) {
		quoted, _ := json.Marshal(string(data))
		raw = quoted
	}
	retryData, err := json.Marshal(RetryMessage{
		OriginalTopic: topic,
		OriginalKey:   key,
		Data:          raw,
		RetryCount:    retryCount,
		LastError:     lastError,
	})
	if err != nil {
		return fmt.Errorf("encode retry message: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic + ".retry",
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(retryData),
	})
	return err
}

func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
