package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/models"
)

// MessageHandler processes one message. A returned error sends the message
// to the retry topic when a retry producer is set. Otherwise, or when
// parking fails, the message is retried in place and later offsets on the
// partition wait for it.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer dispatches messages to per-topic handlers.
type Consumer struct {
	group    sarama.ConsumerGroup
	topics   []string
	handlers map[string]MessageHandler
	retry    *Producer
	logger   *zap.Logger

	retryDelay    time.Duration
	maxRetryDelay time.Duration

	mu sync.RWMutex
	wg sync.WaitGroup
}

func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0
	return config
}

func NewConsumer(brokers []string, groupID string, topics []string, logger *zap.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	c := NewConsumerWith(group, topics, logger)
	c.logger.Info("Kafka consumer ready",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.Strings("topics", topics))
	return c, nil
}

// NewConsumerWith wraps an existing consumer group.
func NewConsumerWith(group sarama.ConsumerGroup, topics []string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		group:    group,
		topics:   topics,
		handlers: make(map[string]MessageHandler),
		logger:   logger.Named("kafka_consumer"),

		retryDelay:    time.Second,
		maxRetryDelay: 30 * time.Second,
	}
}

func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Kafka handler registered", zap.String("topic", topic))
}

// SetRetryProducer enables parking failed messages on "<topic>.retry".
func (c *Consumer) SetRetryProducer(p *Producer) {
	c.retry = p
}

func (c *Consumer) handler(topic string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, &consumerGroupHandler{consumer: c}); err != nil {
			if stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("Kafka consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("Kafka consumer stopped")
			return
		}
	}
}

func (c *Consumer) Close() error {
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// dispatch returns true when the message may be marked as consumed. It
// returns false only when ctx ends before the message was handled or parked.
func (c *Consumer) dispatch(ctx context.Context, message *sarama.ConsumerMessage) bool {
	handler, ok := c.handler(message.Topic)
	if !ok {
		c.logger.Warn("No handler for topic", zap.String("topic", message.Topic))
		return true
	}

	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := handler(ctx, message)
		if err == nil {
			return true
		}

		c.logger.Error("Kafka message failed",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if c.retry != nil {
			rerr := c.retry.SendRetryMessage(message.Topic, string(message.Key), message.Value, attempt, err.Error())
			if rerr == nil {
				return true
			}
			c.logger.Error("Failed to park message on retry topic", zap.Error(rerr))
		}

		select {
		case <-ctx.Done():
			c.logger.Warn("Leaving failed message uncommitted",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset))
			return false
		case <-time.After(delay):
		}
		if delay *= 2; delay > c.maxRetryDelay {
			delay = c.maxRetryDelay
		}
	}
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if !h.consumer.dispatch(session.Context(), message) {
				return nil
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ChangeAction is what the main backend did to an entity.
type ChangeAction string

const (
	ActionUpserted ChangeAction = "upserted"
	ActionDeleted  ChangeAction = "deleted"
)

// EntityChange is consumed from the entity-changes topic.
type EntityChange struct {
	EntityType models.EntityType `json:"entity_type"`
	SourceID   string            `json:"source_id"`
	Action     ChangeAction      `json:"action"`
}

func ParseEntityChange(data []byte) (*EntityChange, error) {
	var msg EntityChange
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode entity change: %w", err)
	}
	if !msg.EntityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", msg.EntityType)
	}
	if msg.SourceID == "" {
		return nil, fmt.Errorf("entity change without source_id")
	}
	if msg.Action != ActionUpserted && msg.Action != ActionDeleted {
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
