package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

// MessageHandler defines the interface for handling consumed messages
type MessageHandler interface {
	// HandleMessage processes a Kafka message and returns whether to mark it as processed.
	// An unmarked message is redelivered after the next rebalance.
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer handles Kafka message consumption with pluggable message handling
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	topic    string
	groupID  string
	ready    chan bool
	log      *slog.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Log     *slog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}
	return newConsumer(client, config), nil
}

func newConsumer(group sarama.ConsumerGroup, config ConsumerConfig) *Consumer {
	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		consumer: group,
		handler:  config.Handler,
		topic:    config.Topic,
		groupID:  config.GroupID,
		ready:    make(chan bool),
		log:      log.With("topic", config.Topic, "group", config.GroupID),
	}
}

// Start joins the group and returns once the first session is set up
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		messageHandler: c.handler,
		ready:          c.ready,
		log:            c.log,
	}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					c.log.Info("kafka consumer stopped")
					return
				}
				c.log.Error("kafka consumer error", "error", err)
			}

			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("kafka consumer started")

	go func() {
		for err := range c.consumer.Errors() {
			c.log.Error("kafka consumer error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	c.log.Info("closing kafka consumer")
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messageHandler MessageHandler
	ready          chan bool
	log            *slog.Logger
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages()
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			h.log.Debug("received kafka message",
				"partition", message.Partition, "offset", message.Offset, "key", string(message.Key))

			shouldMark, err := h.messageHandler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.log.Error("failed to handle message", "offset", message.Offset, "error", err)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing them
type TypedMessageHandler[T any] struct {
	// Validate checks if the message should be processed
	Validate func(msg *T) bool
	// Process handles the actual message processing
	Process func(ctx context.Context, msg *T) error
	// AlwaysMark determines if messages should be marked even on validation failure
	AlwaysMark bool
	Log        *slog.Logger
}

// HandleMessage implements MessageHandler interface
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		if h.Log != nil {
			h.Log.Warn("failed to unmarshal message", "error", err)
		}
		return h.AlwaysMark, nil
	}

	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}

	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
