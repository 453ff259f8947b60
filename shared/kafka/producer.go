package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// NewSyncProducer creates a sarama producer that waits for broker acks
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return p, nil
}

// Publisher sends keyed messages to a fixed topic
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish sends one message and returns once the broker acknowledged it
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the underlying producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
