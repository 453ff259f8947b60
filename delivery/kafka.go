package delivery

import (
	"context"
	"strings"

	"newsdesk/secrets"
	"newsdesk/shared/kafka"

	"github.com/IBM/sarama"
)

// KafkaTransport publishes the payload keyed by client id.
// Credentials: brokers (comma separated), topic.
type KafkaTransport struct {
	pub *kafka.Publisher
}

func NewKafkaTransport(ctx context.Context, creds secrets.Credentials) (Transport, error) {
	return newKafkaTransport(creds, kafka.NewSyncProducer)
}

func newKafkaTransport(creds secrets.Credentials, newProducer func([]string) (sarama.SyncProducer, error)) (Transport, error) {
	if err := creds.Require("brokers", "topic"); err != nil {
		return nil, err
	}
	var brokers []string
	for _, b := range strings.Split(creds["brokers"], ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	p, err := newProducer(brokers)
	if err != nil {
		return nil, err
	}
	return &KafkaTransport{pub: kafka.NewPublisher(p, creds["topic"])}, nil
}

func (t *KafkaTransport) Send(ctx context.Context, msg Message) error {
	return t.pub.Publish(ctx, msg.ClientID, msg.Body)
}

// Close releases the producer
func (t *KafkaTransport) Close() error {
	return t.pub.Close()
}
