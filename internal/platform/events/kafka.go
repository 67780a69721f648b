package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by odontogram id.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher creates a writer for topic. Messages are hashed on their
// key so every event of one chart lands on the same partition.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt ContributionRecorded) error {
	raw, err := evt.encode()
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Key()),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "action_type", Value: []byte(evt.ActionType)},
		},
	})
}

func (p *KafkaPublisher) Backend() string { return "kafka" }

func (p *KafkaPublisher) Close() error { return p.w.Close() }
