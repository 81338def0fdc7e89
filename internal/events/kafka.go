package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	publishAttempts = 2
	publishTimeout  = 2 * time.Second
)

// KafkaPublisher writes each event as one JSON message keyed by user ID.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for topic on the given brokers.
// The Hash balancer keeps one member's events on one partition, in order.
// Writes happen on the request path, so attempts and timeout are kept small.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            publishAttempts,
			WriteTimeout:           publishTimeout,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encoding %s: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(e.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: writing %s to kafka: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes broker connections.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
