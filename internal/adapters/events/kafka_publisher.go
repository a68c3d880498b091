package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Campaign lifecycle events batch within this window before hitting the
// broker; dispatch volume is low, so favor latency over batch size.
const publishBatchTimeout = 100 * time.Millisecond

// KafkaPublisher fans campaign lifecycle events (campaign.filled,
// campaign.escalated, campaign.expired, campaign.cancelled) out to the
// broker. Messages are keyed by assignment ID, so every event for one
// assignment lands on the same partition in order.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("campaign event publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: publishBatchTimeout,
		},
		topicByEvent: topicByEvent,
	}, nil
}

// Publish writes one campaign event. Event types without a configured topic
// mapping publish to a topic named after the event type itself.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic := eventType
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		topic = mapped
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
