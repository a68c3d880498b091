package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// A poll drains at most one read timeout's worth of silence before
	// returning whatever it has; the worker ticks again shortly after.
	pollReadTimeout = 250 * time.Millisecond
	fetchMaxWait    = 500 * time.Millisecond
	fetchMaxBytes   = 10e6
)

// KafkaConsumer tails the roster's assignment event topics for the dispatch
// consumer group. It starts from the earliest uncommitted offset: a
// cancellation published while the worker was down must still invalidate its
// campaign, not be skipped.
type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("roster event consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("roster event consumer requires a group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("roster event consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    fetchMaxBytes,
		MaxWait:     fetchMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	return &KafkaConsumer{reader: reader}, nil
}

// Poll reads up to max messages, returning early once the topic goes quiet
// for a read timeout. A short poll is normal, not an error.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	batch := make([]Message, 0, max)
	for len(batch) < max {
		readCtx, cancel := context.WithTimeout(ctx, pollReadTimeout)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return batch, nil
			case errors.Is(err, context.Canceled):
				return batch, ctx.Err()
			default:
				return batch, fmt.Errorf("read roster event: %w", err)
			}
		}
		batch = append(batch, Message{
			Topic:   msg.Topic,
			Payload: msg.Value,
		})
	}
	return batch, nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
