// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Events travel as JSON; the consumer hands each
// message to a MessageHandler and commits it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/resilience"
)

const (
	defaultHandleAttempts = 3
	fetchBackoff          = time.Second
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler. A message whose handler keeps failing is committed after
// the last attempt so one bad event cannot stall the partition.
type Consumer struct {
	reader   *kafka.Reader
	handler  MessageHandler
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithHandleAttempts sets how often a failing message is handed to the
// handler before it is dropped.
func WithHandleAttempts(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// NewConsumer creates a Consumer for topic in group. New groups start at
// the latest offset so old events are not replayed.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     group,
			MinBytes:    1,
			MaxBytes:    1e6,
			StartOffset: kafka.LastOffset,
		}),
		handler:  handler,
		attempts: defaultHandleAttempts,
		backoff:  200 * time.Millisecond,
		logger:   slog.Default().With("component", "kafka-consumer", "topic", topic, "group", group),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReplicaGroup derives a consumer group owned by this process. Replicas
// that each need every event, rather than a share of them, consume under
// their own group.
func ReplicaGroup(base, purpose string) string {
	return fmt.Sprintf("%s-%s-%s", base, purpose, replicaID())
}

func replicaID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()[:8]
}

// Start enters the consume loop and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}
		if !c.process(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process hands msg to the handler, retrying failures. It reports false
// only when ctx ended first, in which case msg must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	err := resilience.Retry(ctx, "kafka-handle", resilience.RetryConfig{
		MaxAttempts:  c.attempts,
		InitialDelay: c.backoff,
	}, func(ctx context.Context) error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	c.logger.Error("dropping message after failed attempts",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"attempts", c.attempts,
		"error", err,
	)
	return true
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
