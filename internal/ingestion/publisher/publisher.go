// Package publisher announces corpus changes on Kafka so that every
// replica consuming the refresh topic rebuilds its index.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/resilience"
)

// Sender is the subset of kafka.Producer the publisher needs.
type Sender interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Publisher emits RefreshEvents through a circuit breaker so a dead broker
// does not stall the folder watcher.
type Publisher struct {
	sender  Sender
	breaker *resilience.CircuitBreaker
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Publisher. breaker may be nil.
func New(sender Sender, breaker *resilience.CircuitBreaker) *Publisher {
	return &Publisher{
		sender:  sender,
		breaker: breaker,
		now:     time.Now,
		logger:  slog.Default().With("component", "refresh-publisher"),
	}
}

// PublishRefresh announces that dir changed. Events are keyed by folder so
// all triggers for one folder land on one partition in order.
func (p *Publisher) PublishRefresh(ctx context.Context, reason, dir string, paths []string) error {
	event := kafka.Event{
		Key: dir,
		Value: ingestion.RefreshEvent{
			Reason:      reason,
			Dir:         dir,
			Paths:       paths,
			RequestedAt: p.now().UTC(),
		},
	}
	send := func() error { return p.sender.Publish(ctx, event) }
	var err error
	if p.breaker != nil {
		err = p.breaker.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		p.logger.Error("failed to publish refresh event", "dir", dir, "reason", reason, "error", err)
		return fmt.Errorf("publishing refresh event: %w", err)
	}
	p.logger.Info("refresh event published", "dir", dir, "reason", reason, "paths", len(paths))
	return nil
}
