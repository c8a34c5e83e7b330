// Package consumer reads corpus refresh triggers from Kafka and rebuilds
// the local snapshot, so a change seen by one replica's watcher reaches
// every replica.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
)

// Refresher rebuilds the snapshot from the configured loader.
// *indexer.Engine satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (*index.Snapshot, error)
}

// RefreshConsumer wraps a Kafka consumer on the refresh topic.
type RefreshConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *RefreshConsumer {
	return &RefreshConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "refresh-consumer"),
	}
}

// Start consumes refresh events until ctx is cancelled.
func (rc *RefreshConsumer) Start(ctx context.Context) error {
	rc.logger.Info("refresh consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleRefresh returns a MessageHandler that rebuilds the snapshot for
// each refresh event. An event requested before the start of the last
// rebuild it triggered is already covered and is skipped. A failed rebuild
// is returned so the consumer retries the event.
func HandleRefresh(r Refresher) kafka.MessageHandler {
	logger := slog.Default().With("component", "refresh-consumer")
	var (
		mu        sync.Mutex
		lastStart time.Time
	)
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.RefreshEvent](value)
		if err != nil {
			logger.Error("failed to decode refresh event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if !event.RequestedAt.IsZero() && event.RequestedAt.Before(lastStart) {
			logger.Debug("refresh event already covered",
				"dir", event.Dir,
				"requested_at", event.RequestedAt,
				"last_refresh", lastStart,
			)
			return nil
		}

		start := time.Now()
		snap, err := r.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("refreshing for %s event on %s: %w", event.Reason, event.Dir, err)
		}
		lastStart = start
		logger.Info("snapshot refreshed from event",
			"reason", event.Reason,
			"dir", event.Dir,
			"paths", len(event.Paths),
			"generation", snap.Generation,
			"documents", snap.Len(),
		)
		return nil
	}
}
