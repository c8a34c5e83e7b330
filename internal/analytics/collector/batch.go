// Package collector buffers analytics events in memory and ships them to
// the event stream in batches.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
)

// Sink delivers a batch of events. *kafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// BatchCollector accumulates events and flushes them when the buffer
// reaches batchSize or every flushInterval, whichever comes first. Failed
// batches are re-queued up to three batches' worth of events.
type BatchCollector struct {
	sink          Sink
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	kick          chan struct{}
	dropped       int64
	outcomes      *prometheus.CounterVec
	logger        *slog.Logger
	done          chan struct{}
}

// Option configures a BatchCollector.
type Option func(*BatchCollector)

// WithOutcomeCounter counts published and dropped events on c, which must
// carry a single "outcome" label.
func WithOutcomeCounter(c *prometheus.CounterVec) Option {
	return func(bc *BatchCollector) { bc.outcomes = c }
}

func NewBatchCollector(sink Sink, batchSize int, flushInterval time.Duration, opts ...Option) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	bc := &BatchCollector{
		sink:          sink,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		kick:          make(chan struct{}, 1),
		logger:        slog.Default().With("component", "batch-collector"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Start launches the flush loop. It returns immediately; the loop runs
// until ctx is cancelled and then performs a final flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-bc.kick:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers an event. A full buffer wakes the flush loop without
// blocking the caller.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: key, Value: value})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if full {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to finish after its context is cancelled.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the number of events waiting to be flushed.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Dropped returns how many events were discarded after repeated failures.
func (bc *BatchCollector) Dropped() int64 {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.dropped
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.sink.Publish(ctx, batch...); err != nil {
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if limit := bc.batchSize * 3; len(bc.buffer) > limit {
			n := len(bc.buffer) - limit
			bc.buffer = bc.buffer[:limit]
			bc.dropped += int64(n)
			bc.count("dropped", n)
			bc.logger.Warn("buffer overflow, events dropped", "dropped", n)
		}
		bc.mu.Unlock()
		return
	}
	bc.count("published", len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
}

func (bc *BatchCollector) count(outcome string, n int) {
	if bc.outcomes != nil {
		bc.outcomes.WithLabelValues(outcome).Add(float64(n))
	}
}
