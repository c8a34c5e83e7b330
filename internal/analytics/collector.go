package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
)

// Forwarder accepts keyed events for asynchronous delivery.
// *collector.BatchCollector satisfies it.
type Forwarder interface {
	Track(key string, value any)
}

// Collector is the Tracker used when analytics go through Kafka: events
// are forwarded to the stream and folded into an Aggregator by whichever
// replica consumes the topic.
type Collector struct {
	out Forwarder
}

func NewCollector(out Forwarder) *Collector {
	return &Collector{out: out}
}

func (c *Collector) TrackSearch(e SearchEvent) {
	e.Type = EventSearch
	c.out.Track(string(EventSearch), e)
}

func (c *Collector) TrackRefresh(e RefreshEvent) {
	e.Type = EventRefresh
	c.out.Track(string(EventRefresh), e)
}

type envelope struct {
	Type EventType `json:"type"`
}

// HandleEvent folds analytics messages from Kafka into agg. Undecodable
// and unknown messages are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.TrackSearch(event)
		case EventRefresh:
			event, err := kafka.DecodeJSON[RefreshEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode refresh event", "error", err)
				return nil
			}
			agg.TrackRefresh(event)
		default:
			agg.logger.Warn("unknown analytics event", "type", env.Type, "key", string(key))
		}
		return nil
	}
}
