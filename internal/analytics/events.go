package analytics

import "time"

type EventType string

const (
	EventSearch  EventType = "search"
	EventRefresh EventType = "refresh"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Method      string    `json:"method"`
	Mode        string    `json:"mode"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheStatus string    `json:"cache_status"`
	Generation  uint64    `json:"generation"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// RefreshEvent describes one snapshot rebuild attempt.
type RefreshEvent struct {
	Type       EventType `json:"type"`
	Status     string    `json:"status"`
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker receives analytics events as they happen. Implementations must
// not block the caller.
type Tracker interface {
	TrackSearch(SearchEvent)
	TrackRefresh(RefreshEvent)
}
