package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
)

const (
	defaultRecentQueries = 10
	latencyWindow        = 10000
	topQueryCount        = 10
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	SearchesByMethod  map[string]int64 `json:"searches_by_method"`
	PhraseSearches    int64            `json:"phrase_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	RecentQueries     []string         `json:"recent_queries"`
	Refreshes         int64            `json:"refreshes"`
	FailedRefreshes   int64            `json:"failed_refreshes"`
	LastRefresh       *RefreshEvent    `json:"last_refresh,omitempty"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and refresh events into running statistics. It
// implements Tracker, so it can be fed directly in a single-process setup
// or from the Kafka analytics topic.
type Aggregator struct {
	mu sync.RWMutex

	totalSearches   int64
	byMethod        map[string]int64
	phraseSearches  int64
	cacheHits       int64
	cacheMisses     int64
	zeroResults     int64
	refreshes       int64
	failedRefreshes int64
	lastRefresh     *RefreshEvent

	// latencies is a ring over the most recent latencyWindow searches.
	latencies []int64
	next      int

	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	recent            []string
	recentMax         int
	startTime         time.Time

	logger *slog.Logger
}

// NewAggregator creates an Aggregator remembering the last recentQueries
// distinct queries.
func NewAggregator(recentQueries int) *Aggregator {
	if recentQueries <= 0 {
		recentQueries = defaultRecentQueries
	}
	return &Aggregator{
		byMethod:          make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		recentMax:         recentQueries,
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume feeds the aggregator from the consumer newConsumer builds around
// HandleEvent and blocks until ctx is cancelled.
func (a *Aggregator) Consume(ctx context.Context, newConsumer func(kafka.MessageHandler) *kafka.Consumer) error {
	a.logger.Info("analytics aggregator consuming")
	return newConsumer(HandleEvent(a)).Start(ctx)
}

func (a *Aggregator) TrackSearch(event SearchEvent) {
	query := strings.TrimSpace(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.byMethod[event.Method]++
	if event.Mode == "phrase" {
		a.phraseSearches++
	}
	switch event.CacheStatus {
	case "lru", "redis":
		a.cacheHits++
	case "miss":
		a.cacheMisses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	if query == "" {
		return
	}
	a.queryCounts[query]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
	a.pushRecent(query)
}

func (a *Aggregator) TrackRefresh(event RefreshEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	if event.Status != "ok" {
		a.failedRefreshes++
	}
	e := event
	a.lastRefresh = &e
}

// pushRecent moves query to the front of the recent list, dropping an
// older duplicate and the oldest entry beyond recentMax.
func (a *Aggregator) pushRecent(query string) {
	for i, q := range a.recent {
		if q == query {
			a.recent = append(a.recent[:i], a.recent[i+1:]...)
			break
		}
	}
	a.recent = append([]string{query}, a.recent...)
	if len(a.recent) > a.recentMax {
		a.recent = a.recent[:a.recentMax]
	}
}

// RecentQueries returns the most recent distinct queries, newest first.
func (a *Aggregator) RecentQueries() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string{}, a.recent...)
}

// Seed restores counters and the recent-query list from a persisted
// snapshot. It is meant to be called once before any event is tracked.
func (a *Aggregator) Seed(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches = s.TotalSearches
	for m, n := range s.SearchesByMethod {
		a.byMethod[m] = n
	}
	a.phraseSearches = s.PhraseSearches
	a.cacheHits = s.CacheHits
	a.cacheMisses = s.CacheMisses
	a.zeroResults = s.ZeroResultCount
	a.refreshes = s.Refreshes
	a.failedRefreshes = s.FailedRefreshes
	for _, qc := range s.TopQueries {
		a.queryCounts[qc.Query] = qc.Count
	}
	for _, qc := range s.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] = qc.Count
	}
	recent := s.RecentQueries
	if len(recent) > a.recentMax {
		recent = recent[:a.recentMax]
	}
	a.recent = append([]string{}, recent...)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		SearchesByMethod: make(map[string]int64, len(a.byMethod)),
		PhraseSearches:   a.phraseSearches,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		Refreshes:        a.refreshes,
		FailedRefreshes:  a.failedRefreshes,
		RecentQueries:    append([]string{}, a.recent...),
	}
	for m, n := range a.byMethod {
		stats.SearchesByMethod[m] = n
	}
	if a.lastRefresh != nil {
		e := *a.lastRefresh
		stats.LastRefresh = &e
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueryCount)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryCount)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
