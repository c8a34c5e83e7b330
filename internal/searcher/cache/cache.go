// Package cache memoizes search results. An in-process LRU answers repeat
// queries first; an optional remote tier (Redis) shares results between
// replicas. Keys carry the snapshot fingerprint, so a result is only ever
// served for the corpus it was computed on.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docvista/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/resilience"
)

const (
	keyPrefix     = "dv:search:"
	defaultSize   = 1024
	defaultTTL    = time.Minute
	remoteTimeout = 250 * time.Millisecond
)

// Status tells where a result came from.
type Status string

const (
	StatusMiss   Status = "miss"
	StatusLRU    Status = "lru"
	StatusRemote Status = "redis"
	// StatusBypass means the cache was not consulted.
	StatusBypass Status = "bypass"
)

// Hit reports whether the result was served from a cache tier.
func (s Status) Hit() bool {
	return s == StatusLRU || s == StatusRemote
}

// Remote is the shared second tier. *pkgredis.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries      int     `json:"entries"`
	Capacity     int     `json:"capacity"`
	LRUHits      int64   `json:"lru_hits"`
	RemoteHits   int64   `json:"redis_hits"`
	Misses       int64   `json:"misses"`
	RemoteErrors int64   `json:"redis_errors"`
	HitRate      float64 `json:"hit_rate"`
	RemoteState  string  `json:"redis_state,omitempty"`
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	local    *lru.Cache[string, *executor.SearchResult]
	capacity int
	remote   Remote
	breaker  *resilience.CircuitBreaker
	ttl      time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger

	lruHits      atomic.Int64
	remoteHits   atomic.Int64
	misses       atomic.Int64
	remoteErrors atomic.Int64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithRemote adds a shared tier. Calls to it go through a circuit breaker
// so an unavailable Redis degrades to LRU-only caching.
func WithRemote(r Remote, ttl time.Duration) Option {
	return func(c *QueryCache) {
		c.remote = r
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMetrics records hits and misses in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithBreaker replaces the default circuit breaker guarding the remote tier.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) { c.breaker = cb }
}

// New creates a cache holding up to size results in process.
func New(size int, opts ...Option) (*QueryCache, error) {
	if size <= 0 {
		size = defaultSize
	}
	local, err := lru.New[string, *executor.SearchResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	c := &QueryCache{
		local:    local,
		capacity: size,
		ttl:      defaultTTL,
		logger:   slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.remote != nil && c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     10 * time.Second,
		})
	}
	return c, nil
}

// GetOrCompute returns the cached result of req against snap, calling
// compute on a miss. Concurrent misses for the same key share one compute
// call. Errors from compute are returned and nothing is cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	snap *index.Snapshot,
	req executor.Request,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, Status, error) {
	key := Key(snap, req)
	if res, ok := c.local.Get(key); ok {
		c.recordHit(StatusLRU)
		return forGeneration(res, snap.Generation), StatusLRU, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.local.Get(key); ok {
			return cached{res, StatusLRU}, nil
		}
		if res, ok := c.getRemote(ctx, key, req); ok {
			c.local.Add(key, res)
			return cached{res, StatusRemote}, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.local.Add(key, res)
		c.setRemote(ctx, key, res)
		return cached{res, StatusMiss}, nil
	})
	if err != nil {
		return nil, StatusMiss, err
	}
	got := val.(cached)
	if got.status.Hit() {
		c.recordHit(got.status)
	} else {
		c.recordMiss()
	}
	return forGeneration(got.result, snap.Generation), got.status, nil
}

type cached struct {
	result *executor.SearchResult
	status Status
}

// Purge drops every in-process entry.
func (c *QueryCache) Purge() {
	c.local.Purge()
}

// Invalidate drops every in-process entry and every key this cache wrote
// to the remote tier.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	n := c.local.Len()
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidated", "lru_entries", n)
		return nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		c.remoteErrors.Add(1)
		return fmt.Errorf("invalidating remote cache: %w", err)
	}
	c.logger.Info("cache invalidated", "lru_entries", n, "redis_keys", deleted)
	return nil
}

// OnSwap drops in-process entries of a replaced snapshot. Remote entries
// are keyed by fingerprint and expire on their own.
func (c *QueryCache) OnSwap(old, current *index.Snapshot) {
	if old != nil && current != nil && old.Fingerprint == current.Fingerprint {
		return
	}
	c.local.Purge()
}

// Stats returns the current counters.
func (c *QueryCache) Stats() Stats {
	s := Stats{
		Entries:      c.local.Len(),
		Capacity:     c.capacity,
		LRUHits:      c.lruHits.Load(),
		RemoteHits:   c.remoteHits.Load(),
		Misses:       c.misses.Load(),
		RemoteErrors: c.remoteErrors.Load(),
	}
	if total := s.LRUHits + s.RemoteHits + s.Misses; total > 0 {
		s.HitRate = float64(s.LRUHits+s.RemoteHits) / float64(total)
	}
	if c.breaker != nil {
		s.RemoteState = c.breaker.State().String()
	}
	return s
}

// Key derives the cache key of req against snap. The query hash is taken
// over the exact query text since results echo it back.
func Key(snap *index.Snapshot, req executor.Request) string {
	return keyPrefix +
		strconv.FormatUint(snap.Fingerprint, 16) + ":" +
		req.Method.String() + ":" +
		strconv.Itoa(req.Limit) + ":" +
		strconv.FormatUint(xxhash.Sum64String(req.Query), 16)
}

func (c *QueryCache) getRemote(ctx context.Context, key string, req executor.Request) (*executor.SearchResult, bool) {
	if c.remote == nil {
		return nil, false
	}
	var data []byte
	err := c.breaker.Execute(func() error {
		rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		var err error
		data, err = c.remote.Get(rctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.remoteErrors.Add(1)
		c.logger.Warn("redis cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var res executor.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("redis cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	// hash collision guard
	if res.Query != req.Query {
		return nil, false
	}
	if res.Results == nil {
		res.Results = []executor.Result{}
	}
	return &res, true
}

func (c *QueryCache) setRemote(ctx context.Context, key string, res *executor.SearchResult) {
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		return c.remote.Set(rctx, key, data, c.ttl)
	})
	if err != nil {
		c.remoteErrors.Add(1)
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) recordHit(s Status) {
	if s == StatusRemote {
		c.remoteHits.Add(1)
	} else {
		c.lruHits.Add(1)
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(string(s)).Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// forGeneration returns res labelled with the generation it is served
// for. Cached values are shared and never modified in place.
func forGeneration(res *executor.SearchResult, gen uint64) *executor.SearchResult {
	if res.Generation == gen {
		return res
	}
	cp := *res
	cp.Generation = gen
	return &cp
}
