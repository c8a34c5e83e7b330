package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/resilience"
)

type fakeRemote struct {
	mu      sync.Mutex
	data    map[string][]byte
	fail    bool
	gets    int
	flushed int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string][]byte)}
}

func (f *fakeRemote) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail {
		return nil, errors.New("connection refused")
	}
	v, ok := f.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (f *fakeRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.data[key] = value
	return nil
}

func (f *fakeRemote) FlushByPattern(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.data))
	f.data = make(map[string][]byte)
	f.flushed++
	return n, nil
}

func snapshot(gen uint64, texts ...string) *index.Snapshot {
	sources := make([]corpus.Source, len(texts))
	for i, t := range texts {
		sources[i] = corpus.Source{Name: t, Text: t}
	}
	return index.Build(corpus.New(sources, 0), gen)
}

func computeFor(snap *index.Snapshot, req executor.Request, calls *atomic.Int32) func() (*executor.SearchResult, error) {
	return func() (*executor.SearchResult, error) {
		calls.Add(1)
		return executor.New().Execute(context.Background(), snap, parser.Parse(req.Query), req.Method, req.Limit)
	}
}

func TestLRUHitAfterMiss(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)
	snap := snapshot(1, "cats and dogs", "only cats here")
	req := executor.Request{Query: "cats", Method: parser.MethodBM25, Limit: 5}
	var calls atomic.Int32

	first, st, err := c.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)

	second, st, err := c.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusLRU, st)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	s := c.Stats()
	assert.Equal(t, int64(1), s.LRUHits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.Equal(t, 1, s.Entries)
	assert.Empty(t, s.RemoteState)
}

func TestKeyDistinguishesRequests(t *testing.T) {
	snap := snapshot(1, "alpha beta")
	base := executor.Request{Query: "alpha", Method: parser.MethodBM25, Limit: 10}
	k := Key(snap, base)

	other := base
	other.Method = parser.MethodTFIDF
	assert.NotEqual(t, k, Key(snap, other))

	other = base
	other.Limit = 5
	assert.NotEqual(t, k, Key(snap, other))

	other = base
	other.Query = "Alpha"
	assert.NotEqual(t, k, Key(snap, other))

	assert.NotEqual(t, k, Key(snapshot(1, "gamma delta"), base))
	// same content in a later generation shares the key
	assert.Equal(t, k, Key(snapshot(9, "alpha beta"), base))
}

func TestSameFingerprintRelabelsGeneration(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)
	req := executor.Request{Query: "alpha", Method: parser.MethodTFIDF, Limit: 3}
	var calls atomic.Int32

	s1 := snapshot(1, "alpha beta", "gamma")
	_, _, err = c.GetOrCompute(context.Background(), s1, req, computeFor(s1, req, &calls))
	require.NoError(t, err)

	s2 := snapshot(2, "alpha beta", "gamma")
	c.OnSwap(s1, s2)
	res, st, err := c.GetOrCompute(context.Background(), s2, req, computeFor(s2, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusLRU, st)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOnSwapPurgesChangedCorpus(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)
	s1 := snapshot(1, "alpha beta")
	req := executor.Request{Query: "alpha", Limit: 3}
	var calls atomic.Int32
	_, _, err = c.GetOrCompute(context.Background(), s1, req, computeFor(s1, req, &calls))
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats().Entries)

	c.OnSwap(s1, snapshot(2, "alpha beta", "new document"))
	assert.Zero(t, c.Stats().Entries)
}

func TestOnSwapPurgesMovedFolder(t *testing.T) {
	build := func(gen uint64, dir string) *index.Snapshot {
		return index.Build(corpus.New([]corpus.Source{
			{Name: "a.txt", Path: dir + "/a.txt", Text: "alpha beta gamma"},
		}, 0), gen)
	}
	c, err := New(16)
	require.NoError(t, err)
	req := executor.Request{Query: "alpha", Method: parser.MethodBM25, Limit: 3}
	var calls atomic.Int32

	s1 := build(1, "/old")
	res, _, err := c.GetOrCompute(context.Background(), s1, req, computeFor(s1, req, &calls))
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/old/a.txt", res.Results[0].Path)

	s2 := build(2, "/new")
	c.OnSwap(s1, s2)
	assert.Zero(t, c.Stats().Entries)

	res, st, err := c.GetOrCompute(context.Background(), s2, req, computeFor(s2, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)
	assert.Equal(t, "/new/a.txt", res.Results[0].Path)
}

func TestComputeErrorNotCached(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)
	snap := snapshot(1, "alpha")
	req := executor.Request{Query: "alpha", Limit: 3}
	boom := errors.New("boom")

	_, _, err = c.GetOrCompute(context.Background(), snap, req, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Stats().Entries)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)
	snap := snapshot(1, "alpha beta", "beta gamma")
	req := executor.Request{Query: "beta", Method: parser.MethodBM25, Limit: 5}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return executor.New().Execute(context.Background(), snap, parser.Parse(req.Query), req.Method, req.Limit)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), snap, req, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteTierSharesResults(t *testing.T) {
	remote := newFakeRemote()
	snap := snapshot(1, "cats and dogs", "only cats here")
	req := executor.Request{Query: "cats", Method: parser.MethodBM25, Limit: 5}
	var calls atomic.Int32

	a, err := New(16, WithRemote(remote, time.Minute))
	require.NoError(t, err)
	want, st, err := a.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	require.Equal(t, StatusMiss, st)
	require.Len(t, remote.data, 1)

	// a second replica with its own LRU reads what the first wrote
	b, err := New(16, WithRemote(remote, time.Minute))
	require.NoError(t, err)
	got, st, err := b.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusRemote, st)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, got.Results, len(want.Results))
	for i := range want.Results {
		assert.Equal(t, want.Results[i].ID, got.Results[i].ID)
		assert.Equal(t, want.Results[i].Score, got.Results[i].Score)
		assert.Equal(t, want.Results[i].Snippet, got.Results[i].Snippet)
	}
	assert.Equal(t, int64(1), b.Stats().RemoteHits)

	_, st, err = b.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusLRU, st)
}

func TestRemoteFailureOpensBreaker(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	cb := resilience.NewCircuitBreaker("test-redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c, err := New(1, WithRemote(remote, time.Minute), WithBreaker(cb))
	require.NoError(t, err)

	snap := snapshot(1, "alpha", "beta", "gamma")
	var calls atomic.Int32
	for _, q := range []string{"alpha", "beta", "gamma", "alpha"} {
		req := executor.Request{Query: q, Limit: 3}
		res, _, err := c.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
		require.NoError(t, err)
		assert.NotNil(t, res)
	}
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.Equal(t, "open", c.Stats().RemoteState)
	// the failed get and set of the first query open the breaker
	remote.mu.Lock()
	gets := remote.gets
	remote.mu.Unlock()
	assert.Equal(t, 1, gets)
	assert.Positive(t, c.Stats().RemoteErrors)
}

func TestInvalidate(t *testing.T) {
	remote := newFakeRemote()
	c, err := New(8, WithRemote(remote, time.Minute))
	require.NoError(t, err)
	snap := snapshot(1, "alpha beta")
	req := executor.Request{Query: "alpha", Limit: 3}
	var calls atomic.Int32
	_, _, err = c.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Zero(t, c.Stats().Entries)
	assert.Empty(t, remote.data)
	assert.Equal(t, 1, remote.flushed)

	_, st, err := c.GetOrCompute(context.Background(), snap, req, computeFor(snap, req, &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStatusHit(t *testing.T) {
	assert.True(t, StatusLRU.Hit())
	assert.True(t, StatusRemote.Hit())
	assert.False(t, StatusMiss.Hit())
	assert.False(t, StatusBypass.Hit())
}
