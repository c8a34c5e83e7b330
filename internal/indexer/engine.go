// Package indexer owns the search snapshot: it builds the corpus and both
// indexes from loaded sources and publishes them with an atomic swap so
// queries never observe a half-built index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
)

// ErrNoLoader is returned by Refresh when the engine has no loader.
var ErrNoLoader = errors.New("no document loader configured")

// Loader produces the ordered sources a snapshot is built from.
type Loader interface {
	Load(ctx context.Context) ([]corpus.Source, error)
}

// SwapFunc is called after a new snapshot has been published.
type SwapFunc func(old, current *index.Snapshot)

// RefreshFunc is called after every Refresh or SwapLoader attempt. snap is
// nil when err is set.
type RefreshFunc func(snap *index.Snapshot, err error, took time.Duration)

// Engine serves queries from the current snapshot. Search, TopKeywords and
// the document accessors only read the snapshot pointer; Build, Refresh
// and SwapLoader are serialized by buildMu.
type Engine struct {
	snapshot atomic.Pointer[index.Snapshot]

	buildMu    sync.Mutex
	generation uint64
	loader     Loader

	executor      *executor.Executor
	minTextLength int
	metrics       *metrics.Metrics
	onSwap        []SwapFunc
	onRefresh     []RefreshFunc
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader sets the loader used by Refresh.
func WithLoader(l Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithExecutor replaces the default serial query executor.
func WithExecutor(ex *executor.Executor) Option {
	return func(e *Engine) { e.executor = ex }
}

// WithMinTextLength sets the minimum preprocessed length, in characters,
// a document must exceed to enter the corpus.
func WithMinTextLength(n int) Option {
	return func(e *Engine) { e.minTextLength = n }
}

// WithMetrics publishes refresh and snapshot metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// OnSwap registers fn to run after every snapshot swap.
func OnSwap(fn SwapFunc) Option {
	return func(e *Engine) { e.onSwap = append(e.onSwap, fn) }
}

// OnRefresh registers fn to run after every refresh attempt.
func OnRefresh(fn RefreshFunc) Option {
	return func(e *Engine) { e.onRefresh = append(e.onRefresh, fn) }
}

// NewEngine creates an Engine serving an empty generation-0 snapshot.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		minTextLength: corpus.DefaultMinTextLength,
		logger:        slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.executor == nil {
		e.executor = executor.New()
	}
	e.snapshot.Store(index.EmptySnapshot())
	return e
}

// Current returns the snapshot in service. Callers may hold on to it; it
// is never modified.
func (e *Engine) Current() *index.Snapshot {
	return e.snapshot.Load()
}

// Ready reports whether a snapshot has been built at least once.
func (e *Engine) Ready() bool {
	return e.Current().Generation > 0
}

// Build computes a snapshot from sources and publishes it.
func (e *Engine) Build(sources []corpus.Source) *index.Snapshot {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.buildLocked(sources)
}

func (e *Engine) buildLocked(sources []corpus.Source) *index.Snapshot {
	start := time.Now()
	e.generation++
	snap := index.Build(corpus.New(sources, e.minTextLength), e.generation)
	old := e.snapshot.Swap(snap)

	e.logger.Info("snapshot built",
		"generation", snap.Generation,
		"sources", len(sources),
		"documents", snap.Len(),
		"bm25_terms", snap.BM25.VocabularySize(),
		"vector_terms", snap.Vector.VocabularySize(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if e.metrics != nil {
		e.metrics.CorpusDocuments.Set(float64(snap.Len()))
		e.metrics.SnapshotGeneration.Set(float64(snap.Generation))
		e.metrics.VocabularySize.WithLabelValues("bm25").Set(float64(snap.BM25.VocabularySize()))
		e.metrics.VocabularySize.WithLabelValues("tfidf").Set(float64(snap.Vector.VocabularySize()))
	}
	for _, fn := range e.onSwap {
		fn(old, snap)
	}
	return snap
}

// Refresh runs the loader and builds a new snapshot from its output. When
// loading fails the current snapshot stays in service.
func (e *Engine) Refresh(ctx context.Context) (*index.Snapshot, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	if e.loader == nil {
		return nil, ErrNoLoader
	}
	return e.refreshLocked(ctx, e.loader)
}

// SwapLoader refreshes from l and, if that succeeds, keeps l for later
// refreshes. On failure both the loader and the snapshot are unchanged.
func (e *Engine) SwapLoader(ctx context.Context, l Loader) (*index.Snapshot, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	snap, err := e.refreshLocked(ctx, l)
	if err != nil {
		return nil, err
	}
	e.loader = l
	return snap, nil
}

// Loader returns the loader Refresh uses.
func (e *Engine) Loader() Loader {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.loader
}

func (e *Engine) refreshLocked(ctx context.Context, l Loader) (*index.Snapshot, error) {
	start := time.Now()
	sources, err := l.Load(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("loading documents: %w", err)
		e.observeRefresh(nil, err, start)
		e.logger.Error("refresh failed, keeping current snapshot",
			"generation", e.Current().Generation,
			"error", err,
		)
		return nil, err
	}
	snap := e.buildLocked(sources)
	e.observeRefresh(snap, nil, start)
	return snap, nil
}

func (e *Engine) observeRefresh(snap *index.Snapshot, err error, start time.Time) {
	took := time.Since(start)
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RefreshTotal.WithLabelValues(status).Inc()
		e.metrics.RefreshDuration.Observe(took.Seconds())
	}
	for _, fn := range e.onRefresh {
		fn(snap, err, took)
	}
}

// Search runs req against the current snapshot.
func (e *Engine) Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error) {
	return e.SearchSnapshot(ctx, e.Current(), req)
}

// SearchSnapshot runs req against snap, letting callers pin a snapshot
// across several calls.
func (e *Engine) SearchSnapshot(ctx context.Context, snap *index.Snapshot, req executor.Request) (*executor.SearchResult, error) {
	return e.executor.Execute(ctx, snap, parser.Parse(req.Query), req.Method, req.Limit)
}

// TopKeywords returns up to n keywords of document docID in the current
// snapshot. Unknown IDs yield an empty list.
func (e *Engine) TopKeywords(docID, n int) []snippet.Keyword {
	return snippet.TopKeywords(e.Current().Vector, docID, n)
}

// Document returns document id of the current snapshot.
func (e *Engine) Document(id int) (corpus.Document, bool) {
	return e.Current().Corpus.Doc(id)
}

// Stats summarizes the current snapshot.
type Stats struct {
	Generation       uint64    `json:"generation"`
	Documents        int       `json:"documents"`
	TotalTokens      int       `json:"total_tokens"`
	AvgDocLen        float64   `json:"avg_doc_len"`
	BM25Vocabulary   int       `json:"bm25_vocabulary"`
	VectorVocabulary int       `json:"vector_vocabulary"`
	BuiltAt          time.Time `json:"built_at"`
}

// Stats returns statistics of the current snapshot.
func (e *Engine) Stats() Stats {
	snap := e.Current()
	return Stats{
		Generation:       snap.Generation,
		Documents:        snap.Len(),
		TotalTokens:      snap.Corpus.TotalTokens(),
		AvgDocLen:        snap.Corpus.AvgDocLen(),
		BM25Vocabulary:   snap.BM25.VocabularySize(),
		VectorVocabulary: snap.Vector.VocabularySize(),
		BuiltAt:          snap.BuiltAt,
	}
}
