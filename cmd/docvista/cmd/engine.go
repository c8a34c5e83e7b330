package cmd

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
)

// newEngine builds the loader and engine described by cfg. m may be nil.
func newEngine(cfg *config.Config, m *metrics.Metrics, createDir bool, opts ...indexer.Option) (*indexer.Engine, *ingestion.FileLoader) {
	loader := ingestion.NewFileLoader(ingestion.Options{
		Dir:          cfg.Documents.Dir,
		Recursive:    cfg.Documents.Recursive,
		Extensions:   cfg.Documents.Extensions,
		Workers:      cfg.Documents.Workers,
		MaxFileBytes: cfg.Documents.MaxFileBytes,
		CreateDir:    createDir,
		Metrics:      m,
	})
	ex := executor.New(
		executor.WithSnippets(snippet.New(cfg.Search.SnippetWindow)),
		executor.WithPartitions(cfg.Search.ParallelThreshold, cfg.Search.Partitions),
	)
	base := []indexer.Option{
		indexer.WithLoader(loader),
		indexer.WithExecutor(ex),
		indexer.WithMinTextLength(cfg.Documents.MinTextLength),
	}
	if m != nil {
		base = append(base, indexer.WithMetrics(m))
	}
	return indexer.NewEngine(append(base, opts...)...), loader
}

// loadEngine builds an engine and indexes the configured folder once.
func loadEngine(ctx context.Context, cfg *config.Config) (*indexer.Engine, error) {
	engine, _ := newEngine(cfg, nil, false)
	if _, err := engine.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", cfg.Documents.Dir, err)
	}
	return engine, nil
}

// loaderDir returns the folder engine indexes right now, which follows
// folder switches, or "" when its loader is not folder backed.
func loaderDir(engine *indexer.Engine) string {
	if fl, ok := engine.Loader().(*ingestion.FileLoader); ok {
		return fl.Dir()
	}
	return ""
}
