package executor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/tracing"
)

const (
	phrasePositionWeight  = 0.4
	phraseFrequencyWeight = 0.6
	phraseMinTextLength   = 1000
	phraseFrequencyCap    = 10.0
)

// Request is a search as submitted by a caller. Method is ignored for
// phrase queries.
type Request struct {
	Query  string
	Method parser.Method
	Limit  int
}

// Result is one ranked document enriched for presentation.
type Result struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Path          string  `json:"path,omitempty"`
	Score         float64 `json:"score"`
	RawScore      float64 `json:"-"`
	Snippet       string  `json:"snippet"`
	PhraseMatches int     `json:"phrase_matches,omitempty"`
}

// SearchResult is the outcome of one query against one snapshot. Result
// IDs are only valid for Generation.
type SearchResult struct {
	Query      string   `json:"query"`
	Method     string   `json:"method"`
	Mode       string   `json:"mode"`
	Generation uint64   `json:"generation"`
	TotalHits  int      `json:"total_hits"`
	Results    []Result `json:"results"`
}

// Executor scores a parsed query against a snapshot. It holds no
// per-snapshot state and is safe for concurrent use.
type Executor struct {
	snippets          *snippet.Extractor
	parallelThreshold int
	partitions        int
	logger            *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithSnippets sets the snippet extractor.
func WithSnippets(ex *snippet.Extractor) Option {
	return func(e *Executor) {
		e.snippets = ex
	}
}

// WithPartitions enables partitioned scoring: corpora with at least
// threshold documents are scored in up to n concurrent ranges.
func WithPartitions(threshold, n int) Option {
	return func(e *Executor) {
		e.parallelThreshold = threshold
		e.partitions = n
	}
}

// New creates an Executor. Without options scoring is serial and snippets
// use the default window.
func New(opts ...Option) *Executor {
	e := &Executor{
		snippets: snippet.New(snippet.DefaultWindow),
		logger:   slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rangeScorer writes scores for documents [lo, hi) into out[lo:hi].
type rangeScorer func(lo, hi int, out []float64)

// Execute runs plan against snap and returns at most limit results. An
// empty snapshot, a degenerate plan or a non-positive limit produce an
// empty result list, not an error.
func (e *Executor) Execute(ctx context.Context, snap *index.Snapshot, plan *parser.QueryPlan, method parser.Method, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &SearchResult{
		Query:      plan.RawQuery,
		Method:     method.String(),
		Mode:       plan.Mode.String(),
		Generation: snap.Generation,
		Results:    []Result{},
	}
	n := snap.Len()
	if n == 0 || plan.Empty() || limit <= 0 {
		return result, nil
	}

	_, span := tracing.StartChildSpan(ctx, "executor.score")
	defer span.End()

	var (
		score   rangeScorer
		matches []int
	)
	switch {
	case plan.Mode == parser.ModePhrase:
		matches = make([]int, n)
		score = phraseScorer(snap, plan.Phrase, matches)
	case method == parser.MethodBM25:
		score = func(lo, hi int, out []float64) {
			snap.BM25.ScoreRange(plan.Terms, lo, hi, out)
		}
	default:
		if !snap.Vector.Available() {
			return result, nil
		}
		q := snap.Vector.Embed(plan.Plain)
		score = func(lo, hi int, out []float64) {
			snap.Vector.ScoreRange(q, lo, hi, out)
		}
	}

	ranked, hits := e.rank(n, score, limit)
	span.SetAttr("documents", n)
	span.SetAttr("hits", hits)

	result.TotalHits = hits
	result.Results = make([]Result, 0, len(ranked))
	terms := plan.HighlightTerms()
	for _, sd := range ranked {
		doc, _ := snap.Corpus.Doc(sd.DocID)
		r := Result{
			ID:       doc.ID,
			Name:     doc.Name,
			Path:     doc.Path,
			Score:    ranker.Round(sd.Score),
			RawScore: sd.Score,
			Snippet:  e.snippets.Extract(doc.Text, terms),
		}
		if matches != nil {
			r.PhraseMatches = matches[sd.DocID]
		}
		result.Results = append(result.Results, r)
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"mode", plan.Mode.String(),
		"method", method.String(),
		"terms", plan.Terms,
		"generation", snap.Generation,
		"hits", hits,
		"results", len(result.Results),
	)
	return result, nil
}

// rank scores all n documents, serially or in partitions, and returns the
// top limit documents together with the number of positive scores.
func (e *Executor) rank(n int, score rangeScorer, limit int) ([]ranker.ScoredDoc, int) {
	scores := make([]float64, n)
	parts := e.partitionCount(n)
	if parts <= 1 {
		score(0, n, scores)
		hits := ranker.Collect(scores, 0, n)
		total := len(hits)
		return ranker.Rank(hits, limit), total
	}

	chunk := (n + parts - 1) / parts
	results := make([][]ranker.ScoredDoc, parts)
	var g errgroup.Group
	for p := 0; p < parts; p++ {
		lo := p * chunk
		hi := min(n, lo+chunk)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			score(lo, hi, scores)
			results[p] = ranker.Collect(scores, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	return merger.Merge(results, limit), total
}

func (e *Executor) partitionCount(n int) int {
	if e.partitions <= 1 || e.parallelThreshold <= 0 || n < e.parallelThreshold {
		return 1
	}
	return min(e.partitions, n)
}

// phraseScorer scores documents by the position and frequency of
// case-insensitive, non-overlapping occurrences of phrase. Documents
// without an occurrence score zero. Occurrence counts are written to
// matches.
func phraseScorer(snap *index.Snapshot, phrase string, matches []int) rangeScorer {
	needle := tokenizer.FoldRunes(phrase)
	docs := snap.Corpus.Docs()
	return func(lo, hi int, out []float64) {
		for i := lo; i < hi; i++ {
			hay := tokenizer.FoldRunes(docs[i].Text)
			count, first := tokenizer.CountFold(hay, needle)
			matches[i] = count
			if count == 0 {
				continue
			}
			out[i] = phraseScore(count, first, len(hay))
		}
	}
}

func phraseScore(count, firstPos, textLen int) float64 {
	positionScore := 1.0 - (float64(firstPos)/float64(max(textLen, phraseMinTextLength)))*0.5
	frequencyScore := min(float64(count)/phraseFrequencyCap, 1.0)
	return phrasePositionWeight*positionScore + phraseFrequencyWeight*frequencyScore
}
