package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
)

func petSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	c := corpus.New([]corpus.Source{
		{Name: "cats.txt", Text: "The cat sat on the mat. Cats purr."},
		{Name: "dogs.txt", Text: "The dog chased the ball across the yard."},
		{Name: "both.txt", Text: "A cat and a dog became best friends."},
	}, corpus.DefaultMinTextLength)
	require.Equal(t, 3, c.Len())
	return index.Build(c, 1)
}

func run(t *testing.T, ex *Executor, snap *index.Snapshot, query string, method parser.Method, limit int) *SearchResult {
	t.Helper()
	res, err := ex.Execute(context.Background(), snap, parser.Parse(query), method, limit)
	require.NoError(t, err)
	return res
}

func ids(res *SearchResult) []int {
	out := make([]int, len(res.Results))
	for i, r := range res.Results {
		out[i] = r.ID
	}
	return out
}

func TestBM25CatQuery(t *testing.T) {
	snap := petSnapshot(t)
	res := run(t, New(), snap, "cat", parser.MethodBM25, 10)

	// "Cats" is a distinct term; no stemming is applied.
	require.Len(t, res.Results, 2)
	assert.ElementsMatch(t, []int{0, 2}, ids(res))
	assert.Equal(t, "bm25", res.Method)
	assert.Equal(t, "tokens", res.Mode)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, 2, res.TotalHits)
	for _, r := range res.Results {
		assert.Greater(t, r.Score, 0.0)
		assert.Contains(t, strings.ToLower(r.Snippet), "<mark>cat</mark>")
	}
}

func TestTFIDFDogQuery(t *testing.T) {
	snap := petSnapshot(t)
	res := run(t, New(), snap, "dog", parser.MethodTFIDF, 10)
	assert.ElementsMatch(t, []int{1, 2}, ids(res))
	assert.Equal(t, "tfidf", res.Method)
}

func TestPhraseQuery(t *testing.T) {
	snap := petSnapshot(t)
	res := run(t, New(), snap, `"best friends"`, parser.MethodBM25, 10)
	require.Len(t, res.Results, 1)
	r := res.Results[0]
	assert.Equal(t, 2, r.ID)
	assert.Equal(t, 1, r.PhraseMatches)
	assert.Equal(t, "phrase", res.Mode)
	assert.Contains(t, r.Snippet, "<mark>best friends</mark>")
	// first occurrence at 23, short text scaled against 1000
	assert.InDelta(t, 0.4*(1-0.0115)+0.06, r.RawScore, 1e-9)
}

func shortSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	c := corpus.New([]corpus.Source{
		{Name: "0", Text: "the cat sat"},
		{Name: "1", Text: "the dog ran"},
		{Name: "2", Text: "cats and dogs"},
	}, corpus.DefaultMinTextLength)
	require.Equal(t, 3, c.Len())
	return index.Build(c, 1)
}

func TestPhraseTheCat(t *testing.T) {
	snap := shortSnapshot(t)
	res := run(t, New(), snap, `"the cat"`, parser.MethodBM25, 10)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 0, res.Results[0].ID)
	assert.Equal(t, 1, res.Results[0].PhraseMatches)
	assert.Equal(t, 1, res.TotalHits)
}

func TestPhraseResultsSubsetOfTokenResults(t *testing.T) {
	snap := shortSnapshot(t)
	for _, phrase := range []string{"the cat", "dog ran", "cats and", "and dogs", "the dog ran", "cat sat"} {
		words := strings.Fields(phrase)
		phraseRes := run(t, New(), snap, `"`+phrase+`"`, parser.MethodBM25, 10)
		require.NotEmpty(t, phraseRes.Results, "phrase %q", phrase)
		for _, m := range []parser.Method{parser.MethodBM25, parser.MethodTFIDF} {
			tokenIDs := ids(run(t, New(), snap, phrase, m, 10))
			for _, r := range phraseRes.Results {
				assert.Contains(t, tokenIDs, r.ID, "phrase %q method %s", phrase, m)
				doc, ok := snap.Corpus.Doc(r.ID)
				require.True(t, ok)
				for _, w := range words {
					assert.Contains(t, doc.Tokens, w, "phrase %q doc %d", phrase, r.ID)
				}
			}
		}
	}
}

func TestPhraseEdgeSpacesMatchWholeWord(t *testing.T) {
	snap := shortSnapshot(t)
	assert.ElementsMatch(t, []int{0, 2}, ids(run(t, New(), snap, `"cat"`, parser.MethodBM25, 10)))

	res := run(t, New(), snap, `" cat "`, parser.MethodBM25, 10)
	assert.Equal(t, []int{0}, ids(res))
}

func TestPhraseIgnoresMethod(t *testing.T) {
	snap := petSnapshot(t)
	a := run(t, New(), snap, `"the dog"`, parser.MethodBM25, 10)
	b := run(t, New(), snap, `"the dog"`, parser.MethodTFIDF, 10)
	assert.Equal(t, ids(a), ids(b))
	for i := range a.Results {
		assert.Equal(t, a.Results[i].RawScore, b.Results[i].RawScore)
	}
}

func TestPhraseScoreFormula(t *testing.T) {
	assert.InDelta(t, 0.4+0.06, phraseScore(1, 0, 10), 1e-12)
	assert.InDelta(t, 0.4*0.75+0.6, phraseScore(20, 1000, 2000), 1e-12)
	assert.InDelta(t, 0.4*(1-0.25)+0.6*0.3, phraseScore(3, 500, 100), 1e-12)
}

func TestPhraseCountsNonOverlapping(t *testing.T) {
	c := corpus.New([]corpus.Source{{Name: "a", Text: "aaaa aaaa aaaa"}}, 0)
	snap := index.Build(c, 1)
	res := run(t, New(), snap, `"aa"`, parser.MethodBM25, 5)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 6, res.Results[0].PhraseMatches)
}

func TestNoMatchYieldsEmptyResults(t *testing.T) {
	snap := petSnapshot(t)
	for _, m := range []parser.Method{parser.MethodBM25, parser.MethodTFIDF} {
		res := run(t, New(), snap, "zebra", m, 10)
		assert.Empty(t, res.Results)
		assert.NotNil(t, res.Results)
		assert.Zero(t, res.TotalHits)
	}
}

func TestDegenerateQueries(t *testing.T) {
	snap := petSnapshot(t)
	for _, q := range []string{"", "   ", `""`, "!!!", "- , ."} {
		res := run(t, New(), snap, q, parser.MethodBM25, 10)
		assert.Empty(t, res.Results, "query %q", q)
	}
}

func TestNonPositiveLimit(t *testing.T) {
	snap := petSnapshot(t)
	assert.Empty(t, run(t, New(), snap, "cat", parser.MethodBM25, 0).Results)
	assert.Empty(t, run(t, New(), snap, "cat", parser.MethodTFIDF, -3).Results)
}

func TestLimitTruncates(t *testing.T) {
	snap := petSnapshot(t)
	res := run(t, New(), snap, "cat dog", parser.MethodBM25, 1)
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 3, res.TotalHits)
}

func TestEmptySnapshot(t *testing.T) {
	res := run(t, New(), index.EmptySnapshot(), "cat", parser.MethodTFIDF, 10)
	assert.Empty(t, res.Results)
	assert.Equal(t, uint64(0), res.Generation)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Execute(ctx, petSnapshot(t), parser.Parse("cat"), parser.MethodBM25, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultsOrdered(t *testing.T) {
	snap := petSnapshot(t)
	res := run(t, New(), snap, "the cat dog ball", parser.MethodBM25, 10)
	for i := 1; i < len(res.Results); i++ {
		prev, cur := res.Results[i-1], res.Results[i]
		if prev.RawScore == cur.RawScore {
			assert.Less(t, prev.ID, cur.ID)
		} else {
			assert.Greater(t, prev.RawScore, cur.RawScore)
		}
	}
}

func TestPartitionedMatchesSerial(t *testing.T) {
	sources := make([]corpus.Source, 0, 60)
	for i := 0; i < 60; i++ {
		text := fmt.Sprintf("document %d about search engines", i)
		if i%3 == 0 {
			text += " ranking ranking retrieval"
		}
		if i%7 == 0 {
			text += " retrieval systems"
		}
		sources = append(sources, corpus.Source{Name: fmt.Sprintf("doc%02d", i), Text: text})
	}
	snap := index.Build(corpus.New(sources, 0), 4)

	serial := New()
	parallel := New(WithPartitions(10, 4))
	for _, q := range []string{"ranking retrieval", "retrieval", `"search engines"`} {
		for _, m := range []parser.Method{parser.MethodBM25, parser.MethodTFIDF} {
			a := run(t, serial, snap, q, m, 15)
			b := run(t, parallel, snap, q, m, 15)
			assert.Equal(t, a.Results, b.Results, "query %q method %s", q, m)
			assert.Equal(t, a.TotalHits, b.TotalHits)
		}
	}
}

func TestPartitionCount(t *testing.T) {
	assert.Equal(t, 1, New().partitionCount(1000))
	e := New(WithPartitions(100, 8))
	assert.Equal(t, 1, e.partitionCount(99))
	assert.Equal(t, 8, e.partitionCount(100))
	e = New(WithPartitions(1, 8))
	assert.Equal(t, 3, e.partitionCount(3))
}
