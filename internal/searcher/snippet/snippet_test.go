package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
)

func TestExtractShortTextHighlights(t *testing.T) {
	e := New(200)
	got := e.Extract("The Cat sat on the mat", []string{"cat"})
	assert.Equal(t, "The <mark>Cat</mark> sat on the mat", got)
}

func TestExtractSubstringHighlight(t *testing.T) {
	e := New(200)
	got := e.Extract("a category of cats", []string{"cat"})
	assert.Equal(t, "a <mark>cat</mark>egory of <mark>cat</mark>s", got)
}

func TestExtractNoMatchTakesPrefix(t *testing.T) {
	e := New(10)
	assert.Equal(t, "abcdefghij...", e.Extract("abcdefghijklmnop", []string{"zzz"}))
	assert.Equal(t, "short text", e.Extract("short text", nil))
}

func TestExtractWindowAroundMatch(t *testing.T) {
	text := strings.Repeat("x", 100) + "needle" + strings.Repeat("y", 100)
	e := New(20)
	got := e.Extract(text, []string{"needle"})
	// match at 100, window starts at 90 and spans 20 characters
	assert.Equal(t, "..."+strings.Repeat("x", 10)+"<mark>needle</mark>"+strings.Repeat("y", 4)+"...", got)
}

func TestExtractUsesEarliestMatchAcrossTerms(t *testing.T) {
	text := strings.Repeat("a", 50) + "first" + strings.Repeat("b", 50) + "second" + strings.Repeat("c", 50)
	e := New(20)
	got := e.Extract(text, []string{"second", "first"})
	assert.Contains(t, got, "<mark>first</mark>")
	assert.NotContains(t, got, "second")
}

func TestExtractWindowAtStart(t *testing.T) {
	text := "needle " + strings.Repeat("z", 50)
	e := New(20)
	got := e.Extract(text, []string{"needle"})
	assert.True(t, strings.HasPrefix(got, "<mark>needle</mark>"))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestExtractPhrase(t *testing.T) {
	e := New(200)
	got := e.Extract("We study the Vector Space model; vector space rules.", []string{"vector space"})
	assert.Equal(t, "We study the <mark>Vector Space</mark> model; <mark>vector space</mark> rules.", got)
}

func TestExtractOverlappingTermsMerge(t *testing.T) {
	e := New(200)
	got := e.Extract("the marker text", []string{"mark", "marker", "ark"})
	assert.Equal(t, "the <mark>marker</mark> text", got)
	assert.Equal(t, 1, strings.Count(got, "<mark>"))
}

func TestExtractDuplicateTerms(t *testing.T) {
	e := New(200)
	got := e.Extract("cat cat", []string{"cat", "CAT", "cat"})
	assert.Equal(t, "<mark>cat</mark> <mark>cat</mark>", got)
}

func TestExtractUnicodeOffsets(t *testing.T) {
	e := New(8)
	got := e.Extract("ééééééé café ééééééé", []string{"CAFÉ"})
	assert.Equal(t, "...ééé <mark>café</mark>...", got)
}

func TestCustomMarkers(t *testing.T) {
	e := New(0, WithMarkers("[", "]"))
	assert.Equal(t, DefaultWindow, e.Window())
	assert.Equal(t, "a [b] c", e.Extract("a b c", []string{"b"}))
}

func TestTopKeywords(t *testing.T) {
	v := index.NewVector([]string{
		"retrieval retrieval ranking engine",
		"engine engine cooking",
	})
	kws := TopKeywords(v, 0, 10)
	require.Len(t, kws, 3)
	assert.Equal(t, "retrieval", kws[0].Term)
	for i := 1; i < len(kws); i++ {
		assert.GreaterOrEqual(t, kws[i-1].Weight, kws[i].Weight)
	}

	assert.Len(t, TopKeywords(v, 0, 1), 1)
	assert.Empty(t, TopKeywords(v, 5, 10))
	assert.Empty(t, TopKeywords(v, -1, 10))
	assert.Empty(t, TopKeywords(v, 0, 0))
}

func TestTopKeywordsTieBreakByVocabularyIndex(t *testing.T) {
	v := index.NewVector([]string{"zeta alpha mid", "other words"})
	kws := TopKeywords(v, 0, 3)
	require.Len(t, kws, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{kws[0].Term, kws[1].Term, kws[2].Term})
}

func TestTopKeywordsZeroVector(t *testing.T) {
	v := index.NewVector([]string{"the and of", "real content"})
	assert.Empty(t, TopKeywords(v, 0, 5))
}
