package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePhrase(t *testing.T) {
	plan := Parse(`  "The  Cat"  `)
	assert.Equal(t, ModePhrase, plan.Mode)
	assert.Equal(t, "The Cat", plan.Phrase)
	assert.Empty(t, plan.Terms)
	assert.False(t, plan.Empty())
	assert.Equal(t, []string{"The Cat"}, plan.HighlightTerms())
}

func TestParsePhraseKeepsEdgeSpaces(t *testing.T) {
	assert.Equal(t, " cat ", Parse(`" cat "`).Phrase)
	assert.Equal(t, " dog ran ", Parse("\"\tdog\n  ran \"").Phrase)
	assert.Equal(t, "cat ", Parse(`"cat   "`).Phrase)

	blank := Parse(`"   "`)
	assert.Equal(t, ModePhrase, blank.Mode)
	assert.True(t, blank.Empty())
}

func TestParseEmptyPhrase(t *testing.T) {
	plan := Parse(`""`)
	assert.Equal(t, ModePhrase, plan.Mode)
	assert.True(t, plan.Empty())
	assert.Nil(t, plan.HighlightTerms())
}

func TestParseSingleQuoteIsNotPhrase(t *testing.T) {
	plan := Parse(`"`)
	assert.Equal(t, ModeTokens, plan.Mode)
	assert.True(t, plan.Empty())
}

func TestParseUnbalancedQuotes(t *testing.T) {
	plan := Parse(`"vector space`)
	assert.Equal(t, ModeTokens, plan.Mode)
	assert.Equal(t, []string{"vector", "space"}, plan.Terms)
}

func TestParseTokens(t *testing.T) {
	plan := Parse("The scoring of\nterm weighting!")
	assert.Equal(t, ModeTokens, plan.Mode)
	assert.Equal(t, "The scoring of term weighting!", plan.Plain)
	assert.Equal(t, []string{"scoring", "term", "weighting"}, plan.Terms)
}

func TestParseAllStopwordsFallsBack(t *testing.T) {
	plan := Parse("the and of")
	assert.Equal(t, []string{"the", "and", "of"}, plan.Terms)
	assert.False(t, plan.Empty())
}

func TestParseDegenerate(t *testing.T) {
	for _, q := range []string{"", "   ", "?!.,"} {
		assert.True(t, Parse(q).Empty(), "query %q", q)
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{
		"bm25":    MethodBM25,
		"BM25":    MethodBM25,
		" bm25 ":  MethodBM25,
		"tfidf":   MethodTFIDF,
		"":        MethodTFIDF,
		"unknown": MethodTFIDF,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMethod(in), "method %q", in)
	}
	assert.Equal(t, "bm25", MethodBM25.String())
	assert.Equal(t, "tfidf", MethodTFIDF.String())
}
