// Package parser turns a raw query string into a QueryPlan: it detects
// quoted exact-phrase queries and produces the stop-word filtered terms
// used for tokenized ranking.
package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/tokenizer"
)

// Mode selects how a query is matched against documents.
type Mode int

const (
	ModeTokens Mode = iota
	ModePhrase
)

func (m Mode) String() string {
	if m == ModePhrase {
		return "phrase"
	}
	return "tokens"
}

// Method selects the ranking model for tokenized queries.
type Method int

const (
	MethodTFIDF Method = iota
	MethodBM25
)

// ParseMethod resolves a method name. Matching is case-insensitive and
// anything other than "bm25" selects TF-IDF.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), "bm25") {
		return MethodBM25
	}
	return MethodTFIDF
}

func (m Method) String() string {
	if m == MethodBM25 {
		return "bm25"
	}
	return "tfidf"
}

// QueryPlan is the parsed form of a query.
type QueryPlan struct {
	RawQuery string
	Mode     Mode
	// Plain is the whitespace-normalised query, used as input to the
	// vector model.
	Plain string
	// Phrase is the unquoted phrase in ModePhrase. Inner whitespace runs
	// are collapsed but a leading or trailing space is kept.
	Phrase string
	// Terms are the normalised, stop-word filtered query tokens in
	// ModeTokens.
	Terms []string
}

// Empty reports whether the plan cannot match anything.
func (p *QueryPlan) Empty() bool {
	if p.Mode == ModePhrase {
		return p.Phrase == ""
	}
	return len(p.Terms) == 0
}

// HighlightTerms returns the strings a snippet should locate and
// highlight for this plan.
func (p *QueryPlan) HighlightTerms() []string {
	if p.Mode == ModePhrase {
		if p.Phrase == "" {
			return nil
		}
		return []string{p.Phrase}
	}
	return p.Terms
}

// Parse builds a QueryPlan. A trimmed query of at least two characters
// that starts and ends with a double quote is an exact-phrase query.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	trimmed := strings.TrimSpace(query)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		plan.Mode = ModePhrase
		plan.Phrase = phraseText(trimmed[1 : len(trimmed)-1])
		plan.Plain = plan.Phrase
		return plan
	}
	plan.Mode = ModeTokens
	plan.Plain = tokenizer.Preprocess(query)
	plan.Terms = tokenizer.FilterStopwords(tokenizer.Tokenize(plan.Plain))
	return plan
}

// phraseText collapses every whitespace run in s to a single space without
// trimming, so " cat " still needs a space on both sides. A phrase of only
// whitespace is empty.
func phraseText(s string) string {
	inner := tokenizer.Preprocess(s)
	if inner == "" {
		return ""
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		inner = " " + inner
	}
	if r, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(r) {
		inner += " "
	}
	return inner
}
