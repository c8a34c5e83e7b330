// Package tokenizer provides text normalisation for the search engine.
// Preprocess keeps display text intact apart from whitespace; the index
// path lower-cases input, strips ASCII punctuation and splits on
// whitespace. No stemming is applied.
package tokenizer

import (
	"strings"
)

// asciiPunctuation is the set removed by NormalizeForIndex. Unicode
// punctuation is left in place.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var punctStripper = func() *strings.Replacer {
	pairs := make([]string, 0, len(asciiPunctuation)*2)
	for _, c := range asciiPunctuation {
		pairs = append(pairs, string(c), "")
	}
	return strings.NewReplacer(pairs...)
}()

// Preprocess replaces carriage returns and newlines with spaces, collapses
// whitespace runs to a single space and trims the result. Case and
// punctuation are preserved for snippets and phrase matching.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeForIndex lower-cases text and removes ASCII punctuation.
func NormalizeForIndex(text string) string {
	return punctStripper.Replace(strings.ToLower(text))
}

// Tokenize returns the whitespace-separated terms of the normalised text.
// Empty tokens never appear in the result.
func Tokenize(text string) []string {
	return strings.Fields(NormalizeForIndex(text))
}

// FilterStopwords removes stop-words from tokens. When every token is a
// stop-word the input is returned unchanged so the query is never emptied.
func FilterStopwords(tokens []string) []string {
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !IsStopword(t) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return tokens
	}
	return filtered
}
