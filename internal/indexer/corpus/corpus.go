// Package corpus holds the immutable document collection for one index
// generation.
package corpus

import (
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/tokenizer"
)

// DefaultMinTextLength is the number of characters a preprocessed text
// must exceed to be indexed.
const DefaultMinTextLength = 10

// Source is one extracted document as handed over by a loader.
type Source struct {
	Name string
	Path string
	Text string
}

// Document is an indexed document. ID is its position in the corpus and
// is only meaningful against the snapshot the corpus belongs to.
type Document struct {
	ID     int
	Name   string
	Path   string
	Text   string
	Tokens []string
}

// Corpus is an ordered, read-only list of documents.
type Corpus struct {
	docs        []Document
	totalTokens int
}

// New preprocesses sources in order and keeps those whose text is longer
// than minLength characters. IDs are assigned densely after filtering.
// A non-positive minLength selects DefaultMinTextLength.
func New(sources []Source, minLength int) *Corpus {
	if minLength <= 0 {
		minLength = DefaultMinTextLength
	}
	c := &Corpus{docs: make([]Document, 0, len(sources))}
	for _, src := range sources {
		text := tokenizer.Preprocess(src.Text)
		if utf8.RuneCountInString(text) <= minLength {
			continue
		}
		tokens := tokenizer.Tokenize(text)
		c.docs = append(c.docs, Document{
			ID:     len(c.docs),
			Name:   src.Name,
			Path:   src.Path,
			Text:   text,
			Tokens: tokens,
		})
		c.totalTokens += len(tokens)
	}
	return c
}

// Empty returns a corpus with no documents.
func Empty() *Corpus {
	return &Corpus{}
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.docs)
}

// Doc returns the document with the given ID.
func (c *Corpus) Doc(id int) (Document, bool) {
	if id < 0 || id >= len(c.docs) {
		return Document{}, false
	}
	return c.docs[id], true
}

// Docs returns the documents in ID order. Callers must not modify the
// returned slice.
func (c *Corpus) Docs() []Document {
	return c.docs
}

// Tokens returns every document's token list in ID order.
func (c *Corpus) Tokens() [][]string {
	out := make([][]string, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Tokens
	}
	return out
}

// Texts returns every document's preprocessed text in ID order.
func (c *Corpus) Texts() []string {
	out := make([]string, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Text
	}
	return out
}

// TotalTokens returns the token count summed over all documents.
func (c *Corpus) TotalTokens() int {
	return c.totalTokens
}

// AvgDocLen returns the mean token count, or 0 for an empty corpus.
func (c *Corpus) AvgDocLen() float64 {
	if len(c.docs) == 0 {
		return 0
	}
	return float64(c.totalTokens) / float64(len(c.docs))
}
