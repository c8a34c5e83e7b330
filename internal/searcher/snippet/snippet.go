// Package snippet cuts highlighted excerpts out of document text and
// extracts per-document keywords from the TF-IDF model.
package snippet

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/tokenizer"
)

const (
	// DefaultWindow is the excerpt length in characters.
	DefaultWindow = 200
	ellipsis      = "..."
)

// Extractor produces snippets. The zero value is not usable; call New.
type Extractor struct {
	window int
	open   string
	close  string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMarkers sets the strings wrapped around highlighted matches.
func WithMarkers(open, close string) Option {
	return func(e *Extractor) {
		e.open = open
		e.close = close
	}
}

// New creates an Extractor with the given window. A non-positive window
// selects DefaultWindow.
func New(window int, opts ...Option) *Extractor {
	if window <= 0 {
		window = DefaultWindow
	}
	e := &Extractor{window: window, open: "<mark>", close: "</mark>"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window returns the excerpt length in characters.
func (e *Extractor) Window() int {
	return e.window
}

// Extract returns an excerpt of text around the earliest case-insensitive
// occurrence of any of terms, with every occurrence of every term inside
// the excerpt highlighted. Matching is by substring, so a term also
// highlights inside longer words. Without a match the excerpt is the
// start of the text.
func (e *Extractor) Extract(text string, terms []string) string {
	runes := []rune(text)
	folded := tokenizer.FoldRunes(text)
	needles := foldTerms(terms)

	pos := -1
	for _, n := range needles {
		if idx := tokenizer.IndexFold(folded, n, 0); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}

	start := 0
	if pos >= 0 {
		start = max(0, pos-e.window/2)
	}
	end := min(len(runes), start+e.window)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	e.highlight(&sb, runes[start:end], folded[start:end], needles)
	if end < len(runes) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

type span struct{ start, end int }

func (e *Extractor) highlight(sb *strings.Builder, runes, folded []rune, needles [][]rune) {
	spans := make([]span, 0)
	for _, n := range needles {
		from := 0
		for {
			idx := tokenizer.IndexFold(folded, n, from)
			if idx < 0 {
				break
			}
			spans = append(spans, span{idx, idx + len(n)})
			from = idx + len(n)
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := make([]span, 0, len(spans))
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start < merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, s.end)
			continue
		}
		merged = append(merged, s)
	}

	cursor := 0
	for _, s := range merged {
		sb.WriteString(string(runes[cursor:s.start]))
		sb.WriteString(e.open)
		sb.WriteString(string(runes[s.start:s.end]))
		sb.WriteString(e.close)
		cursor = s.end
	}
	sb.WriteString(string(runes[cursor:]))
}

// foldTerms folds and de-duplicates terms, dropping empty ones.
func foldTerms(terms []string) [][]rune {
	seen := make(map[string]struct{}, len(terms))
	out := make([][]rune, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		f := tokenizer.FoldRunes(t)
		key := string(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
