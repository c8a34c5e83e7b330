package snippet

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
)

// Keyword is a vocabulary term with its TF-IDF weight in one document.
type Keyword struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopKeywords returns up to n terms of the document's TF-IDF vector with
// positive weight, heaviest first, ties broken by vocabulary order. An
// unknown document or an empty vector yields an empty list.
func TopKeywords(v *index.Vector, docID int, n int) []Keyword {
	if v == nil || n <= 0 {
		return []Keyword{}
	}
	weights, ok := v.Weights(docID)
	if !ok {
		return []Keyword{}
	}
	candidates := make(index.SparseVector, 0, len(weights))
	for _, w := range weights {
		if w.Value > 0 {
			candidates = append(candidates, w)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].Index < candidates[j].Index
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]Keyword, 0, len(candidates))
	for _, w := range candidates {
		term, _ := v.Term(w.Index)
		out = append(out, Keyword{Term: term, Weight: w.Value})
	}
	return out
}
