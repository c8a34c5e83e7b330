package index

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/tokenizer"
)

// wordPattern matches runs of at least two letters, digits or underscores.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Weight is one non-zero entry of a sparse vector.
type Weight struct {
	Index int
	Value float64
}

// SparseVector holds the non-zero entries of a vector ordered by Index.
type SparseVector []Weight

// Dot returns the inner product of two sparse vectors.
func (v SparseVector) Dot(o SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v) && j < len(o) {
		switch {
		case v[i].Index == o[j].Index:
			sum += v[i].Value * o[j].Value
			i++
			j++
		case v[i].Index < o[j].Index:
			i++
		default:
			j++
		}
	}
	return sum
}

// Vector is a TF-IDF vector space model over one corpus. Document vectors
// are L2-normalised, so the dot product with a normalised query is the
// cosine similarity.
type Vector struct {
	vocab map[string]int
	terms []string
	idf   []float64
	docs  []SparseVector
}

// Analyze splits text into the terms the vector model indexes: lower-cased
// word runs of two or more characters with stop-words removed.
func Analyze(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, w := range words {
		if !tokenizer.IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// NewVector fits the vocabulary and smoothed IDF weights on texts and
// returns the normalised document matrix.
func NewVector(texts []string) *Vector {
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		c := make(map[string]int)
		for _, term := range Analyze(text) {
			c[term]++
		}
		counts[i] = c
		for term := range c {
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vector{
		vocab: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
		docs:  make([]SparseVector, len(texts)),
	}
	n := float64(len(texts))
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	for i, c := range counts {
		v.docs[i] = v.weigh(c)
	}
	return v
}

// Available reports whether the model has any documents to score.
func (v *Vector) Available() bool {
	return len(v.docs) > 0
}

// Len returns the number of document vectors.
func (v *Vector) Len() int {
	return len(v.docs)
}

// VocabularySize returns the number of indexed terms.
func (v *Vector) VocabularySize() int {
	return len(v.terms)
}

// Term returns the vocabulary term at index i.
func (v *Vector) Term(i int) (string, bool) {
	if i < 0 || i >= len(v.terms) {
		return "", false
	}
	return v.terms[i], true
}

// Weights returns the TF-IDF vector of a document.
func (v *Vector) Weights(docID int) (SparseVector, bool) {
	if docID < 0 || docID >= len(v.docs) {
		return nil, false
	}
	return v.docs[docID], true
}

// Embed maps text into the fitted vector space. Terms outside the
// vocabulary are ignored.
func (v *Vector) Embed(text string) SparseVector {
	c := make(map[string]int)
	for _, term := range Analyze(text) {
		if _, ok := v.vocab[term]; ok {
			c[term]++
		}
	}
	return v.weigh(c)
}

// Score returns the cosine similarity between the query and each document.
func (v *Vector) Score(query string) []float64 {
	scores := make([]float64, len(v.docs))
	v.ScoreRange(v.Embed(query), 0, len(v.docs), scores)
	return scores
}

// ScoreRange writes the similarity of q with documents [lo, hi) into
// out[lo:hi].
func (v *Vector) ScoreRange(q SparseVector, lo, hi int, out []float64) {
	if len(q) == 0 {
		return
	}
	for i := lo; i < hi; i++ {
		out[i] = v.docs[i].Dot(q)
	}
}

func (v *Vector) weigh(counts map[string]int) SparseVector {
	vec := make(SparseVector, 0, len(counts))
	var norm float64
	for term, n := range counts {
		i := v.vocab[term]
		w := float64(n) * v.idf[i]
		vec = append(vec, Weight{Index: i, Value: w})
		norm += w * w
	}
	if norm == 0 {
		return vec[:0]
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].Value /= norm
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].Index < vec[j].Index })
	return vec
}
