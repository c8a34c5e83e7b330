// Package index builds the per-corpus ranking structures: BM25 term
// statistics and the sparse TF-IDF document matrix.
package index

import (
	"math"
)

const (
	k1 = 1.5
	b  = 0.75
)

// BM25 holds the term statistics of one corpus.
type BM25 struct {
	docFreqs []TermFreqs
	docLens  []int
	df       map[string]int
	idf      map[string]float64
	avgdl    float64
}

// NewBM25 builds BM25 statistics over the token lists of a corpus, one
// list per document in ID order.
func NewBM25(docs [][]string) *BM25 {
	idx := &BM25{
		docFreqs: make([]TermFreqs, len(docs)),
		docLens:  make([]int, len(docs)),
		df:       make(map[string]int),
		idf:      make(map[string]float64),
	}
	total := 0
	for i, tokens := range docs {
		tf := countTerms(tokens)
		idx.docFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		total += len(tokens)
		for term := range tf {
			idx.df[term]++
		}
	}
	if len(docs) > 0 {
		idx.avgdl = float64(total) / float64(len(docs))
	}
	n := int64(len(docs))
	for term, freq := range idx.df {
		idx.idf[term] = computeIDF(n, int64(freq))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *BM25) Len() int {
	return len(idx.docFreqs)
}

// AvgDocLen returns the mean document length in tokens.
func (idx *BM25) AvgDocLen() float64 {
	return idx.avgdl
}

// VocabularySize returns the number of distinct terms.
func (idx *BM25) VocabularySize() int {
	return len(idx.df)
}

// DF returns the number of documents containing term.
func (idx *BM25) DF(term string) int {
	return idx.df[term]
}

// IDF returns the inverse document frequency of term and whether the
// term occurs in the corpus.
func (idx *BM25) IDF(term string) (float64, bool) {
	v, ok := idx.idf[term]
	return v, ok
}

// Stats returns length information for one document.
func (idx *BM25) Stats(docID int) (DocStats, bool) {
	if docID < 0 || docID >= len(idx.docFreqs) {
		return DocStats{}, false
	}
	return DocStats{
		DocID:  docID,
		DocLen: idx.docLens[docID],
		Terms:  len(idx.docFreqs[docID]),
	}, true
}

// Score returns one BM25 score per document. Terms missing from the
// vocabulary contribute nothing. An empty index yields an empty slice.
func (idx *BM25) Score(queryTokens []string) []float64 {
	scores := make([]float64, len(idx.docFreqs))
	idx.ScoreRange(queryTokens, 0, len(idx.docFreqs), scores)
	return scores
}

// ScoreRange accumulates BM25 scores for documents [lo, hi) into
// out[lo:hi]. out must have at least hi elements.
func (idx *BM25) ScoreRange(queryTokens []string, lo, hi int, out []float64) {
	if idx.avgdl == 0 {
		return
	}
	for _, term := range queryTokens {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i := lo; i < hi; i++ {
			tf := idx.docFreqs[i][term]
			if tf == 0 {
				continue
			}
			out[i] += idf * computeTFNorm(float64(tf), float64(idx.docLens[i]), idx.avgdl)
		}
	}
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
