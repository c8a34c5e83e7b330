// Package ranker turns per-document score vectors into ordered result
// lists. Ordering is score descending with ties broken by ascending
// document ID.
package ranker

import (
	"math"
	"sort"
)

// ScoredDoc is a document ID with its unrounded score.
type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Less reports whether a ranks before b.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Collect returns the documents in scores[lo:hi] with a strictly positive
// score. The index into scores is the document ID.
func Collect(scores []float64, lo, hi int) []ScoredDoc {
	result := make([]ScoredDoc, 0)
	for i := lo; i < hi; i++ {
		if scores[i] > 0 {
			result = append(result, ScoredDoc{DocID: i, Score: scores[i]})
		}
	}
	return result
}

// Rank sorts docs in ranking order and truncates to limit. A non-positive
// limit yields an empty list.
func Rank(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit <= 0 {
		return []ScoredDoc{}
	}
	sort.Slice(docs, func(i, j int) bool {
		return Less(docs[i], docs[j])
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// RankScores is Collect over the whole slice followed by Rank.
func RankScores(scores []float64, limit int) []ScoredDoc {
	return Rank(Collect(scores, 0, len(scores)), limit)
}

// Round rounds a score to four decimal places for presentation.
func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}
