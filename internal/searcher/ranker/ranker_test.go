package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankScoresOrderingAndTieBreak(t *testing.T) {
	scores := []float64{0.5, 0.9, 0.5, 0, -1, 0.9}
	got := RankScores(scores, 10)
	assert.Equal(t, []ScoredDoc{
		{DocID: 1, Score: 0.9},
		{DocID: 5, Score: 0.9},
		{DocID: 0, Score: 0.5},
		{DocID: 2, Score: 0.5},
	}, got)
}

func TestRankLimit(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3}
	assert.Equal(t, []ScoredDoc{{DocID: 2, Score: 0.3}}, RankScores(scores, 1))
	assert.Empty(t, RankScores(scores, 0))
	assert.Empty(t, RankScores(scores, -3))
	assert.Len(t, RankScores(scores, 100), 3)
}

func TestCollectRange(t *testing.T) {
	scores := []float64{1, 0, 2, 3}
	assert.Equal(t, []ScoredDoc{{DocID: 2, Score: 2}}, Collect(scores, 1, 3))
	assert.Empty(t, Collect(nil, 0, 0))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.123456))
	assert.Equal(t, 1.0, Round(0.99999))
	assert.Equal(t, 0.0, Round(0.00004))
}
