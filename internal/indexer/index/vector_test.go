package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
)

func norm(v SparseVector) float64 {
	return math.Sqrt(v.Dot(v))
}

func TestAnalyze(t *testing.T) {
	assert.Equal(t, []string{"quick", "brown", "fox"}, Analyze("The quick, brown fox!"))
	assert.Equal(t, []string{"snake_case", "42"}, Analyze("a snake_case 42 x"))
	assert.Empty(t, Analyze("the and of"))
}

func TestNewVectorVocabularyIsSorted(t *testing.T) {
	v := NewVector([]string{"zebra apple", "mango apple"})
	require.Equal(t, 3, v.VocabularySize())
	for i, want := range []string{"apple", "mango", "zebra"} {
		term, ok := v.Term(i)
		require.True(t, ok)
		assert.Equal(t, want, term)
	}
	_, ok := v.Term(3)
	assert.False(t, ok)
}

func TestDocumentVectorsAreNormalised(t *testing.T) {
	v := NewVector([]string{"the cat sat", "the dog ran", "cats and dogs"})
	for id := 0; id < v.Len(); id++ {
		w, ok := v.Weights(id)
		require.True(t, ok)
		assert.InDelta(t, 1.0, norm(w), 1e-12)
	}
}

func TestSmoothedIDF(t *testing.T) {
	v := NewVector([]string{"apple banana", "apple cherry"})
	// apple: df=2, banana: df=1
	w, ok := v.Weights(0)
	require.True(t, ok)
	require.Len(t, w, 2)
	idfApple := math.Log(3.0/3.0) + 1
	idfBanana := math.Log(3.0/2.0) + 1
	n := math.Sqrt(idfApple*idfApple + idfBanana*idfBanana)
	assert.InDelta(t, idfApple/n, w[0].Value, 1e-12)
	assert.InDelta(t, idfBanana/n, w[1].Value, 1e-12)
}

func TestVectorScore(t *testing.T) {
	v := NewVector([]string{"the cat sat", "the dog ran", "cats and dogs"})
	scores := v.Score("cat")
	require.Len(t, scores, 3)
	assert.InDelta(t, 1/math.Sqrt(2), scores[0], 1e-12)
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2])

	assert.Equal(t, []float64{0, 0, 0}, v.Score("unicorn"), "unseen terms contribute zero")
	assert.Equal(t, []float64{0, 0, 0}, v.Score("the"), "stop-words are not indexed")
}

func TestVectorIdenticalTextScoresOne(t *testing.T) {
	v := NewVector([]string{"vector space retrieval model", "probabilistic ranking"})
	scores := v.Score("Vector space retrieval model")
	assert.InDelta(t, 1.0, scores[0], 1e-12)
	assert.Zero(t, scores[1])
}

func TestVectorEmpty(t *testing.T) {
	v := NewVector(nil)
	assert.False(t, v.Available())
	assert.Empty(t, v.Score("anything"))
	_, ok := v.Weights(0)
	assert.False(t, ok)
}

func TestVectorZeroDocument(t *testing.T) {
	v := NewVector([]string{"the and of it", "real words here"})
	w, ok := v.Weights(0)
	require.True(t, ok)
	assert.Empty(t, w)
}

func TestBuildSnapshot(t *testing.T) {
	c := corpus.New([]corpus.Source{
		{Name: "a", Text: "the cat sat"},
		{Name: "b", Text: "the dog ran"},
	}, 0)
	snap := Build(c, 7)
	assert.Equal(t, uint64(7), snap.Generation)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 2, snap.BM25.Len())
	assert.Equal(t, 2, snap.Vector.Len())

	empty := EmptySnapshot()
	assert.Zero(t, empty.Len())
	assert.False(t, empty.Vector.Available())
}

func TestFingerprintCoversPath(t *testing.T) {
	build := func(dir string) *Snapshot {
		return Build(corpus.New([]corpus.Source{
			{Name: "notes.txt", Path: dir + "/notes.txt", Text: "retrieval engine notes"},
		}, 0), 1)
	}
	a, b := build("/docs/old"), build("/docs/new")
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Fingerprint, build("/docs/old").Fingerprint)
}

func TestSparseDot(t *testing.T) {
	a := SparseVector{{Index: 0, Value: 1}, {Index: 2, Value: 2}, {Index: 5, Value: 3}}
	b := SparseVector{{Index: 2, Value: 4}, {Index: 3, Value: 1}, {Index: 5, Value: 1}}
	assert.InDelta(t, 11.0, a.Dot(b), 1e-12)
	assert.Zero(t, a.Dot(nil))
}
