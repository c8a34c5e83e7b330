package index

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
)

// Snapshot is a corpus together with the indexes derived from it. It is
// built in one piece and never modified afterwards; a refresh replaces
// the whole value.
type Snapshot struct {
	Generation uint64
	// Fingerprint identifies the corpus content independently of the
	// generation: equal fingerprints mean equal documents (name, path and
	// text) in equal order.
	Fingerprint uint64
	Corpus      *corpus.Corpus
	BM25        *BM25
	Vector      *Vector
	BuiltAt     time.Time
}

// Build derives both indexes from c.
func Build(c *corpus.Corpus, generation uint64) *Snapshot {
	if c == nil {
		c = corpus.Empty()
	}
	return &Snapshot{
		Generation:  generation,
		Fingerprint: fingerprint(c),
		Corpus:      c,
		BM25:        NewBM25(c.Tokens()),
		Vector:      NewVector(c.Texts()),
		BuiltAt:     time.Now().UTC(),
	}
}

func fingerprint(c *corpus.Corpus) uint64 {
	d := xxhash.New()
	for _, doc := range c.Docs() {
		_, _ = d.WriteString(strconv.Itoa(len(doc.Name)))
		_, _ = d.WriteString(doc.Name)
		_, _ = d.WriteString(strconv.Itoa(len(doc.Path)))
		_, _ = d.WriteString(doc.Path)
		_, _ = d.WriteString(strconv.Itoa(len(doc.Text)))
		_, _ = d.WriteString(doc.Text)
	}
	return d.Sum64()
}

// EmptySnapshot returns a generation-0 snapshot with no documents.
func EmptySnapshot() *Snapshot {
	return Build(corpus.Empty(), 0)
}

// Len returns the number of documents in the snapshot.
func (s *Snapshot) Len() int {
	return s.Corpus.Len()
}
