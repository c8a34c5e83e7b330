package index

// TermFreqs maps a term to its number of occurrences in one document.
type TermFreqs map[string]int

// DocStats summarises one document of a BM25 index.
type DocStats struct {
	DocID  int
	DocLen int
	Terms  int
}

func countTerms(tokens []string) TermFreqs {
	tf := make(TermFreqs, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}
