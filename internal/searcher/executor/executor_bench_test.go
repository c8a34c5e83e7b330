package executor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
)

var benchWords = []string{
	"search", "index", "ranking", "document", "query", "vector", "snippet",
	"keyword", "corpus", "phrase", "token", "weight", "cosine", "frequency",
	"retrieval", "engine", "normalize", "score", "length", "term",
}

func benchSnapshot(b *testing.B, numDocs int) *index.Snapshot {
	b.Helper()
	rng := rand.New(rand.NewSource(7))
	sources := make([]corpus.Source, numDocs)
	for i := range sources {
		words := make([]string, 200)
		for j := range words {
			words[j] = benchWords[rng.Intn(len(benchWords))]
		}
		sources[i] = corpus.Source{Name: fmt.Sprintf("doc-%d.txt", i), Text: strings.Join(words, " ")}
	}
	return index.Build(corpus.New(sources, corpus.DefaultMinTextLength), 1)
}

func BenchmarkParse(b *testing.B) {
	queries := map[string]string{
		"single": "retrieval",
		"tokens": "ranking engine with cosine scores",
		"phrase": `"query vector"`,
		"long":   "search index ranking document query vector snippet keyword corpus phrase",
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = parser.Parse(q)
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	for _, numDocs := range []int{100, 1000, 5000} {
		snap := benchSnapshot(b, numDocs)
		plan := parser.Parse("ranking engine")
		for _, method := range []parser.Method{parser.MethodTFIDF, parser.MethodBM25} {
			b.Run(fmt.Sprintf("%s/docs_%d", method, numDocs), func(b *testing.B) {
				ex := New()
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := ex.Execute(context.Background(), snap, plan, method, 10); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkExecutePartitioned(b *testing.B) {
	snap := benchSnapshot(b, 5000)
	plan := parser.Parse("retrieval score")
	for _, partitions := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("partitions_%d", partitions), func(b *testing.B) {
			ex := New(WithPartitions(1, partitions))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ex.Execute(context.Background(), snap, plan, parser.MethodBM25, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteParallel(b *testing.B) {
	snap := benchSnapshot(b, 2000)
	plan := parser.Parse("keyword frequency")
	ex := New(WithPartitions(500, 4))

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := ex.Execute(context.Background(), snap, plan, parser.MethodTFIDF, 10); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkPhrase(b *testing.B) {
	snap := benchSnapshot(b, 1000)
	plan := parser.Parse(`"ranking engine"`)
	ex := New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ex.Execute(context.Background(), snap, plan, parser.MethodBM25, 10); err != nil {
			b.Fatal(err)
		}
	}
}
