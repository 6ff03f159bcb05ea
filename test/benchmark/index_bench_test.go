package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

// BenchmarkBuild measures full index builds at several corpus sizes.
func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			records := corpus(n)
			tok := tokenizer.Default()
			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				store := ingestion.NewStore(records)
				if _, err := index.Build(store, tok, 1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLookup measures exact term lookup over 10 000 records.
func BenchmarkLookup(b *testing.B) {
	idx := buildIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		_ = idx.Lookup(vocabulary[i%len(vocabulary)])
		i++
	}
}

// BenchmarkExpand compares vocabulary expansion per match mode.
func BenchmarkExpand(b *testing.B) {
	idx := buildIndex(b, 10000)
	for _, mode := range []index.MatchMode{index.MatchExact, index.MatchPrefix, index.MatchSubstring} {
		b.Run(mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = idx.Expand("pro", mode)
			}
		})
	}
}
