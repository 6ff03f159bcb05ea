// Package benchmark measures tokenizing, index builds and query latency over
// a synthetic documentation corpus.
//
// Run with:
//
//	go test -bench=. -benchmem ./test/benchmark/...
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

var vocabulary = []string{
	"compton", "propagator", "scattering", "process", "photon", "electron",
	"momentum", "phasespace", "differential", "cross", "section", "spin",
	"polarization", "lorentz", "vector", "model", "perturbative", "amplitude",
}

var categories = []ingestion.Category{
	ingestion.CategoryFunction, ingestion.CategoryMethod, ingestion.CategoryType,
	ingestion.CategorySection, ingestion.CategoryPage,
}

// corpus generates n records whose titles and texts mix the vocabulary so
// every term has many postings.
func corpus(n int) []ingestion.DocumentationRecord {
	records := make([]ingestion.DocumentationRecord, n)
	v := len(vocabulary)
	for i := range records {
		records[i] = ingestion.DocumentationRecord{
			Location: fmt.Sprintf("#QEDprocesses.%s_%d", vocabulary[i%v], i),
			Page:     fmt.Sprintf("page-%d", i/50),
			Title:    fmt.Sprintf("QEDprocesses.%s_%s", vocabulary[i%v], vocabulary[(i+1)%v]),
			Text: fmt.Sprintf("Return the %s %s of the %s for a given %s and %s, evaluated at the %s.",
				vocabulary[(i+2)%v], vocabulary[(i+3)%v], vocabulary[(i+4)%v],
				vocabulary[(i+5)%v], vocabulary[(i+6)%v], vocabulary[(i+7)%v]),
			Category: categories[i%len(categories)],
		}
	}
	return records
}

func buildIndex(b *testing.B, n int) *index.Index {
	b.Helper()
	idx, err := index.BuildRecords(corpus(n), tokenizer.Default())
	if err != nil {
		b.Fatal(err)
	}
	return idx
}
