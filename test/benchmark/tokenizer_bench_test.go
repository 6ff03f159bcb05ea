package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

const docText = `total_cross_section(proc::AbstractProcessDefinition, model::AbstractModelDefinition,
in_phase_space_def::AbstractPhasespaceDefinition, in_phase_space::AbstractVecOrMat{T}) where {T<:QEDbase.AbstractFourMomentum}
Return the total cross section for a given combination of scattering process and compute model,
evaluated at the particle momenta.`

func BenchmarkTerms(b *testing.B) {
	tok := tokenizer.Default()
	b.ReportAllocs()
	b.SetBytes(int64(len(docText)))
	for b.Loop() {
		_ = tok.Terms(docText)
	}
}

func BenchmarkTermsStemmed(b *testing.B) {
	tok := tokenizer.New(tokenizer.Options{Stem: true})
	b.ReportAllocs()
	b.SetBytes(int64(len(docText)))
	for b.Loop() {
		_ = tok.Terms(docText)
	}
}

func BenchmarkTermsLargeText(b *testing.B) {
	text := strings.Repeat(docText+" ", 100)
	tok := tokenizer.Default()
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		_ = tok.Terms(text)
	}
}

func BenchmarkFold(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = tokenizer.Fold("Ångström Scattering Überblick")
	}
}
