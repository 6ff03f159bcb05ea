package parser

import (
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

func TestParse(t *testing.T) {
	tok := tokenizer.Default()
	tests := []struct {
		query    string
		terms    []string
		excludes []string
	}{
		{"Compton", []string{"compton"}, nil},
		{"QEDprocesses.Compton", []string{"qedprocesses", "compton"}, nil},
		{"compton Compton COMPTON", []string{"compton"}, nil},
		{"the and of", nil, nil},
		{"", nil, nil},
		{"   ", nil, nil},
		{"propagator -photon", []string{"propagator"}, []string{"photon"}},
		{"propagator NOT photon spin", []string{"propagator", "spin"}, []string{"photon"}},
		{"not propagator", []string{"propagator"}, nil},
		{"-", nil, nil},
		{"Café", []string{"cafe"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan := Parse(tok, tt.query)
			if !slices.Equal(plan.Terms, tt.terms) {
				t.Errorf("Terms = %v, want %v", plan.Terms, tt.terms)
			}
			if !slices.Equal(plan.ExcludeTerms, tt.excludes) {
				t.Errorf("ExcludeTerms = %v, want %v", plan.ExcludeTerms, tt.excludes)
			}
			if plan.RawQuery != tt.query {
				t.Errorf("RawQuery = %q", plan.RawQuery)
			}
			if plan.Empty() != (len(tt.terms) == 0) {
				t.Errorf("Empty() = %v", plan.Empty())
			}
		})
	}
}

func TestParseMatchesTokenizer(t *testing.T) {
	tok := tokenizer.Default()
	for _, q := range []string{"scattering process setup", "Lorentz-vector in_phase_space"} {
		plan := Parse(tok, q)
		if !slices.Equal(plan.Terms, tok.Terms(q)) {
			t.Errorf("Parse(%q).Terms = %v, tokenizer gives %v", q, plan.Terms, tok.Terms(q))
		}
	}
}
