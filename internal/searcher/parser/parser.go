// Package parser turns a raw query string into the normalised terms the
// index understands.
package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// QueryPlan holds the distinct query terms in first-seen order. A record
// containing any ExcludeTerms match is dropped from the results.
type QueryPlan struct {
	Terms        []string `json:"terms"`
	ExcludeTerms []string `json:"exclude_terms,omitempty"`
	RawQuery     string   `json:"raw_query"`
}

// Empty reports whether the plan has no positive terms. An empty plan
// yields no results.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse tokenizes query with tok, which must be the tokenizer the index was
// built with. A word prefixed with '-' or preceded by the upper-case word NOT
// contributes exclusions instead of terms. Everything else is split exactly
// as the tokenizer splits record text, so "QEDprocesses.Compton" yields the
// terms qedprocesses and compton.
func Parse(tok *tokenizer.Tokenizer, query string) *QueryPlan {
	plan := &QueryPlan{RawQuery: query}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		if word == "NOT" {
			excludeNext = true
			continue
		}
		exclude := excludeNext
		excludeNext = false
		if len(word) > 1 && word[0] == '-' {
			exclude = true
			word = word[1:]
		}
		for term := range tok.Tokens(word) {
			if exclude {
				plan.ExcludeTerms = appendUnique(plan.ExcludeTerms, term.Term)
			} else {
				plan.Terms = appendUnique(plan.Terms, term.Term)
			}
		}
	}
	return plan
}

func appendUnique(terms []string, term string) []string {
	if slices.Contains(terms, term) {
		return terms
	}
	return append(terms, term)
}
