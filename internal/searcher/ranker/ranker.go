// Package ranker accumulates weighted term matches per record and orders
// the matching records.
package ranker

import (
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Weights control scoring. Title must weigh at least as much as Text, and
// Exact at least as much as Prefix and Substring, for title and exact
// matches to rank first.
type Weights struct {
	Title     float64
	Text      float64
	Exact     float64
	Prefix    float64
	Substring float64
	// CategoryBoosts multiplies the final score of records in a category.
	CategoryBoosts map[ingestion.Category]float64
}

func DefaultWeights() Weights {
	return Weights{
		Title:     5,
		Text:      1,
		Exact:     1,
		Prefix:    0.8,
		Substring: 0.5,
	}
}

// WeightsFromConfig maps the search section of the service config onto
// Weights. Exact matches always weigh 1.
func WeightsFromConfig(c config.SearchConfig) Weights {
	w := DefaultWeights()
	w.Title = c.TitleWeight
	w.Text = c.TextWeight
	w.Prefix = c.PrefixDecay
	w.Substring = c.SubstringDecay
	if len(c.CategoryBoosts) > 0 {
		w.CategoryBoosts = make(map[ingestion.Category]float64, len(c.CategoryBoosts))
		for cat, b := range c.CategoryBoosts {
			w.CategoryBoosts[ingestion.Category(cat)] = b
		}
	}
	return w
}

// Field returns the weight of a field.
func (w Weights) Field(f ingestion.Field) float64 {
	if f == ingestion.FieldTitle {
		return w.Title
	}
	return w.Text
}

// MatchFactor returns the multiplier for an indexed term reached from a
// query term. Any non-identical term is a prefix or substring expansion.
func (w Weights) MatchFactor(queryTerm, indexedTerm string, mode index.MatchMode) float64 {
	switch {
	case queryTerm == indexedTerm:
		return w.Exact
	case mode == index.MatchSubstring:
		return w.Substring
	default:
		return w.Prefix
	}
}

// Boost returns the category multiplier, 1 when none is configured.
func (w Weights) Boost(c ingestion.Category) float64 {
	if b, ok := w.CategoryBoosts[c]; ok && b > 0 {
		return b
	}
	return 1
}

type Hit struct {
	RecordID     ingestion.RecordID
	Score        float64
	MatchedTerms int
	// FieldScores splits Score by field before the category boost.
	FieldScores [2]float64
	// Terms holds the indices of the matched query terms, ascending.
	Terms []int
}

// Field is the field contributing most to the score; title wins ties.
func (h *Hit) Field() ingestion.Field {
	if h.FieldScores[ingestion.FieldText] > h.FieldScores[ingestion.FieldTitle] {
		return ingestion.FieldText
	}
	return ingestion.FieldTitle
}

// Accumulator collects scores for one query. It is not safe for concurrent
// use; each query builds its own.
type Accumulator struct {
	weights Weights
	hits    map[ingestion.RecordID]*Hit
}

func NewAccumulator(w Weights) *Accumulator {
	return &Accumulator{
		weights: w,
		hits:    make(map[ingestion.RecordID]*Hit),
	}
}

// Add credits one posting reached from query term number term. Callers add
// query terms in ascending order.
func (a *Accumulator) Add(term int, p index.Posting, factor float64) {
	h, ok := a.hits[p.RecordID]
	if !ok {
		h = &Hit{RecordID: p.RecordID}
		a.hits[p.RecordID] = h
	}
	if n := len(h.Terms); n == 0 || h.Terms[n-1] != term {
		h.Terms = append(h.Terms, term)
		h.MatchedTerms++
	}
	h.FieldScores[p.Field] += a.weights.Field(p.Field) * float64(p.Frequency) * factor
}

// Remove drops a record, used for exclusions and category filters.
func (a *Accumulator) Remove(id ingestion.RecordID) {
	delete(a.hits, id)
}

func (a *Accumulator) Len() int {
	return len(a.hits)
}

// Rank applies category boosts via categoryOf, sorts by matched query terms
// descending, then score descending, then RecordID ascending, and truncates
// to limit when limit > 0.
func (a *Accumulator) Rank(categoryOf func(ingestion.RecordID) ingestion.Category, limit int) []Hit {
	result := make([]Hit, 0, len(a.hits))
	for _, h := range a.hits {
		score := h.FieldScores[ingestion.FieldTitle] + h.FieldScores[ingestion.FieldText]
		if categoryOf != nil {
			score *= a.weights.Boost(categoryOf(h.RecordID))
		}
		h.Score = math.Round(score*10000) / 10000
		result = append(result, *h)
	}
	slices.SortFunc(result, Compare)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Compare orders hits best first.
func Compare(x, y Hit) int {
	if x.MatchedTerms != y.MatchedTerms {
		return y.MatchedTerms - x.MatchedTerms
	}
	if x.Score != y.Score {
		if x.Score > y.Score {
			return -1
		}
		return 1
	}
	return int(x.RecordID) - int(y.RecordID)
}
