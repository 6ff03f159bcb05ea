// Package executor runs a parsed query against one published index and
// shapes the ranked hits into results with snippets.
package executor

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type Options struct {
	// Limit caps the number of results; 0 returns every match.
	Limit int
	Mode  index.MatchMode
	// Categories restricts results to the listed categories when non-empty.
	Categories []ingestion.Category
	// Weights overrides ranker.DefaultWeights when non-nil.
	Weights *ranker.Weights
	Snippet snippet.Formatter
}

type Result struct {
	RecordID     ingestion.RecordID `json:"record_id"`
	Location     string             `json:"location"`
	Page         string             `json:"page"`
	Title        string             `json:"title"`
	Category     ingestion.Category `json:"category"`
	Score        float64            `json:"score"`
	MatchedTerms int                `json:"matched_terms"`
	Field        ingestion.Field    `json:"field"`
	Snippet      snippet.Snippet    `json:"snippet"`
}

type SearchResult struct {
	Query      string   `json:"query"`
	Terms      []string `json:"terms"`
	Excluded   []string `json:"excluded,omitempty"`
	Mode       string   `json:"mode"`
	Generation uint64   `json:"generation"`
	TotalHits  int      `json:"total_hits"`
	Results    []Result `json:"results"`
	// TermStats counts the records each query term matched before
	// exclusions and limits.
	TermStats map[string]int `json:"term_stats"`
}

// Search answers query from idx. A nil or unbuilt index yields
// *index.NotReadyError; a query with no usable terms yields no results and
// no error. Search only reads idx and is safe for concurrent use.
func Search(idx *index.Index, query string, opts Options) ([]Result, error) {
	if err := idx.CheckReady(); err != nil {
		return nil, err
	}
	return run(idx, parser.Parse(idx.Tokenizer(), query), opts).Results, nil
}

func run(idx *index.Index, plan *parser.QueryPlan, opts Options) *SearchResult {
	out := &SearchResult{
		Query:      plan.RawQuery,
		Terms:      plan.Terms,
		Excluded:   plan.ExcludeTerms,
		Mode:       opts.Mode.String(),
		Generation: idx.Generation(),
		Results:    []Result{},
		TermStats:  make(map[string]int, len(plan.Terms)),
	}
	if plan.Empty() {
		return out
	}

	weights := ranker.DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	var allowed map[ingestion.Category]bool
	if len(opts.Categories) > 0 {
		allowed = make(map[ingestion.Category]bool, len(opts.Categories))
		for _, c := range opts.Categories {
			allowed[c] = true
		}
	}
	categoryOf := func(id ingestion.RecordID) ingestion.Category {
		rec, _ := idx.Record(id)
		return rec.Category
	}

	acc := ranker.NewAccumulator(weights)
	for qi, term := range plan.Terms {
		matched := make(map[ingestion.RecordID]struct{})
		for _, entry := range idx.Expand(term, opts.Mode) {
			factor := weights.MatchFactor(term, entry.Term, opts.Mode)
			for _, p := range entry.Postings {
				if allowed != nil && !allowed[categoryOf(p.RecordID)] {
					continue
				}
				matched[p.RecordID] = struct{}{}
				acc.Add(qi, p, factor)
			}
		}
		out.TermStats[term] = len(matched)
	}
	for _, term := range plan.ExcludeTerms {
		for _, entry := range idx.Expand(term, opts.Mode) {
			for _, p := range entry.Postings {
				acc.Remove(p.RecordID)
			}
		}
	}
	out.TotalHits = acc.Len()

	hits := acc.Rank(categoryOf, opts.Limit)
	out.Results = make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, _ := idx.Record(h.RecordID)
		field := h.Field()
		terms := make([]string, len(h.Terms))
		for i, qi := range h.Terms {
			terms[i] = plan.Terms[qi]
		}
		out.Results = append(out.Results, Result{
			RecordID:     h.RecordID,
			Location:     rec.Location,
			Page:         rec.Page,
			Title:        rec.Title,
			Category:     rec.Category,
			Score:        h.Score,
			MatchedTerms: h.MatchedTerms,
			Field:        field,
			Snippet:      opts.Snippet.Format(rec.FieldValue(field), terms),
		})
	}
	return out
}

// IndexProvider is satisfied by *indexer.Engine.
type IndexProvider interface {
	Current() (*index.Index, error)
}

// Executor runs queries against whatever index the provider currently
// publishes.
type Executor struct {
	provider IndexProvider
	defaults Options
}

// New returns an Executor. defaults supplies Weights and Snippet for
// queries that leave them unset.
func New(provider IndexProvider, defaults Options) *Executor {
	return &Executor{
		provider: provider,
		defaults: defaults,
	}
}

// Plan pins the current index and parses query with its tokenizer. The
// caller must run the plan against the returned index.
func (e *Executor) Plan(query string) (*index.Index, *parser.QueryPlan, error) {
	idx, err := e.provider.Current()
	if err != nil {
		return nil, nil, err
	}
	return idx, parser.Parse(idx.Tokenizer(), query), nil
}

// Run executes plan against idx. It checks ctx once before starting, so a
// superseded query that has already been cancelled does no work.
func (e *Executor) Run(ctx context.Context, idx *index.Index, plan *parser.QueryPlan, opts Options) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := idx.CheckReady(); err != nil {
		return nil, err
	}
	if opts.Weights == nil {
		opts.Weights = e.defaults.Weights
	}
	if opts.Snippet == (snippet.Formatter{}) {
		opts.Snippet = e.defaults.Snippet
	}
	start := time.Now()
	result := run(idx, plan, opts)
	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"excluded", plan.ExcludeTerms,
		"mode", result.Mode,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"duration_us", time.Since(start).Microseconds(),
	)
	return result, nil
}

// Execute plans and runs query in one step.
func (e *Executor) Execute(ctx context.Context, query string, opts Options) (*SearchResult, error) {
	idx, plan, err := e.Plan(query)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, idx, plan, opts)
}
