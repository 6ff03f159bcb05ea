// Package index holds the immutable inverted index built from a record
// store. An Index is never modified after Build returns, so any number of
// goroutines may read it without locking.
package index

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Stats summarises a built index.
type Stats struct {
	Generation    uint64        `json:"generation"`
	Records       int           `json:"records"`
	Duplicates    int           `json:"duplicates"`
	Terms         int           `json:"terms"`
	Postings      int           `json:"postings"`
	TitleTokens   int           `json:"title_tokens"`
	TextTokens    int           `json:"text_tokens"`
	BuiltAt       time.Time     `json:"built_at"`
	BuildDuration time.Duration `json:"build_duration"`
}

type Index struct {
	store    *ingestion.Store
	tok      *tokenizer.Tokenizer
	postings map[string]PostingList
	vocab    []string
	stats    Stats
}

// NotReadyError is returned when a query reaches an index that has not been
// built successfully. Cause holds the last build failure, if any.
type NotReadyError struct {
	Cause error
}

func (e *NotReadyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: last build failed: %v", apperrors.ErrIndexNotReady, e.Cause)
	}
	return apperrors.ErrIndexNotReady.Error()
}

func (e *NotReadyError) Unwrap() error {
	return apperrors.ErrIndexNotReady
}

// BuildRecords validates records, stores them and builds generation 1 of the
// index over them. Any malformed record aborts the build.
func BuildRecords(records []ingestion.DocumentationRecord, tok *tokenizer.Tokenizer) (*Index, error) {
	if err := validator.ValidateRecords(records); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return Build(ingestion.NewStore(records), tok, 1)
}

// Build tokenizes the title and text of every record in a single pass and
// returns the finished index. A nil tokenizer selects tokenizer.Default().
func Build(store *ingestion.Store, tok *tokenizer.Tokenizer, generation uint64) (*Index, error) {
	if store == nil {
		return nil, errors.New("building index: nil record store")
	}
	if tok == nil {
		tok = tokenizer.Default()
	}
	start := time.Now()
	postings := make(map[string]PostingList)
	counts := make(map[string]int)
	stats := Stats{
		Generation: generation,
		Records:    store.Len(),
		Duplicates: store.Duplicates(),
	}
	for id, rec := range store.All() {
		if err := validator.ValidateRecord(int(id), rec); err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
		for _, field := range ingestion.Fields {
			clear(counts)
			for token := range tok.Tokens(rec.FieldValue(field)) {
				counts[token.Term]++
			}
			for term, n := range counts {
				postings[term] = append(postings[term], Posting{
					RecordID:  id,
					Field:     field,
					Frequency: n,
				})
				if field == ingestion.FieldTitle {
					stats.TitleTokens += n
				} else {
					stats.TextTokens += n
				}
			}
			stats.Postings += len(counts)
		}
	}
	vocab := make([]string, 0, len(postings))
	for term := range postings {
		vocab = append(vocab, term)
	}
	slices.Sort(vocab)

	stats.Terms = len(vocab)
	stats.BuiltAt = time.Now().UTC()
	stats.BuildDuration = time.Since(start)
	return &Index{
		store:    store,
		tok:      tok,
		postings: postings,
		vocab:    vocab,
		stats:    stats,
	}, nil
}

// Ready reports whether ix is a successfully built index.
func (ix *Index) Ready() bool {
	return ix != nil && ix.postings != nil
}

// CheckReady returns a *NotReadyError unless ix is ready.
func (ix *Index) CheckReady() error {
	if !ix.Ready() {
		return &NotReadyError{}
	}
	return nil
}

// Lookup returns the postings of an exact term. The returned slice is shared
// and must not be modified.
func (ix *Index) Lookup(term string) PostingList {
	return ix.postings[term]
}

// Prefix yields, in lexical order, every indexed term starting with prefix.
func (ix *Index) Prefix(prefix string) iter.Seq2[string, PostingList] {
	return func(yield func(string, PostingList) bool) {
		for i := sort.SearchStrings(ix.vocab, prefix); i < len(ix.vocab); i++ {
			term := ix.vocab[i]
			if !strings.HasPrefix(term, prefix) {
				return
			}
			if !yield(term, ix.postings[term]) {
				return
			}
		}
	}
}

// Substring yields, in lexical order, every indexed term containing sub.
func (ix *Index) Substring(sub string) iter.Seq2[string, PostingList] {
	return func(yield func(string, PostingList) bool) {
		for _, term := range ix.vocab {
			if !strings.Contains(term, sub) {
				continue
			}
			if !yield(term, ix.postings[term]) {
				return
			}
		}
	}
}

// Expand resolves a query term to the indexed terms it matches under mode.
func (ix *Index) Expand(term string, mode MatchMode) []TermEntry {
	var entries []TermEntry
	switch mode {
	case MatchExact:
		if p, ok := ix.postings[term]; ok {
			entries = append(entries, TermEntry{Term: term, Postings: p})
		}
	case MatchSubstring:
		for t, p := range ix.Substring(term) {
			entries = append(entries, TermEntry{Term: t, Postings: p})
		}
	default:
		for t, p := range ix.Prefix(term) {
			entries = append(entries, TermEntry{Term: t, Postings: p})
		}
	}
	return entries
}

// Record returns the stored record for id.
func (ix *Index) Record(id ingestion.RecordID) (ingestion.DocumentationRecord, bool) {
	return ix.store.Get(id)
}

func (ix *Index) Store() *ingestion.Store {
	return ix.store
}

// Tokenizer returns the tokenizer the index was built with. Queries must be
// tokenized with it to share the index vocabulary.
func (ix *Index) Tokenizer() *tokenizer.Tokenizer {
	return ix.tok
}

func (ix *Index) Stats() Stats {
	return ix.stats
}

func (ix *Index) Generation() uint64 {
	return ix.stats.Generation
}

// Terms returns the number of distinct indexed terms.
func (ix *Index) Terms() int {
	return len(ix.vocab)
}
