package executor

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/payload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func buildIndex(t testing.TB, records []ingestion.DocumentationRecord) *index.Index {
	t.Helper()
	idx, err := index.BuildRecords(records, tokenizer.Default())
	if err != nil {
		t.Fatalf("BuildRecords() error = %v", err)
	}
	return idx
}

func comptonRecords() []ingestion.DocumentationRecord {
	return []ingestion.DocumentationRecord{
		{Location: "#a", Page: "Home", Title: "Compton", Text: "scattering process", Category: ingestion.CategoryType},
		{Location: "#b", Page: "Home", Title: "Propagator", Text: "Compton invariant", Category: ingestion.CategoryFunction},
	}
}

func locations(results []Result) []string {
	locs := make([]string, len(results))
	for i, r := range results {
		locs[i] = r.Location
	}
	return locs
}

func TestSearchExamples(t *testing.T) {
	idx := buildIndex(t, comptonRecords())
	tests := []struct {
		query string
		want  []string
	}{
		{"compton", []string{"#a", "#b"}},
		{"Compton", []string{"#a", "#b"}},
		{"prop", []string{"#b", "#a"}},
		{"xyzzy", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := Search(idx, tt.query, Options{})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if got := locations(results); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchResultShape(t *testing.T) {
	idx := buildIndex(t, comptonRecords())
	results, err := Search(idx, "compton", Options{})
	if err != nil {
		t.Fatal(err)
	}
	top := results[0]
	if top.Field != ingestion.FieldTitle || top.Score != 5 || top.MatchedTerms != 1 {
		t.Errorf("top = %+v", top)
	}
	if got := top.Snippet.Highlight("<", ">"); got != "<Compton>" {
		t.Errorf("top snippet = %q", got)
	}
	second := results[1]
	if second.Field != ingestion.FieldText || second.Score != 1 {
		t.Errorf("second = %+v", second)
	}
	if got := second.Snippet.Highlight("<", ">"); got != "<Compton> invariant" {
		t.Errorf("second snippet = %q", got)
	}
}

func TestSearchNotReady(t *testing.T) {
	_, err := Search(nil, "compton", Options{})
	var nre *index.NotReadyError
	if !errors.As(err, &nre) || !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("Search(nil) error = %v", err)
	}
}

func TestSearchEmptyQueries(t *testing.T) {
	idx := buildIndex(t, comptonRecords())
	for _, q := range []string{"", "   ", "the of and", "a", "!!!"} {
		results, err := Search(idx, q, Options{})
		if err != nil {
			t.Errorf("Search(%q) error = %v", q, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q) = %d results, want 0", q, len(results))
		}
	}
}

func TestSearchDeterministic(t *testing.T) {
	idx := buildIndex(t, loadPayload(t))
	for _, q := range []string{"qedprocesses", "scattering process", "spin pol", "total cross section"} {
		first, err := Search(idx, q, Options{})
		if err != nil {
			t.Fatal(err)
		}
		for range 5 {
			again, _ := Search(idx, q, Options{})
			if !reflect.DeepEqual(first, again) {
				t.Fatalf("Search(%q) not deterministic", q)
			}
		}
	}
}

func TestPrefixCoverage(t *testing.T) {
	records := loadPayload(t)
	idx := buildIndex(t, records)
	tok := idx.Tokenizer()

	for _, q := range []string{"sc", "proc", "qed", "mom", "abstract"} {
		results, err := Search(idx, q, Options{})
		if err != nil {
			t.Fatal(err)
		}
		got := make(map[ingestion.RecordID]bool)
		for _, r := range results {
			got[r.RecordID] = true
		}
		for id, rec := range idx.Store().All() {
			want := false
			for _, term := range tok.Terms(rec.Title + " " + rec.Text) {
				if strings.HasPrefix(term, q) {
					want = true
					break
				}
			}
			if want != got[id] {
				t.Errorf("query %q: record %d (%s) returned = %v, want %v", q, id, rec.Location, got[id], want)
			}
		}
	}
}

func TestTitleOutranksText(t *testing.T) {
	idx := buildIndex(t, []ingestion.DocumentationRecord{
		{Location: "#text", Page: "p", Title: "other", Text: "photon", Category: ingestion.CategoryFunction},
		{Location: "#title", Page: "p", Title: "photon", Text: "other", Category: ingestion.CategoryFunction},
	})
	results, err := Search(idx, "photon", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := locations(results); !reflect.DeepEqual(got, []string{"#title", "#text"}) {
		t.Errorf("order = %v", got)
	}
}

func TestMoreMatchedTermsRankFirst(t *testing.T) {
	idx := buildIndex(t, []ingestion.DocumentationRecord{
		{Location: "#one", Page: "p", Title: "spin spin spin", Text: "", Category: ingestion.CategoryFunction},
		{Location: "#both", Page: "p", Title: "", Text: "spin polarization", Category: ingestion.CategoryFunction},
	})
	results, _ := Search(idx, "spin polarization", Options{})
	if got := locations(results); !reflect.DeepEqual(got, []string{"#both", "#one"}) {
		t.Errorf("order = %v", got)
	}
}

func TestSearchOptions(t *testing.T) {
	idx := buildIndex(t, []ingestion.DocumentationRecord{
		{Location: "#compton", Page: "p", Title: "Compton", Text: "", Category: ingestion.CategoryType},
		{Location: "#comptonize", Page: "p", Title: "comptonize", Text: "", Category: ingestion.CategoryFunction},
		{Location: "#inverse", Page: "p", Title: "InverseCompton", Text: "", Category: ingestion.CategoryType},
		{Location: "#photon", Page: "p", Title: "photon", Text: "compton", Category: ingestion.CategoryPage},
	})
	boost := ranker.DefaultWeights()
	boost.CategoryBoosts = map[ingestion.Category]float64{ingestion.CategoryPage: 10}

	tests := []struct {
		name  string
		query string
		opts  Options
		want  []string
	}{
		{"prefix", "compton", Options{}, []string{"#compton", "#comptonize", "#photon"}},
		{"exact", "compton", Options{Mode: index.MatchExact}, []string{"#compton", "#photon"}},
		{"substring", "compton", Options{Mode: index.MatchSubstring}, []string{"#compton", "#comptonize", "#inverse", "#photon"}},
		{"limit", "compton", Options{Limit: 1}, []string{"#compton"}},
		{"category", "compton", Options{Categories: []ingestion.Category{ingestion.CategoryFunction, ingestion.CategoryPage}}, []string{"#comptonize", "#photon"}},
		{"boost", "compton", Options{Weights: &boost}, []string{"#photon", "#compton", "#comptonize"}},
		{"exclude", "compton -photon", Options{}, []string{"#compton", "#comptonize"}},
		{"NOT", "compton NOT comptonize", Options{Mode: index.MatchExact}, []string{"#compton", "#photon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := Search(idx, tt.query, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := locations(results); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentSearch(t *testing.T) {
	idx := buildIndex(t, loadPayload(t))
	want, _ := Search(idx, "qedprocesses", Options{Limit: 5})

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 50 {
				got, err := Search(idx, "qedprocesses", Options{Limit: 5})
				if err != nil || !reflect.DeepEqual(got, want) {
					t.Error("concurrent search diverged")
					return
				}
			}
		})
	}
	wg.Wait()
}

func TestRealPayloadCompton(t *testing.T) {
	idx := buildIndex(t, loadPayload(t))
	results, err := Search(idx, "QEDprocesses.Compton", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Location != "#QEDprocesses.Compton" {
		t.Fatalf("top result = %v", locations(results))
	}
	if results[0].MatchedTerms != 2 {
		t.Errorf("matched terms = %d, want 2", results[0].MatchedTerms)
	}
}

type stubProvider struct {
	idx *index.Index
	err error
}

func (s stubProvider) Current() (*index.Index, error) { return s.idx, s.err }

func TestExecutor(t *testing.T) {
	idx := buildIndex(t, comptonRecords())
	exec := New(stubProvider{idx: idx}, Options{})

	res, err := exec.Execute(context.Background(), "compton -invariant", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHits != 1 || res.Generation != 1 || res.Mode != "prefix" {
		t.Errorf("result = %+v", res)
	}
	if res.TermStats["compton"] != 2 {
		t.Errorf("term stats = %v", res.TermStats)
	}
	if !reflect.DeepEqual(res.Excluded, []string{"invariant"}) {
		t.Errorf("excluded = %v", res.Excluded)
	}

	empty, err := exec.Execute(context.Background(), "the", Options{})
	if err != nil || empty.Results == nil || len(empty.Results) != 0 {
		t.Errorf("empty query = %+v, %v", empty, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exec.Execute(ctx, "compton", Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Execute() error = %v", err)
	}

	notReady := New(stubProvider{err: &index.NotReadyError{}}, Options{})
	if _, err := notReady.Execute(context.Background(), "compton", Options{}); !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("not ready Execute() error = %v", err)
	}
}

func loadPayload(t testing.TB) []ingestion.DocumentationRecord {
	t.Helper()
	f, err := os.Open("../../ingestion/payload/testdata/search_index.js")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := payload.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return records
}
