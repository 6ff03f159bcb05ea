package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return f.err
}

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func search(query string, terms []string, hits int, cacheHit bool) SearchEvent {
	typ := EventSearch
	if hits == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{
		Type:      typ,
		Query:     query,
		Terms:     terms,
		Mode:      "prefix",
		TotalHits: hits,
		LatencyUs: 100,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	}
}

func TestCollectorBatchesAndFeedsLocal(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, CollectorOptions{BatchSize: 2, FlushInterval: time.Hour, Local: agg})
	c.Start(context.Background())

	c.Track(search("Compton", []string{"compton"}, 1, false))
	c.Track(search("prop", []string{"prop"}, 3, true))
	c.Track(IndexEvent{Type: EventIndexBuilt, Generation: 1, Records: 10})
	c.Close()

	if got := pub.total(); got != 3 {
		t.Fatalf("published %d events, want 3", got)
	}
	if len(pub.batches) != 2 {
		t.Errorf("batches = %d, want 2 (one full, one final flush)", len(pub.batches))
	}
	if pub.batches[0][0].Key != "search:compton" {
		t.Errorf("key = %q, want search:compton", pub.batches[0][0].Key)
	}
	stats := agg.Stats()
	if stats.TotalSearches != 2 || stats.IndexBuilds != 1 || stats.LastGeneration != 1 {
		t.Errorf("local stats = %+v", stats)
	}
}

func TestCollectorWithoutPublisher(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, CollectorOptions{Local: agg})
	c.Start(context.Background())
	c.Track(search("xyzzy", []string{"xyzzy"}, 0, false))
	c.Close()

	if got := agg.Stats().ZeroResultCount; got != 1 {
		t.Errorf("zero results = %d, want 1", got)
	}
}

func TestCollectorPublishErrorIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorOptions{BatchSize: 1, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track(search("a", nil, 1, false))
	c.Track(search("b", nil, 1, false))
	c.Close()
	if got := pub.total(); got != 2 {
		t.Errorf("attempted %d events, want 2", got)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(nil, CollectorOptions{BufferSize: 1, Metrics: m})
	// Not started: the buffer fills after one event.
	c.Track(search("a", nil, 1, false))
	c.Track(search("b", nil, 1, false))
	c.Track(search("c", nil, 1, false))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "docsearch_analytics_events_dropped_total 2\n") {
		t.Errorf("dropped counter not reported:\n%s", rec.Body.String())
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(search("Compton", []string{"compton"}, 1, false))
	agg.Record(search("compton ", []string{"compton"}, 1, true))
	agg.Record(search("prop", []string{"prop"}, 4, false))
	agg.Record(search("xyzzy", []string{"xyzzy"}, 0, false))
	agg.Record(SearchEvent{Type: EventNotReady, Query: "early"})
	agg.Record(IndexEvent{Type: EventIndexBuilt, Generation: 2, Records: 10})
	agg.Record(IndexEvent{Type: EventIndexFail, Error: "payload truncated"})
	agg.Record("ignored")

	stats := agg.Stats()
	if stats.TotalSearches != 4 {
		t.Errorf("total = %d, want 4", stats.TotalSearches)
	}
	if stats.NotReadyCount != 1 {
		t.Errorf("not ready = %d, want 1", stats.NotReadyCount)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 3 {
		t.Errorf("cache = %d/%d, want 1/3", stats.CacheHits, stats.CacheMisses)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0] != (QueryCount{Query: "compton", Count: 2}) {
		t.Errorf("top queries = %+v", stats.TopQueries)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "xyzzy" {
		t.Errorf("zero result queries = %+v", stats.ZeroResultQueries)
	}
	if stats.P50LatencyUs != 100 || stats.AvgLatencyUs != 100 {
		t.Errorf("latency p50=%d avg=%v", stats.P50LatencyUs, stats.AvgLatencyUs)
	}
	if stats.IndexBuilds != 1 || stats.IndexFailures != 1 || stats.LastBuildError != "payload truncated" {
		t.Errorf("index stats = %+v", stats)
	}
	if stats.LastGeneration != 2 || stats.LastBuildRecords != 10 {
		t.Errorf("last build = gen %d records %d", stats.LastGeneration, stats.LastBuildRecords)
	}
}

func TestTopNTiesAreOrdered(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 2}, 2)
	want := []QueryCount{{"c", 2}, {"a", 1}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("topN = %+v, want %+v", got, want)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := range latencyWindow + 5 {
		agg.Record(SearchEvent{Type: EventSearch, Query: "q", TotalHits: 1, LatencyUs: int64(i)})
	}
	if len(agg.latencies) != latencyWindow {
		t.Errorf("latency samples = %d, want %d", len(agg.latencies), latencyWindow)
	}
}

func TestRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches:  7,
		TopQueries:     []QueryCount{{"compton", 5}},
		LastGeneration: 3,
	})
	agg.Record(search("Compton", []string{"compton"}, 1, false))

	stats := agg.Stats()
	if stats.TotalSearches != 8 || stats.TopQueries[0].Count != 6 || stats.LastGeneration != 3 {
		t.Errorf("restored stats = %+v", stats)
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	searchJSON, _ := json.Marshal(search("prop", []string{"prop"}, 2, false))
	if err := handle(ctx, []byte("search:prop"), searchJSON); err != nil {
		t.Fatalf("search event: %v", err)
	}
	indexJSON, _ := json.Marshal(IndexEvent{Type: EventIndexBuilt, Generation: 4, Records: 9})
	if err := handle(ctx, []byte("index"), indexJSON); err != nil {
		t.Fatalf("index event: %v", err)
	}

	if err := handle(ctx, nil, []byte(`{"type":"mystery"}`)); !kafka.IsDiscarded(err) {
		t.Errorf("unknown type error = %v, want discarded", err)
	}
	if err := handle(ctx, nil, []byte(`not json`)); !kafka.IsDiscarded(err) {
		t.Errorf("bad json error = %v, want discarded", err)
	}

	stats := agg.Stats()
	if stats.TotalSearches != 1 || stats.LastGeneration != 4 {
		t.Errorf("stats = %+v", stats)
	}
}

type stubHistory struct {
	snapshots []AggregatedStats
	gotLimit  int
	err       error
}

func (s *stubHistory) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	s.gotLimit = limit
	return s.snapshots, s.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(search("prop", []string{"prop"}, 2, false))
	history := &stubHistory{snapshots: []AggregatedStats{{TotalSearches: 1}}}
	h := NewHandler(agg, history)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 {
		t.Errorf("total searches = %d", stats.TotalSearches)
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=500", nil))
	if rec.Code != http.StatusOK || history.gotLimit != 100 {
		t.Errorf("history status=%d limit=%d", rec.Code, history.gotLimit)
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled history status = %d", rec.Code)
	}
}
