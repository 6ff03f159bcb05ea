package analytics

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentile estimation.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	NotReadyCount     int64        `json:"not_ready_count"`
	AvgLatencyUs      float64      `json:"avg_latency_us"`
	P50LatencyUs      int64        `json:"p50_latency_us"`
	P95LatencyUs      int64        `json:"p95_latency_us"`
	P99LatencyUs      int64        `json:"p99_latency_us"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	ModeCounts        []QueryCount `json:"mode_counts"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	IndexBuilds       int64        `json:"index_builds"`
	IndexFailures     int64        `json:"index_failures"`
	LastGeneration    uint64       `json:"last_generation"`
	LastBuildRecords  int          `json:"last_build_records"`
	LastBuildError    string       `json:"last_build_error,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running statistics. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	notReady          int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	modeCounts        map[string]int64
	indexBuilds       int64
	indexFailures     int64
	lastGeneration    uint64
	lastBuildRecords  int
	lastBuildError    string
	startTime         time.Time
	topN              int

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		modeCounts:        make(map[string]int64),
		startTime:         time.Now(),
		topN:              10,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes analytics messages from Kafka into agg. Unknown or
// undecodable messages are discarded rather than retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		header, err := kafka.DecodeJSON[eventHeader](value)
		if err != nil {
			return err
		}
		switch header.Type {
		case EventSearch, EventZeroResult, EventNotReady:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				return err
			}
			agg.Record(event)
		case EventIndexBuilt, EventIndexFail:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				return err
			}
			agg.Record(event)
		default:
			return kafka.Discard(fmt.Errorf("unknown analytics event type %q (key %s)", header.Type, key))
		}
		return nil
	}
}

// Record folds a SearchEvent or IndexEvent into the statistics. Other
// values are ignored.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearchEvent(e)
	case IndexEvent:
		a.recordIndexEvent(e)
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Type == EventNotReady {
		a.notReady++
		return
	}
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.addLatency(event.LatencyUs)

	q := queryKey(event)
	a.queryCounts[q]++
	if event.Mode != "" {
		a.modeCounts[event.Mode]++
	}
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[q]++
	}
}

func (a *Aggregator) addLatency(us int64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, us)
		return
	}
	a.latencies[a.latencyNext] = us
	a.latencyNext = (a.latencyNext + 1) % latencyWindow
}

func (a *Aggregator) recordIndexEvent(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Type == EventIndexFail {
		a.indexFailures++
		a.lastBuildError = event.Error
		return
	}
	a.indexBuilds++
	a.lastBuildError = ""
	if event.Generation >= a.lastGeneration {
		a.lastGeneration = event.Generation
		a.lastBuildRecords = event.Records
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		NotReadyCount:    a.notReady,
		IndexBuilds:      a.indexBuilds,
		IndexFailures:    a.indexFailures,
		LastGeneration:   a.lastGeneration,
		LastBuildRecords: a.lastBuildRecords,
		LastBuildError:   a.lastBuildError,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	stats.ModeCounts = topN(a.modeCounts, len(a.modeCounts))
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot. Latency samples
// are not persisted and start empty.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches = stats.TotalSearches
	a.cacheHits = stats.CacheHits
	a.cacheMisses = stats.CacheMisses
	a.zeroResults = stats.ZeroResultCount
	a.notReady = stats.NotReadyCount
	a.indexBuilds = stats.IndexBuilds
	a.indexFailures = stats.IndexFailures
	a.lastGeneration = stats.LastGeneration
	a.lastBuildRecords = stats.LastBuildRecords
	a.lastBuildError = stats.LastBuildError
	for _, q := range stats.TopQueries {
		a.queryCounts[q.Query] = q.Count
	}
	for _, q := range stats.ZeroResultQueries {
		a.zeroResultQueries[q.Query] = q.Count
	}
	for _, m := range stats.ModeCounts {
		a.modeCounts[m.Query] = m.Count
	}
}

// queryKey groups queries that normalise to the same terms, so "Compton"
// and "compton " count together.
func queryKey(event SearchEvent) string {
	if len(event.Terms) > 0 {
		return strings.Join(event.Terms, " ")
	}
	return strings.TrimSpace(event.Query)
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
