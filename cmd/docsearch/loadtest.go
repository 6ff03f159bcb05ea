package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source"
)

// defaultQueries mixes title hits, text-only hits, multi-term queries and
// exclusions so the cache and every ranking path see traffic.
var defaultQueries = []string{
	"Compton",
	"propagator",
	"scattering process",
	"cross section",
	"photon",
	"electron positron",
	"spin polarization",
	"phase space",
	"feynman diagram",
	"process -Compton",
	"momentum",
	"differential",
}

type loadtestFlags struct {
	concurrency int
	duration    time.Duration
	queries     []string
	payload     string
	limit       int
	mode        string
}

func newLoadtestCmd() *cobra.Command {
	f := &loadtestFlags{}
	cmd := &cobra.Command{
		Use:   "loadtest <base-url>",
		Short: "Drive search traffic against a running searcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadtest(cmd, f, args[0])
		},
	}
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&f.duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().StringArrayVarP(&f.queries, "query", "q", nil, "query to send (repeatable)")
	cmd.Flags().StringVar(&f.payload, "payload", "", "use the record titles of this payload as queries")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "results per request")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "match mode sent with every request")
	return cmd
}

func runLoadtest(cmd *cobra.Command, f *loadtestFlags, baseURL string) error {
	if f.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	queries := f.queries
	if f.payload != "" {
		titles, err := payloadQueries(cmd.Context(), f.payload)
		if err != nil {
			return err
		}
		queries = append(queries, titles...)
	}
	if len(queries) == 0 {
		queries = defaultQueries
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s with %d workers for %s (%d queries)\n",
		colorTitle.Sprint("loadtest"), baseURL, f.concurrency, f.duration, len(queries))

	ctx, cancel := context.WithTimeout(cmd.Context(), f.duration)
	defer cancel()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        f.concurrency * 2,
			MaxIdleConnsPerHost: f.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	stats := newLoadStats()
	start := time.Now()

	var wg sync.WaitGroup
	for w := range f.concurrency {
		wg.Go(func() {
			for i := w; ctx.Err() == nil; i++ {
				target := searchURL(baseURL, queries[i%len(queries)], f.limit, f.mode)
				stats.record(sendSearch(ctx, client, target))
			}
		})
	}
	wg.Wait()

	stats.report(out, time.Since(start))
	if stats.responses() == 0 {
		return fmt.Errorf("no responses from %s", baseURL)
	}
	return nil
}

func payloadQueries(ctx context.Context, path string) ([]string, error) {
	records, err := source.NewFile(path).Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(records))
	var titles []string
	for _, r := range records {
		if r.Title != "" && !seen[r.Title] {
			seen[r.Title] = true
			titles = append(titles, r.Title)
		}
	}
	return titles, nil
}

func searchURL(baseURL, query string, limit int, mode string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	if mode != "" {
		v.Set("mode", mode)
	}
	return baseURL + "/api/v1/search?" + v.Encode()
}

type outcome struct {
	latency time.Duration
	status  int
	hits    int
	err     error
}

func sendSearch(ctx context.Context, client *http.Client, target string) outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return outcome{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	o := outcome{status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var body struct {
			TotalHits int `json:"total_hits"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			o.err = fmt.Errorf("decoding response: %w", err)
		}
		o.hits = body.TotalHits
	}
	io.Copy(io.Discard, resp.Body)
	o.latency = time.Since(start)
	return o
}

type loadStats struct {
	total       atomic.Int64
	failed      atomic.Int64
	zeroResults atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 10000),
		statuses:  make(map[int]int),
	}
}

func (s *loadStats) record(o outcome) {
	// Requests cut off by the deadline are not part of the sample.
	if o.status == 0 && (errors.Is(o.err, context.DeadlineExceeded) || errors.Is(o.err, context.Canceled)) {
		return
	}
	s.total.Add(1)
	if o.err != nil {
		s.failed.Add(1)
		return
	}
	if o.status == http.StatusOK && o.hits == 0 {
		s.zeroResults.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, o.latency)
	s.statuses[o.status]++
	s.mu.Unlock()
}

func (s *loadStats) responses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latencies)
}

func (s *loadStats) report(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	statuses := make(map[int]int, len(s.statuses))
	for code, n := range s.statuses {
		statuses[code] = n
	}
	s.mu.Unlock()

	total := s.total.Load()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "requests      %d (%.1f/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Fprintf(w, "failed        %d\n", s.failed.Load())
	fmt.Fprintf(w, "zero results  %d\n", s.zeroResults.Load())

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "latency min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
			latencies[0], sum/time.Duration(len(latencies)),
			percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99),
			latencies[len(latencies)-1])
	}

	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	fmt.Fprintln(w)
	for _, code := range codes {
		label := colorLocation
		if code != http.StatusOK {
			label = colorHighlight
		}
		fmt.Fprintf(w, "  %s %d\n", label.Sprint(code), statuses[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
