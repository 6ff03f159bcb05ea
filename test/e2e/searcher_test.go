// Package e2e exercises a running searcher over HTTP. Point it at a service
// started with the sample payload; tests skip when the service is down.
//
// Run with:
//
//	E2E_SEARCHER_URL=http://localhost:8080 go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

func searcherURL() string {
	if v := os.Getenv("E2E_SEARCHER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func get(t *testing.T, client *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(searcherURL() + path)
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp := get(t, client, path)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestSearchCompton waits for the first index build and then checks that
// an exact title match ranks first.
func TestSearchCompton(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}

	var result struct {
		TotalHits int `json:"total_hits"`
		Results   []struct {
			Location string `json:"location"`
			Title    string `json:"title"`
		} `json:"results"`
	}
	for attempt := range 30 {
		resp := get(t, client, "/api/v1/search?q=Compton&limit=5")
		if resp.StatusCode == http.StatusServiceUnavailable {
			resp.Body.Close()
			t.Logf("attempt %d: index not ready", attempt)
			time.Sleep(time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		err := json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decoding search response: %v", err)
		}
		break
	}
	if result.TotalHits == 0 {
		t.Skip("no hits for Compton; the service is not serving the sample payload")
	}
	t.Logf("first result: %s (%s)", result.Results[0].Title, result.Results[0].Location)
	if result.Results[0].Location != "#QEDprocesses.Compton" {
		t.Errorf("first location = %q, want #QEDprocesses.Compton", result.Results[0].Location)
	}
}

func TestAnalyticsAndCacheStats(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	get(t, client, "/api/v1/search?q=propagator").Body.Close()

	resp := get(t, client, "/api/v1/analytics")
	defer resp.Body.Close()
	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding analytics: %v", err)
	}
	t.Logf("analytics: total_searches=%v, cache_hits=%v", stats["total_searches"], stats["cache_hits"])

	cacheResp := get(t, client, "/api/v1/cache/stats")
	defer cacheResp.Body.Close()
	if cacheResp.StatusCode != http.StatusOK {
		t.Errorf("cache stats status = %d", cacheResp.StatusCode)
	}
}
