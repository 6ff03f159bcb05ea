// Package analytics collects search and index-build events, ships them to
// Kafka in batches and aggregates them into query statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventNotReady   EventType = "not_ready"
	EventIndexBuilt EventType = "index_built"
	EventIndexFail  EventType = "index_failed"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Mode       string    `json:"mode"`
	Generation uint64    `json:"generation"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyUs  int64     `json:"latency_us"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IndexEvent describes one index build attempt.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	Generation uint64    `json:"generation"`
	Records    int       `json:"records"`
	Duplicates int       `json:"duplicates"`
	Terms      int       `json:"terms"`
	BuildMs    int64     `json:"build_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// eventHeader is decoded first to pick the concrete event type.
type eventHeader struct {
	Type EventType `json:"type"`
}
