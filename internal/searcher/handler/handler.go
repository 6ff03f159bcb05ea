// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// SearchExecutor is satisfied by *executor.Executor.
type SearchExecutor interface {
	Plan(query string) (*index.Index, *parser.QueryPlan, error)
	Run(ctx context.Context, idx *index.Index, plan *parser.QueryPlan, opts executor.Options) (*executor.SearchResult, error)
}

// IndexManager is satisfied by *indexer.Engine.
type IndexManager interface {
	Current() (*index.Index, error)
	Reload(ctx context.Context) (*index.Index, error)
}

type Config struct {
	DefaultLimit int
	MaxResults   int
	DefaultMode  index.MatchMode
}

// Handler serves the search API. cache, collector and metrics are
// optional.
type Handler struct {
	executor  SearchExecutor
	indexes   IndexManager
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
}

func New(
	exec SearchExecutor,
	indexes IndexManager,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	cfg Config,
) *Handler {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxResults {
		cfg.DefaultLimit = min(20, cfg.MaxResults)
	}
	return &Handler{
		executor:  exec,
		indexes:   indexes,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers GET /api/v1/search?q=...&limit=...&mode=...&category=...
// Categories may be repeated or comma separated.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	// A missing or blank q plans to no terms and answers with an empty
	// result like any other query without searchable terms.
	query := r.URL.Query().Get("q")
	opts, err := h.parseOptions(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	idx, plan, err := h.executor.Plan(query)
	if err != nil {
		h.observe("not_ready", false, 0, start)
		h.track(ctx, analytics.SearchEvent{Type: analytics.EventNotReady, Query: query, Mode: opts.Mode.String()})
		log.Warn("search rejected", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	switch {
	case plan.Empty():
		result, err = h.executor.Run(ctx, idx, plan, opts)
	case h.cache != nil:
		key := cache.Key(idx.Generation(), plan, opts)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Run(ctx, idx, plan, opts)
		})
	default:
		result, err = h.executor.Run(ctx, idx, plan, opts)
	}
	if err != nil {
		h.observe("error", cacheHit, 0, start)
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}
	// Cached and coalesced results are shared between queries with the
	// same terms; copy before setting the caller's raw query.
	shaped := *result
	shaped.Query = query
	result = &shaped

	latency := time.Since(start)
	resultType := "hit"
	eventType := analytics.EventSearch
	switch {
	case plan.Empty():
		resultType = "empty_query"
	case result.TotalHits == 0:
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	h.observe(resultType, cacheHit, len(result.Results), start)

	log.Info("search completed",
		"query", query,
		"mode", result.Mode,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_us", latency.Microseconds(),
	)
	if !plan.Empty() {
		h.track(ctx, analytics.SearchEvent{
			Type:       eventType,
			Query:      query,
			Terms:      plan.Terms,
			Mode:       result.Mode,
			Generation: result.Generation,
			TotalHits:  result.TotalHits,
			Returned:   len(result.Results),
			LatencyUs:  latency.Microseconds(),
			CacheHit:   cacheHit,
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseOptions(r *http.Request) (executor.Options, error) {
	q := r.URL.Query()
	opts := executor.Options{Limit: h.cfg.DefaultLimit, Mode: h.cfg.DefaultMode}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = min(limit, h.cfg.MaxResults)
	}
	if v := q.Get("mode"); v != "" {
		mode, err := index.ParseMatchMode(v)
		if err != nil {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
		}
		opts.Mode = mode
	}
	for _, v := range q["category"] {
		for c := range strings.SplitSeq(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				opts.Categories = append(opts.Categories, ingestion.Category(c))
			}
		}
	}
	return opts, nil
}

func (h *Handler) observe(resultType string, cacheHit bool, returned int, start time.Time) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "miss"
	switch {
	case h.cache == nil:
		cacheStatus = "disabled"
	case cacheHit:
		cacheStatus = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType == "hit" || resultType == "zero_result" {
		h.metrics.SearchResultsCount.Observe(float64(returned))
	}
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(event)
}

// IndexStats reports the statistics of the published index.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	idx, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, idx.Stats())
}

// Reload rebuilds the index synchronously. On failure the previous
// generation keeps serving and the error is reported to the caller.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	idx, err := h.indexes.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("manual reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, idx.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status with apperrors.HTTPStatusCode. Internal
// failures are not echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case status == http.StatusInternalServerError:
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
