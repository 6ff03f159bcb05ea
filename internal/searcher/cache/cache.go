// Package cache memoises search results in Redis. Keys embed the index
// generation, so a reload makes every older entry unreachable even before
// Invalidate removes it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

const keyPrefix = "docsearch:q:"

// Store is the subset of *pkgredis.Client the cache needs. Get must return
// an error satisfying pkgredis.IsNilError for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache writing entries with ttl. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies the result of running plan with opts against index
// generation. Queries that tokenize to the same term list share a key.
func Key(generation uint64, plan *parser.QueryPlan, opts executor.Options) string {
	excludes := slices.Clone(plan.ExcludeTerms)
	slices.Sort(excludes)
	categories := make([]string, len(opts.Categories))
	for i, c := range opts.Categories {
		categories[i] = string(c)
	}
	slices.Sort(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "g=%d|t=%s|x=%s|m=%s|l=%d|c=%s",
		generation,
		strings.Join(plan.Terms, ","),
		strings.Join(excludes, ","),
		opts.Mode,
		opts.Limit,
		strings.Join(categories, ","),
	)
	if opts.Weights != nil {
		fmt.Fprintf(&b, "|w=%v", *opts.Weights)
	}
	if opts.Snippet.Radius != 0 || opts.Snippet.Fallback != 0 {
		fmt.Fprintf(&b, "|s=%d,%d", opts.Snippet.Radius, opts.Snippet.Fallback)
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%d:%x", keyPrefix, generation, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes and stores it.
// Concurrent misses on the same key share one computation, which runs
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx is done. A cache outage degrades to computing every query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		result, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate deletes every cached result and returns how many keys were
// removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidateGeneration deletes the entries cached for one index
// generation. The engine calls it with the previous generation after each
// publish; older generations were removed by earlier publishes or expired.
func (c *QueryCache) InvalidateGeneration(ctx context.Context, generation uint64) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, fmt.Sprintf("%s%d:*", keyPrefix, generation))
	if err != nil {
		return deleted, fmt.Errorf("invalidating generation %d: %w", generation, err)
	}
	if deleted > 0 {
		c.logger.Info("stale cache entries removed", "keys_deleted", deleted, "generation", generation)
	}
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
