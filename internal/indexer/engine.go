// Package indexer owns the lifecycle of the search index: loading records
// from a source, building the index and publishing it to readers.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Loader fetches the complete record set for one build.
type Loader interface {
	Load(ctx context.Context) ([]ingestion.DocumentationRecord, error)
	Name() string
}

// Option configures an Engine.
type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracing logs a span tree for every reload.
func WithTracing(enabled bool) Option {
	return func(e *Engine) { e.tracing = enabled }
}

// Engine publishes immutable indexes. Readers call Current or Wait and keep
// using the *index.Index they got for the whole query, so a concurrent
// Reload never changes results mid-query.
type Engine struct {
	loader  Loader
	tok     *tokenizer.Tokenizer
	current atomic.Pointer[index.Index]

	ready     chan struct{}
	readyOnce sync.Once

	reloadMu   sync.Mutex
	generation uint64

	errMu   sync.RWMutex
	lastErr error

	subsMu      sync.RWMutex
	subscribers []func(*index.Index)
	failureSubs []func(error)

	metrics *metrics.Metrics
	tracing bool
	logger  *slog.Logger
}

func NewEngine(loader Loader, tok *tokenizer.Tokenizer, opts ...Option) *Engine {
	if tok == nil {
		tok = tokenizer.Default()
	}
	e := &Engine{
		loader: loader,
		tok:    tok,
		ready:  make(chan struct{}),
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reload loads every record again and builds a new generation. On failure
// the previously published index, if any, stays in place.
func (e *Engine) Reload(ctx context.Context) (*index.Index, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	var span *tracing.Span
	if e.tracing {
		ctx, span = tracing.StartSpan(ctx, "index.reload", uuid.NewString())
		span.SetAttr("source", e.loader.Name())
		defer func() {
			span.End()
			span.Log()
		}()
	}

	idx, err := e.build(ctx, e.generation+1)
	e.observeBuild(start, err)
	if err != nil {
		e.setLastError(err)
		if span != nil {
			span.SetAttr("error", err.Error())
		}
		e.notifyFailure(err)
		return nil, fmt.Errorf("reloading index from %s: %w", e.loader.Name(), err)
	}

	e.generation = idx.Generation()
	e.current.Store(idx)
	e.setLastError(nil)
	e.readyOnce.Do(func() { close(e.ready) })

	st := idx.Stats()
	if span != nil {
		span.SetAttr("generation", st.Generation)
		span.SetAttr("records", st.Records)
	}
	if e.metrics != nil {
		e.metrics.IndexRecords.Set(float64(st.Records))
		e.metrics.IndexTerms.Set(float64(st.Terms))
		e.metrics.IndexGeneration.Set(float64(st.Generation))
	}
	e.logger.Info("index published",
		"generation", st.Generation,
		"records", st.Records,
		"duplicates", st.Duplicates,
		"terms", st.Terms,
		"postings", st.Postings,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	e.notify(idx)
	return idx, nil
}

func (e *Engine) build(ctx context.Context, generation uint64) (*index.Index, error) {
	loadCtx := ctx
	var loadSpan *tracing.Span
	if e.tracing {
		loadCtx, loadSpan = tracing.StartChildSpan(ctx, "load_records")
	}
	records, err := e.loader.Load(loadCtx)
	if loadSpan != nil {
		loadSpan.SetAttr("records", len(records))
		loadSpan.End()
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buildSpan *tracing.Span
	if e.tracing {
		_, buildSpan = tracing.StartChildSpan(ctx, "build_index")
		defer buildSpan.End()
	}
	if err := validator.ValidateRecords(records); err != nil {
		return nil, err
	}
	return index.Build(ingestion.NewStore(records), e.tok, generation)
}

func (e *Engine) observeBuild(start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
}

// Current returns the published index without blocking.
func (e *Engine) Current() (*index.Index, error) {
	if idx := e.current.Load(); idx != nil {
		return idx, nil
	}
	return nil, &index.NotReadyError{Cause: e.LastError()}
}

// Wait blocks until the first index is published or ctx is done. Queries
// issued before then fail with *index.NotReadyError.
func (e *Engine) Wait(ctx context.Context) (*index.Index, error) {
	select {
	case <-e.ready:
		return e.current.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LastError returns the error of the most recent failed build, or nil if
// the most recent build succeeded.
func (e *Engine) LastError() error {
	e.errMu.RLock()
	defer e.errMu.RUnlock()
	return e.lastErr
}

func (e *Engine) setLastError(err error) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
}

// Tokenizer is shared by every index this engine builds.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tok
}

// Subscribe registers fn to run after each successful publish. Callbacks
// run synchronously on the reloading goroutine.
func (e *Engine) Subscribe(fn func(*index.Index)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

func (e *Engine) notify(idx *index.Index) {
	e.subsMu.RLock()
	subs := make([]func(*index.Index), len(e.subscribers))
	copy(subs, e.subscribers)
	e.subsMu.RUnlock()
	for _, fn := range subs {
		fn(idx)
	}
}

// OnFailure registers fn to run after each failed reload, with the build
// error. The previous index stays published.
func (e *Engine) OnFailure(fn func(error)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.failureSubs = append(e.failureSubs, fn)
}

func (e *Engine) notifyFailure(err error) {
	e.subsMu.RLock()
	subs := slices.Clone(e.failureSubs)
	e.subsMu.RUnlock()
	for _, fn := range subs {
		fn(err)
	}
}

// HealthCheck reports the index as down until the first build succeeds and
// degraded while the latest reload is failing.
func (e *Engine) HealthCheck(ctx context.Context) health.ComponentHealth {
	idx := e.current.Load()
	lastErr := e.LastError()
	switch {
	case idx == nil && lastErr != nil:
		return health.ComponentHealth{Status: health.StatusDown, Message: lastErr.Error()}
	case idx == nil:
		return health.ComponentHealth{Status: health.StatusDown, Message: "index building"}
	case lastErr != nil:
		return health.ComponentHealth{
			Status:  health.StatusDegraded,
			Message: fmt.Sprintf("serving generation %d, reload failed: %v", idx.Generation(), lastErr),
		}
	default:
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d records", idx.Generation(), idx.Stats().Records),
		}
	}
}
