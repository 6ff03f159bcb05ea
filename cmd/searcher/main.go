// Command searcher serves full-text search over documentation records.
//
// It loads the record set from the configured source, builds the index in
// the background and answers GET /api/v1/search once the first build has
// been published. Reloads are triggered by POST /api/v1/index/reload or by
// refresh events on Kafka.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Source.Kind,
		"match_mode", cfg.Search.MatchMode,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Source.Kind == config.SourcePostgres {
			if err := db.Migrate(ctx, source.Schema(cfg.Source.Table)); err != nil {
				return err
			}
		}
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	src, err := source.New(cfg.Source, db, m)
	if err != nil {
		return fmt.Errorf("configuring record source: %w", err)
	}
	engine := indexer.NewEngine(src, tokenizer.FromConfig(cfg.Tokenizer),
		indexer.WithMetrics(m),
		indexer.WithTracing(cfg.Tracing.Enabled),
	)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			engine.Subscribe(func(idx *index.Index) {
				if gen := idx.Generation(); gen > 1 {
					if _, err := queryCache.InvalidateGeneration(ctx, gen-1); err != nil {
						slog.Warn("stale cache cleanup failed", "error", err)
					}
				}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
	}
	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(publisher, analytics.CollectorOptions{
		BufferSize: cfg.Analytics.BufferSize,
		Local:      aggregator,
		Metrics:    m,
	})
	collector.Start(ctx)
	trackBuilds(engine, collector, src.Name())

	weights := ranker.WeightsFromConfig(cfg.Search)
	mode, err := index.ParseMatchMode(cfg.Search.MatchMode)
	if err != nil {
		return err
	}
	exec := executor.New(engine, executor.Options{
		Weights: &weights,
		Snippet: snippet.Formatter{Radius: cfg.Search.SnippetRadius, Fallback: cfg.Search.SnippetLength},
	})
	h := handler.New(exec, engine, queryCache, collector, m, handler.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		DefaultMode:  mode,
	})
	analyticsH := analytics.NewHandler(aggregator, nil)

	checker := health.NewChecker()
	checker.Register("index", engine.HealthCheck)
	if redisClient != nil {
		checker.Register("redis", redisClient.HealthCheck)
	}
	if db != nil {
		checker.Register("postgres", db.HealthCheck)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	// The initial build runs inside the group so the collector outlives
	// every build callback.
	g.Go(func() error {
		if _, err := engine.Reload(gctx); err != nil {
			slog.Error("initial index build failed", "source", src.Name(), "error", err)
		}
		return nil
	})
	g.Go(func() error {
		// The first publish may come from a later refresh or manual reload
		// when the initial build fails.
		idx, err := engine.Wait(gctx)
		if err != nil {
			return nil
		}
		slog.Info("search index ready", "generation", idx.Generation(), "records", idx.Stats().Records)
		return nil
	})

	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}

	if cfg.Kafka.Enabled {
		// Every replica must see every refresh event, so each one joins its
		// own consumer group.
		refreshCfg := cfg.Kafka
		refreshCfg.ConsumerGroup = fmt.Sprintf("%s-refresh-%s", cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		refresh := consumer.New(kafka.NewConsumer(refreshCfg, cfg.Kafka.Topics.IndexRefresh, consumer.HandleMessage(engine)))
		g.Go(func() error {
			return refresh.Start(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	collector.Close()
	return err
}

// trackBuilds reports every index build attempt to the analytics pipeline.
func trackBuilds(engine *indexer.Engine, collector *analytics.Collector, sourceName string) {
	engine.Subscribe(func(idx *index.Index) {
		st := idx.Stats()
		collector.Track(analytics.IndexEvent{
			Type:       analytics.EventIndexBuilt,
			Source:     sourceName,
			Generation: st.Generation,
			Records:    st.Records,
			Duplicates: st.Duplicates,
			Terms:      st.Terms,
			BuildMs:    st.BuildDuration.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	})
	engine.OnFailure(func(err error) {
		collector.Track(analytics.IndexEvent{
			Type:      analytics.EventIndexFail,
			Source:    sourceName,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
	})
}
