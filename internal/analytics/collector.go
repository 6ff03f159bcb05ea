package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// Local receives every event in-process, so a single searcher can serve
	// statistics without the analytics service.
	Local   *Aggregator
	Metrics *metrics.Metrics
}

// Collector buffers events from request goroutines without blocking them.
// A background loop flushes batches to the publisher when the batch is full
// or the flush interval passes, whichever comes first.
type Collector struct {
	publisher Publisher
	opts      CollectorOptions
	eventCh   chan any
	logger    *slog.Logger
	done      chan struct{}
}

// NewCollector returns a collector. publisher may be nil when Kafka is
// disabled; events then only reach opts.Local.
func NewCollector(publisher Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher: publisher,
		opts:      opts,
		eventCh:   make(chan any, opts.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go c.loop(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
		"kafka", c.publisher != nil,
	)
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	batch := make([]kafka.Event, 0, c.opts.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 || c.publisher == nil {
			batch = batch[:0]
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				flush(context.Background())
				return
			}
			batch = c.accept(batch, event)
			if len(batch) >= c.opts.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.drain(&batch)
			flush(shutdownCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) accept(batch []kafka.Event, event any) []kafka.Event {
	if c.opts.Local != nil {
		c.opts.Local.Record(event)
	}
	return append(batch, kafka.Event{Key: eventKey(event), Value: event})
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = c.accept(*batch, event)
		default:
			return
		}
	}
}

// Track enqueues a SearchEvent or IndexEvent. When the buffer is full the
// event is dropped and counted.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		if c.opts.Metrics != nil {
			c.opts.Metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Track must
// not be called afterwards.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// eventKey partitions search events by their first term so one query's
// events stay ordered within a partition.
func eventKey(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		if len(e.Terms) > 0 {
			return "search:" + e.Terms[0]
		}
		return "search"
	case IndexEvent:
		return "index"
	default:
		return "analytics"
	}
}
