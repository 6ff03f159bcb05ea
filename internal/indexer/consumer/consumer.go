// Package consumer rebuilds the index when a refresh event arrives on the
// index-refresh Kafka topic, typically after a new documentation deploy.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// RefreshEvent asks every searcher to reload its records.
type RefreshEvent struct {
	Reason      string    `json:"reason"`
	Source      string    `json:"source,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Reloader is satisfied by *indexer.Engine.
type Reloader interface {
	Reload(ctx context.Context) (*index.Index, error)
}

type RefreshConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *RefreshConsumer {
	return &RefreshConsumer{
		consumer: kafkaConsumer,
		logger:   logger.WithComponent("refresh-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (rc *RefreshConsumer) Start(ctx context.Context) error {
	rc.logger.Info("refresh consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that reloads r for each refresh
// event. A reload that failed on malformed records is discarded, since
// retrying the event would fail the same way. Other failures, such as a
// source outage, are returned as is and the consumer retries the event
// with backoff before fetching the next one.
func HandleMessage(r Reloader) kafka.MessageHandler {
	log := logger.WithComponent("refresh-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RefreshEvent](value)
		if err != nil {
			log.Error("failed to decode refresh event", "error", err, "key", string(key))
			return err
		}
		log.Info("refresh requested",
			"reason", event.Reason,
			"source", event.Source,
			"requested_at", event.RequestedAt,
		)
		idx, err := r.Reload(ctx)
		if err != nil {
			err = fmt.Errorf("refreshing index: %w", err)
			if errors.Is(err, apperrors.ErrMalformedRecord) {
				return kafka.Discard(err)
			}
			return err
		}
		log.Info("index refreshed", "generation", idx.Generation(), "records", idx.Stats().Records)
		return nil
	}
}
