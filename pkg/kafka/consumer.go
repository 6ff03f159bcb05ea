// Package kafka wraps segmentio/kafka-go for the docsearch event topics.
// Producers serialise values as JSON; consumers hand raw messages to a
// MessageHandler and commit only what the handler accepted.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// MessageHandler is invoked for each fetched message. Returning an error
// leaves the message uncommitted and it is handed to the handler again
// after a backoff; wrap the error with Discard to commit and move on.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type discardError struct{ err error }

func (d discardError) Error() string { return d.err.Error() }
func (d discardError) Unwrap() error { return d.err }

// Discard marks err as permanent: the consumer logs it and commits the
// message so a poison message is not redelivered forever.
func Discard(err error) error {
	if err == nil {
		return nil
	}
	return discardError{err: err}
}

// IsDiscarded reports whether err was produced by Discard.
func IsDiscarded(err error) bool {
	var d discardError
	return errors.As(err, &d)
}

type Consumer struct {
	reader     *kafka.Reader
	logger     *slog.Logger
	handler    MessageHandler
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewConsumer joins cfg.ConsumerGroup on topic. New group members start
// from the latest offset; refresh and analytics events are only meaningful
// while fresh.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:     r,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:    handler,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Start runs the fetch/handle/commit loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.deliver(ctx, msg); err != nil {
			c.logger.Info("consumer stopping with message uncommitted",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"reason", err,
			)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// deliver hands msg to the handler until it is accepted or discarded, or
// ctx is done. A failed message is retried in place: fetching the next one
// would let its commit move the group offset past the failure.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) error {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		if IsDiscarded(err) {
			c.logger.Error("discarding message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		c.logger.Error("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

// DecodeJSON unmarshals a message value into T. Decode failures are
// permanent and come back wrapped with Discard.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, Discard(fmt.Errorf("decoding kafka message: %w", err))
	}
	return result, nil
}
