package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type eventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

func newRefreshCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Ask every running searcher to rebuild its index",
		Long: `Publishes a refresh event on the index refresh topic. Each searcher
reloads its records from the configured source when it receives the event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("kafka is not enabled in the configuration")
			}
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRefresh)
			defer producer.Close()
			if err := publishRefresh(cmd.Context(), producer, reason, cfg.Source.Kind); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh requested on %s\n", cfg.Kafka.Topics.IndexRefresh)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the event")
	return cmd
}

func publishRefresh(ctx context.Context, pub eventPublisher, reason, sourceKind string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	event := consumer.RefreshEvent{
		Reason:      reason,
		Source:      sourceKind,
		RequestedAt: time.Now().UTC(),
	}
	if err := pub.Publish(ctx, kafka.Event{Key: sourceKind, Value: event}); err != nil {
		return fmt.Errorf("publishing refresh event: %w", err)
	}
	return nil
}
