// Package source loads the complete record set for an index build from a
// payload file, the documentation site itself, or a PostgreSQL table.
package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Source returns the full record set on every Load. It satisfies
// indexer.Loader.
type Source interface {
	Load(ctx context.Context) ([]ingestion.DocumentationRecord, error)
	Name() string
}

// New builds the source selected by cfg.Kind. db is only required for the
// postgres kind; m may be nil.
func New(cfg config.SourceConfig, db *postgres.Client, m *metrics.Metrics) (Source, error) {
	switch cfg.Kind {
	case config.SourceFile:
		return NewFile(cfg.Path), nil
	case config.SourceHTTP:
		opts := HTTPOptions{
			Timeout:     cfg.FetchTimeout,
			MaxAttempts: cfg.MaxAttempts,
		}
		if m != nil {
			opts.OnStateChange = func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		}
		return NewHTTP(cfg.URL, opts), nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: source kind %q needs postgres.enabled", apperrors.ErrInvalidInput, cfg.Kind)
		}
		return NewPostgres(db.DB, cfg.Table, cfg.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", apperrors.ErrInvalidInput, cfg.Kind)
	}
}
