package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/payload"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// maxPayloadBytes bounds a fetched payload. Large documentation sites
// produce payloads of a few megabytes.
const defaultMaxPayloadBytes = 64 << 20

type HTTPOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	Client      *http.Client
	Breaker     *resilience.CircuitBreaker
	// RetryDelay overrides the initial backoff. Zero keeps the retry default.
	RetryDelay time.Duration
	// OnStateChange is passed to the default breaker; ignored when Breaker
	// is set.
	OnStateChange func(name string, to resilience.State)
	// MaxBytes caps the payload size. Zero selects 64 MiB.
	MaxBytes int64
}

// HTTP fetches the payload published next to the documentation site.
// Transport errors and 5xx responses are retried with backoff; repeated
// failures open a circuit breaker so reloads fail fast while the site is
// down.
type HTTP struct {
	url      string
	client   *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	maxBytes int64
	logger   *slog.Logger
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func NewHTTP(url string, opts HTTPOptions) *HTTP {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("source:"+url, resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
			OnStateChange:    opts.OnStateChange,
		})
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPayloadBytes
	}
	return &HTTP{
		url:      url,
		client:   client,
		maxBytes: maxBytes,
		retry:    resilience.RetryConfig{
			MaxAttempts:  opts.MaxAttempts,
			InitialDelay: opts.RetryDelay,
			Retryable:    retryable,
		},
		breaker:  breaker,
		logger:   slog.Default().With("component", "http-source", "url", url),
	}
}

func (h *HTTP) Name() string {
	return "http:" + h.url
}

func (h *HTTP) Load(ctx context.Context) ([]ingestion.DocumentationRecord, error) {
	var body []byte
	err := h.breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch payload", h.retry, func() error {
			var err error
			body, err = h.fetch(ctx)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", apperrors.ErrSourceUnavailable, h.url, err)
	}
	h.logger.Debug("payload fetched", "bytes", len(body))
	records, err := payload.DecodeBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", h.url, err)
	}
	return records, nil
}

func (h *HTTP) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxBytes {
		// The same document will be just as large on the next attempt.
		return nil, resilience.Permanent(fmt.Errorf("payload exceeds %d bytes", h.maxBytes))
	}
	return body, nil
}

// retryable rejects client errors, which will not change on retry, and
// cancellation.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}
