package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fakeLoader struct {
	mu      sync.Mutex
	records []ingestion.DocumentationRecord
	err     error
	gate    chan struct{}
	calls   int
}

func (f *fakeLoader) Name() string { return "fake" }

func (f *fakeLoader) Load(ctx context.Context) ([]ingestion.DocumentationRecord, error) {
	f.mu.Lock()
	gate := f.gate
	f.calls++
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

func (f *fakeLoader) set(records []ingestion.DocumentationRecord, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

func records() []ingestion.DocumentationRecord {
	return []ingestion.DocumentationRecord{
		{Location: "#QEDprocesses.Compton", Page: "Home", Title: "QEDprocesses.Compton", Text: "Compton scattering", Category: ingestion.CategoryType},
		{Location: "#QEDprocesses.propagator", Page: "Home", Title: "propagator", Text: "Return the propagator.", Category: ingestion.CategoryFunction},
	}
}

func TestCurrentBeforeBuild(t *testing.T) {
	e := NewEngine(&fakeLoader{records: records()}, nil)
	_, err := e.Current()
	var nre *index.NotReadyError
	if !errors.As(err, &nre) {
		t.Fatalf("Current() error = %v, want *index.NotReadyError", err)
	}
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Error("not-ready error does not match sentinel")
	}
	if got := e.HealthCheck(context.Background()).Status; got != health.StatusDown {
		t.Errorf("health = %s, want down", got)
	}
}

func TestWaitForFirstBuild(t *testing.T) {
	loader := &fakeLoader{records: records(), gate: make(chan struct{})}
	e := NewEngine(loader, nil)
	built := make(chan error, 1)
	go func() {
		_, err := e.Reload(context.Background())
		built <- err
	}()

	if _, err := e.Current(); err == nil {
		t.Fatal("index ready before loader returned")
	}
	close(loader.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	idx, err := e.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if idx.Generation() != 1 || idx.Stats().Records != 2 {
		t.Errorf("stats = %+v", idx.Stats())
	}
	if cur, _ := e.Current(); cur != idx {
		t.Error("Current() differs from Wait()")
	}
	if err := <-built; err != nil {
		t.Errorf("Reload() error = %v", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	e := NewEngine(&fakeLoader{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestFailedReloadKeepsPreviousIndex(t *testing.T) {
	loader := &fakeLoader{records: records()}
	reg := prometheus.NewRegistry()
	e := NewEngine(loader, nil, WithMetrics(metrics.NewWithRegistry(reg)), WithTracing(true))
	ctx := context.Background()

	first, err := e.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	loader.set(nil, apperrors.ErrSourceUnavailable)
	if _, err := e.Reload(ctx); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("Reload() error = %v, want ErrSourceUnavailable", err)
	}
	cur, err := e.Current()
	if err != nil || cur != first {
		t.Fatalf("Current() = %p, %v; want previous index", cur, err)
	}
	if got := e.HealthCheck(ctx).Status; got != health.StatusDegraded {
		t.Errorf("health = %s, want degraded", got)
	}

	loader.set(append(records(), ingestion.DocumentationRecord{Location: "#x", Page: "Home", Title: "x", Text: "", Category: ""}), nil)
	if _, err := e.Reload(ctx); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("Reload() error = %v, want ErrMalformedRecord", err)
	}

	loader.set(records()[:1], nil)
	second, err := e.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if second.Generation() != 2 {
		t.Errorf("generation = %d, want 2", second.Generation())
	}
	if first.Stats().Records != 2 || second.Stats().Records != 1 {
		t.Error("published index was modified by a later reload")
	}
	if e.LastError() != nil {
		t.Errorf("LastError() = %v after successful reload", e.LastError())
	}
}

func TestSubscribersNotified(t *testing.T) {
	e := NewEngine(&fakeLoader{records: records()}, nil)
	var got []uint64
	e.Subscribe(func(idx *index.Index) { got = append(got, idx.Generation()) })

	for range 3 {
		if _, err := e.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("notified generations = %v", got)
	}
}

func TestFailureSubscribersNotified(t *testing.T) {
	loader := &fakeLoader{records: records()}
	e := NewEngine(loader, nil)
	var failures []error
	e.OnFailure(func(err error) { failures = append(failures, err) })

	if _, err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	loader.mu.Lock()
	loader.err = errors.New("source offline")
	loader.mu.Unlock()
	if _, err := e.Reload(context.Background()); err == nil {
		t.Fatal("Reload() succeeded with failing loader")
	}
	if len(failures) != 1 || !strings.Contains(failures[0].Error(), "source offline") {
		t.Errorf("failures = %v", failures)
	}
}

func TestConcurrentReadsDuringReload(t *testing.T) {
	e := NewEngine(&fakeLoader{records: records()}, nil)
	ctx := context.Background()
	if _, err := e.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				idx, err := e.Current()
				if err != nil {
					t.Error(err)
					return
				}
				if len(idx.Lookup("compton")) == 0 {
					t.Error("published index lost a term")
					return
				}
			}
		}()
	}
	for range 10 {
		if _, err := e.Reload(ctx); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
