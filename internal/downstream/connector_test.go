package downstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// flakyServer answers 503 for the first failures requests, then serves
// its public URL.
func flakyServer(t *testing.T, failures int64, publicURL string) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&calls, 1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(publicURL))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestResolveRetriesUntilServiceAnswers(t *testing.T) {
	srv, _ := flakyServer(t, 3, "https://data.example.org/catalog")
	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	connector := NewConnector([]*Client{client}, 20, time.Millisecond, nil, zerolog.Nop())

	if err := connector.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := connector.URL(ServiceCatalog); got != "https://data.example.org/catalog" {
		t.Fatalf("resolved url %q", got)
	}
}

func TestResolveGivesUpAfterBudget(t *testing.T) {
	srv, calls := flakyServer(t, 1<<30, "")
	client := NewClient(ServiceStorage, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	// Zero attempts and backoff fall back to the defaults; override only
	// the backoff to keep the test fast.
	connector := NewConnector([]*Client{client}, 0, time.Millisecond, nil, zerolog.Nop())

	err := connector.Resolve(context.Background())
	if err == nil {
		t.Fatalf("resolution succeeded against a dead service")
	}
	if !strings.Contains(err.Error(), ServiceStorage) {
		t.Fatalf("error does not name the unreachable service: %v", err)
	}
	if got := atomic.LoadInt64(calls); got != DefaultAttempts {
		t.Fatalf("expected exactly %d probe attempts, got %d", DefaultAttempts, got)
	}
	if connector.URL(ServiceStorage) != "" {
		t.Fatalf("dead service has a resolved url")
	}
}

func TestResolveDoesNotReprobeResolvedServices(t *testing.T) {
	upSrv, upCalls := flakyServer(t, 0, "https://data.example.org/catalog")
	lateSrv, _ := flakyServer(t, 2, "https://data.example.org/storage")
	up := NewClient(ServiceCatalog, upSrv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	late := NewClient(ServiceStorage, lateSrv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	connector := NewConnector([]*Client{up, late}, 10, time.Millisecond, nil, zerolog.Nop())

	if err := connector.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt64(upCalls); got != 1 {
		t.Fatalf("already-resolved service probed %d times", got)
	}
	urls := connector.URLs()
	if len(urls) != 2 {
		t.Fatalf("expected both services resolved, got %v", urls)
	}
}

func TestResolveRejectsUntrustedDomain(t *testing.T) {
	srv, calls := flakyServer(t, 0, "https://rogue.example.com/catalog")
	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	connector := NewConnector([]*Client{client}, 20, time.Millisecond, []string{"example.org"}, zerolog.Nop())

	err := connector.Resolve(context.Background())
	if err == nil {
		t.Fatalf("URL outside the allowlist accepted")
	}
	if !strings.Contains(err.Error(), "trusted domains") {
		t.Fatalf("unexpected error: %v", err)
	}
	// A misconfigured URL is not retried.
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("expected a single probe, got %d", got)
	}
}

func TestResolveAcceptsAllowlistedSubdomain(t *testing.T) {
	srv, _ := flakyServer(t, 0, "https://data.example.org/catalog")
	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	connector := NewConnector([]*Client{client}, 20, time.Millisecond, []string{"example.org"}, zerolog.Nop())

	if err := connector.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestResolveStopsOnContextCancel(t *testing.T) {
	srv, _ := flakyServer(t, 1<<30, "")
	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())
	connector := NewConnector([]*Client{client}, 20, time.Hour, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- connector.Resolve(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("resolution succeeded after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("resolve did not return after cancellation")
	}
}
