package fastfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"newsharvest/internal/scraper"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var sawHeader atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") != "" {
			sawHeader.Store(true)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{
		UserAgent: "test-agent",
		Headers:   scraper.BrowserHeaders(),
	}, nil)

	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if string(result.Body) != "<html><body>ok</body></html>" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if result.Duration <= 0 {
		t.Fatal("expected a positive fetch duration")
	}
	if !sawHeader.Load() {
		t.Fatal("expected browser-like headers on the request")
	}
}

func TestFetchNotFoundIsNavigationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{RetryAttempts: 2, RetryDelay: 10 * time.Millisecond}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if !errors.Is(err, scraper.ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(Config{RetryAttempts: 2, RetryDelay: 10 * time.Millisecond}, nil)
	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(result.Body) != "recovered" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{}, nil)
	if _, err := f.Fetch(ctx, srv.URL); err == nil {
		t.Fatal("expected an error when the context is canceled")
	}
}
