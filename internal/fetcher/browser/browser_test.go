package browserfetch

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestRequestBlocker(t *testing.T) {
	t.Parallel()

	blocker := newRequestBlocker(
		[]string{"Image", " font "},
		[]string{"google-analytics.com", "chartbeat.com"},
	)

	tests := []struct {
		name         string
		resourceType network.ResourceType
		url          string
		want         bool
	}{
		{name: "blocked type", resourceType: network.ResourceTypeImage, url: "https://example.com/pic.jpg", want: true},
		{name: "blocked type trims and lowercases", resourceType: network.ResourceTypeFont, url: "https://example.com/font.woff", want: true},
		{name: "blocked domain", resourceType: network.ResourceTypeScript, url: "https://www.google-analytics.com/ga.js", want: true},
		{name: "allowed document", resourceType: network.ResourceTypeDocument, url: "https://example.com/article", want: false},
		{name: "allowed script", resourceType: network.ResourceTypeScript, url: "https://example.com/app.js", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := blocker.shouldBlock(tt.resourceType, tt.url); got != tt.want {
				t.Fatalf("shouldBlock(%s, %s) = %v, want %v", tt.resourceType, tt.url, got, tt.want)
			}
		})
	}
}

func TestResponseMetaCapturesDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeImage,
		Response: &network.Response{
			Status: 200,
			URL:    "https://example.com/pic.jpg",
		},
	})
	status, _, url := meta.snapshotWithFallbacks("https://example.com/req", "")
	if url != "https://example.com/req" {
		t.Fatalf("expected request URL fallback, got %q", url)
	}
	if status != http.StatusOK {
		t.Fatalf("expected default 200, got %d", status)
	}

	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  403,
			URL:     "https://example.com/blocked",
			Headers: network.Headers{"Server": "edge", "Set-Cookie": []string{"a=1", "b=2"}},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://example.com/req", "https://example.com/final")
	if status != http.StatusForbidden {
		t.Fatalf("expected captured status, got %d", status)
	}
	if url != "https://example.com/blocked" {
		t.Fatalf("expected captured URL, got %q", url)
	}
	if headers.Get("Server") != "edge" {
		t.Fatalf("expected captured headers, got %+v", headers)
	}
	if got := headers.Values("Set-Cookie"); len(got) != 2 {
		t.Fatalf("expected multi-value header preserved, got %+v", got)
	}
}

func TestResponseMetaFinalURLFallback(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	_, _, url := meta.snapshotWithFallbacks("https://example.com/req", "https://example.com/final")
	if url != "https://example.com/final" {
		t.Fatalf("expected final URL fallback, got %q", url)
	}
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	headers := toNetworkHeaders(map[string]string{"Accept-Language": "en-US", "Cache-Control": "max-age=0"})
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
	if headers["Accept-Language"] != "en-US" {
		t.Fatalf("unexpected header value: %v", headers["Accept-Language"])
	}
}

func TestAllocatorOptionsAddProxyFlag(t *testing.T) {
	t.Parallel()

	direct := allocatorOptions("")
	proxied := allocatorOptions("http://203.0.113.5:8080")
	if len(proxied) != len(direct)+1 {
		t.Fatalf("expected exactly one extra launch option for the proxy, got %d vs %d",
			len(proxied), len(direct))
	}
}

func TestStealthScriptHidesAutomationMarkers(t *testing.T) {
	t.Parallel()

	for _, marker := range []string{"webdriver", "plugins", "languages", "window.chrome", "permissions.query"} {
		if !strings.Contains(stealthScript, marker) {
			t.Fatalf("stealth script missing %q override", marker)
		}
	}
}

func TestNewRejectsNegativeParallelism(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{MaxParallel: -1}, nil); err == nil {
		t.Fatal("expected an error for negative parallelism")
	}
}

func TestLimiterAcquireRelease(t *testing.T) {
	t.Parallel()

	f := &Fetcher{limiter: make(chan struct{}, 1)}

	if err := f.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.acquire(ctx); err == nil {
		t.Fatal("expected second acquire to fail while slot is held")
	}

	f.release()
	if err := f.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}
