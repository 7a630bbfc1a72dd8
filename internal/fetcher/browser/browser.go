// Package browserfetch implements the robust fetch tier: a full headless
// browser session with anti-automation countermeasures, request
// interception, and human-mimicking navigation.
package browserfetch

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"newsharvest/internal/scraper"
)

// Config controls the behavior of the browser fetcher.
type Config struct {
	UserAgent            string
	NavigationTimeout    time.Duration
	ConsentTimeout       time.Duration
	ConsentSelectors     []string
	BlockedResourceTypes []string
	BlockedDomains       []string
	ExtraHeaders         map[string]string
	MaxParallel          int
}

// Fetcher drives headless Chrome through chromedp. The exec allocator (the
// browser process) is shared across runs; every Fetch gets its own isolated
// tab context with fresh cookies and cache.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a browser fetcher with a shared allocator.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ConsentTimeout <= 0 {
		cfg.ConsentTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions("")...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close tears down the shared browser process.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// allocatorOptions returns Chrome launch flags that keep automation markers
// out of the renderer. Chrome only accepts a proxy at launch time, so a
// non-empty proxyServer is threaded in here.
func allocatorOptions(proxyServer string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
	)
	if proxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(proxyServer))
	}
	return opts
}

// Fetch navigates to the URL with full browser capabilities and returns the
// rendered DOM. The tab context is always released, on every exit path.
func (f *Fetcher) Fetch(ctx context.Context, url, proxyServer string) (scraper.FetchResult, error) {
	if err := f.acquire(ctx); err != nil {
		return scraper.FetchResult{}, err
	}
	defer f.release()

	allocator := f.allocator
	if proxyServer != "" {
		proxyAlloc, proxyCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(proxyServer)...)
		defer proxyCancel()
		allocator = proxyAlloc
		f.logger.Info("browser session using proxy", zap.String("proxy", proxyServer))
	}

	taskCtx, taskCancel := chromedp.NewContext(allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	blocker := newRequestBlocker(f.cfg.BlockedResourceTypes, f.cfg.BlockedDomains)
	chromedp.ListenTarget(taskCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			meta.capture(e)
		case *fetch.EventRequestPaused:
			go f.resolvePausedRequest(taskCtx, blocker, e)
		}
	})

	start := time.Now()
	html, finalURL, err := f.runSession(taskCtx, url)
	if err != nil {
		return scraper.FetchResult{}, fmt.Errorf("%w: %v", scraper.ErrNavigation, err)
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	if headers == nil {
		headers = http.Header{}
	}

	return scraper.FetchResult{
		URL:        responseURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (f *Fetcher) runSession(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		fetch.Enable(),
		f.sessionSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		randomSleep(1500, 3000),
		moveMouse(float64(rand.Intn(100)), float64(rand.Intn(100))),
		chromedp.Sleep(2 * time.Second),
		f.dismissConsentAction(),
		simulateScroll(),
		randomSleep(1000, 2000),
		waitForQuietDOM(10 * time.Second),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

// sessionSetupAction configures the tab before navigation: network domain,
// user agent and viewport overrides, realistic headers, and the stealth
// script that runs before any page script.
func (f *Fetcher) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if err := emulation.SetDeviceMetricsOverride(1920, 1080, 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if len(f.cfg.ExtraHeaders) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(f.cfg.ExtraHeaders)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
			return fmt.Errorf("install stealth script: %w", err)
		}
		return nil
	})
}

// resolvePausedRequest aborts blocked requests and continues the rest. It
// runs off the listener goroutine because CDP commands cannot be issued from
// within the event handler.
func (f *Fetcher) resolvePausedRequest(ctx context.Context, blocker *requestBlocker, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(ctx, c.Target)
	if blocker.shouldBlock(ev.ResourceType, ev.Request.URL) {
		if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
			f.logger.Debug("abort request failed", zap.Error(err))
		}
		return
	}
	if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil {
		f.logger.Debug("continue request failed", zap.Error(err))
	}
}

// dismissConsentAction walks the consent-button selectors in order and clicks
// the first visible match, then lets the page settle.
func (f *Fetcher) dismissConsentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, sel := range f.cfg.ConsentSelectors {
			clickCtx, cancel := context.WithTimeout(ctx, f.cfg.ConsentTimeout)
			err := chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible).Do(clickCtx)
			cancel()
			if err != nil {
				continue
			}
			f.logger.Debug("cookie consent dismissed", zap.String("selector", sel))
			return chromedp.Sleep(3 * time.Second).Do(ctx)
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func randomSleep(minMs, maxMs int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		d := time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
		return chromedp.Sleep(d).Do(ctx)
	})
}

func moveMouse(x, y float64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
}

func simulateScroll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		js := fmt.Sprintf("window.scrollBy(0, %d)", 100+rand.Intn(200))
		return chromedp.Evaluate(js, nil).Do(ctx)
	})
}

// waitForQuietDOM polls the document size until it stops changing or the
// budget runs out. Chrome DevTools has no first-class network-idle signal,
// so DOM stability stands in for it.
func waitForQuietDOM(budget time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(budget)
		var previous int
		stable := 0
		for time.Now().Before(deadline) {
			var size int
			if err := chromedp.Evaluate("document.documentElement.outerHTML.length", &size).Do(ctx); err != nil {
				return nil
			}
			if size == previous {
				stable++
				if stable >= 2 {
					return nil
				}
			} else {
				stable = 0
				previous = size
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		return nil
	})
}

// requestBlocker decides which intercepted requests get aborted.
type requestBlocker struct {
	resourceTypes map[string]struct{}
	domains       []string
}

func newRequestBlocker(resourceTypes, domains []string) *requestBlocker {
	types := make(map[string]struct{}, len(resourceTypes))
	for _, t := range resourceTypes {
		types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &requestBlocker{resourceTypes: types, domains: domains}
}

func (b *requestBlocker) shouldBlock(resourceType network.ResourceType, url string) bool {
	if _, ok := b.resourceTypes[strings.ToLower(string(resourceType))]; ok {
		return true
	}
	for _, domain := range b.domains {
		if domain != "" && strings.Contains(url, domain) {
			return true
		}
	}
	return false
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, cloneHeader(m.headers), m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h map[string]string) network.Headers {
	headers := network.Headers{}
	for key, value := range h {
		headers[key] = value
	}
	return headers
}
