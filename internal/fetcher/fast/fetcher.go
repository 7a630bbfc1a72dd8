// Package fastfetch implements the lightweight HTTP fetch tier using gocolly.
package fastfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"newsharvest/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Headers       map[string]string
}

// Fetcher performs a plain HTTP GET with browser-like headers and bounded
// retries. It never executes JavaScript; pages that need it are the robust
// tier's problem.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes the GET with retries. Every failure mode, including non-2xx
// status codes, comes back wrapped in scraper.ErrNavigation so the
// orchestrator can treat it as an escalation signal.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scraper.FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.cfg.RetryDelay):
			case <-ctx.Done():
				return scraper.FetchResult{}, fmt.Errorf("fast fetch canceled: %w", ctx.Err())
			}
		}
		result, err := f.fetchOnce(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err
		f.logger.Debug("fast fetch attempt failed",
			zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return scraper.FetchResult{}, fmt.Errorf("%w: http fetch failed after %d attempts: %v",
		scraper.ErrNavigation, f.cfg.RetryAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (scraper.FetchResult, error) {
	var (
		result   scraper.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range f.cfg.Headers {
			r.Headers.Set(key, value)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = scraper.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return scraper.FetchResult{}, err
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return scraper.FetchResult{}, fmt.Errorf("unexpected status %d", result.StatusCode)
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
