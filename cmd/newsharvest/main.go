// Package main wires together the newsharvest scraper binary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"newsharvest/internal/config"
	browserfetch "newsharvest/internal/fetcher/browser"
	fastfetch "newsharvest/internal/fetcher/fast"
	"newsharvest/internal/logging"
	"newsharvest/internal/metrics"
	"newsharvest/internal/progress"
	"newsharvest/internal/proxy"
	"newsharvest/internal/workflow"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	targetURL := flag.String("url", "", "Article URL to scrape")
	proxyStats := flag.Bool("proxy-stats", false, "Refresh the proxy pool and print its stats")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, logger)
	}

	if *proxyStats {
		os.Exit(runProxyStats(ctx, cfg, logger))
	}

	if *targetURL == "" {
		fmt.Fprintln(os.Stderr, "usage: newsharvest -url <article-url> [-config <path>]")
		os.Exit(2)
	}
	os.Exit(runScrape(ctx, cfg, logger, *targetURL))
}

func runScrape(ctx context.Context, cfg config.Config, logger *zap.Logger, targetURL string) int {
	fastFetcher := fastfetch.New(cfg.FastConfig(), logger.Named("fast"))

	browserFetcher, err := browserfetch.New(cfg.BrowserFetchConfig(), logger.Named("browser"))
	if err != nil {
		logger.Error("browser fetcher init failed", zap.Error(err))
		return 1
	}
	defer browserFetcher.Close()

	provider := buildProxyProvider(cfg, logger)

	opts := cfg.ScraperOptions()
	orch := workflow.New(opts, fastFetcher, browserFetcher, provider, logger.Named("workflow"))

	var article any
	for evt := range orch.Run(ctx, targetURL) {
		progress.Log(logger, evt)
		if evt.Status == progress.StatusError {
			return 1
		}
		if evt.Status == progress.StatusComplete {
			article = evt.Article
		}
	}
	if article == nil {
		return 1
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(article); err != nil {
		logger.Error("encode article failed", zap.Error(err))
		return 1
	}
	return 0
}

func runProxyStats(ctx context.Context, cfg config.Config, logger *zap.Logger) int {
	pool := proxy.New(cfg.PoolConfig(), proxy.NewDefaultSources(nil), logger.Named("proxy"))
	pool.Refresh(ctx, true)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(pool.Stats()); err != nil {
		logger.Error("encode proxy stats failed", zap.Error(err))
		return 1
	}
	return 0
}

// buildProxyProvider maps the configured proxy mode onto a provider.
func buildProxyProvider(cfg config.Config, logger *zap.Logger) workflow.ProxyProvider {
	switch cfg.Proxy.Mode {
	case "single":
		return workflow.StaticProxy(cfg.Proxy.Server)
	case "list":
		return workflow.ListProxy(cfg.Proxy.List)
	case "pool":
		pool := proxy.New(cfg.PoolConfig(), proxy.NewDefaultSources(nil), logger.Named("proxy"))
		return workflow.PoolProxy(pool)
	default:
		return workflow.NoProxy()
	}
}

func serveMetrics(port int, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server started", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", zap.Error(err))
	}
}
