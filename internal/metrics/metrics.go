// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperRunsTotal        *prometheus.CounterVec
	scraperEscalationsTotal prometheus.Counter
	scraperRunSeconds       *prometheus.HistogramVec
	scraperStageSeconds     *prometheus.HistogramVec
	proxyValidationsTotal   *prometheus.CounterVec
	proxyPoolWorking        prometheus.Gauge
	proxyPoolBlacklisted    prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Every observe helper calls it,
// so explicit initialization is only needed to force registration order.
func Init() {
	once.Do(func() {
		scraperRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Total workflow runs, labeled by result, fetch method, and site.",
			},
			[]string{"result", "method", "site"},
		)

		scraperEscalationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_escalations_total",
				Help: "Total fast-path failures that escalated to the browser tier.",
			},
		)

		scraperRunSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_run_seconds",
				Help:    "Wall time per workflow run, labeled by result.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		)

		scraperStageSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_stage_seconds",
				Help:    "Time spent per workflow stage.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
			},
			[]string{"stage"},
		)

		proxyValidationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_validations_total",
				Help: "Total proxy validation probes, labeled by result.",
			},
			[]string{"result"},
		)

		proxyPoolWorking = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_pool_working",
				Help: "Current size of the working proxy set.",
			},
		)

		proxyPoolBlacklisted = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_pool_blacklisted",
				Help: "Proxies permanently blacklisted this process lifetime.",
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname for metric labels. It returns
// "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun records a finished workflow run against the target's hostname.
func ObserveRun(result, method, rawURL string, duration time.Duration) {
	Init()
	if method == "" {
		method = "none"
	}
	scraperRunsTotal.WithLabelValues(result, method, SanitizeSite(rawURL)).Inc()
	scraperRunSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveEscalation counts a fast-path failure that moved to the robust tier.
func ObserveEscalation() {
	Init()
	scraperEscalationsTotal.Inc()
}

// ObserveStage records the time spent in one workflow stage.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	scraperStageSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveProxyValidation counts one validation probe outcome.
func ObserveProxyValidation(ok bool) {
	Init()
	result := "fail"
	if ok {
		result = "ok"
	}
	proxyValidationsTotal.WithLabelValues(result).Inc()
}

// SetProxyPool updates the pool gauges after a refresh.
func SetProxyPool(working, blacklisted int) {
	Init()
	proxyPoolWorking.Set(float64(working))
	proxyPoolBlacklisted.Set(float64(blacklisted))
}
