package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.TimeoutSeconds != 15 || cfg.HTTP.RetryAttempts != 2 {
		t.Fatalf("expected default http settings, got %+v", cfg.HTTP)
	}
	if cfg.Proxy.Mode != "off" {
		t.Fatalf("expected proxy mode off by default, got %q", cfg.Proxy.Mode)
	}
	if cfg.Scraper.MinContentLength != 250 {
		t.Fatalf("expected default min content length 250, got %d", cfg.Scraper.MinContentLength)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scraper:
  user_agent: harvest-agent
  min_content_length: 400
http:
  timeout_seconds: 45
  retry_attempts: 4
  retry_delay_ms: 250
browser:
  max_parallel: 2
  nav_timeout_seconds: 30
  consent_timeout_seconds: 5
proxy:
  mode: pool
  max_proxies: 25
  cooldown_minutes: 10
metrics:
  enabled: true
  port: 2112
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scraper.UserAgent != "harvest-agent" {
		t.Fatalf("expected user agent override, got %q", cfg.Scraper.UserAgent)
	}
	if cfg.HTTP.TimeoutSeconds != 45 || cfg.HTTP.RetryAttempts != 4 {
		t.Fatalf("expected http overrides to apply, got %+v", cfg.HTTP)
	}
	if cfg.Proxy.Mode != "pool" || cfg.Proxy.MaxProxies != 25 {
		t.Fatalf("expected proxy overrides to apply, got %+v", cfg.Proxy)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 2112 {
		t.Fatalf("expected metrics overrides to apply, got %+v", cfg.Metrics)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Scraper: ScraperConfig{MinContentLength: 250},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Browser: BrowserConfig{MaxParallel: 1, NavTimeoutSeconds: 45},
		Proxy:   ProxyConfig{Mode: "off"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid min content length",
			cfg: func() Config {
				c := base
				c.Scraper.MinContentLength = 0
				return c
			}(),
			want: "scraper.min_content_length",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "invalid browser parallelism",
			cfg: func() Config {
				c := base
				c.Browser.MaxParallel = 0
				return c
			}(),
			want: "browser.max_parallel",
		},
		{
			name: "single mode missing server",
			cfg: func() Config {
				c := base
				c.Proxy.Mode = "single"
				return c
			}(),
			want: "proxy.server",
		},
		{
			name: "list mode missing entries",
			cfg: func() Config {
				c := base
				c.Proxy.Mode = "list"
				return c
			}(),
			want: "proxy.list",
		},
		{
			name: "unknown proxy mode",
			cfg: func() Config {
				c := base
				c.Proxy.Mode = "rotate"
				return c
			}(),
			want: "proxy.mode",
		},
		{
			name: "metrics missing port",
			cfg: func() Config {
				c := base
				c.Metrics.Enabled = true
				c.Metrics.Port = 0
				return c
			}(),
			want: "metrics.port",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigConverters(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Scraper: ScraperConfig{UserAgent: "harvest-agent", MinContentLength: 300},
		HTTP:    HTTPConfig{TimeoutSeconds: 20, RetryAttempts: 3, RetryDelayMs: 500},
		Browser: BrowserConfig{MaxParallel: 2, NavTimeoutSeconds: 60, ConsentTimeoutSeconds: 4},
		Proxy:   ProxyConfig{Mode: "pool", MaxProxies: 20, CooldownMinutes: 15, ProbeTimeoutSeconds: 5, ProbeConcurrency: 8, MaxFailCount: 3},
	}

	opts := cfg.ScraperOptions()
	if opts.UserAgent != "harvest-agent" || opts.MinContentLength != 300 {
		t.Fatalf("expected scraper overrides in options, got %+v", opts)
	}
	if opts.RequestTimeout != 20*time.Second || opts.RetryDelay != 500*time.Millisecond {
		t.Fatalf("expected http durations in options, got %+v", opts)
	}

	fast := cfg.FastConfig()
	if fast.UserAgent != "harvest-agent" || fast.RetryAttempts != 3 {
		t.Fatalf("expected fast config to inherit options, got %+v", fast)
	}
	if len(fast.Headers) == 0 {
		t.Fatal("expected browser-like headers on fast config")
	}

	browser := cfg.BrowserFetchConfig()
	if browser.NavigationTimeout != 60*time.Second || browser.MaxParallel != 2 {
		t.Fatalf("expected browser config to inherit settings, got %+v", browser)
	}
	if len(browser.ConsentSelectors) == 0 {
		t.Fatal("expected consent selectors on browser config")
	}

	pool := cfg.PoolConfig()
	if pool.Cooldown != 15*time.Minute || pool.MaxProxies != 20 {
		t.Fatalf("expected pool config to inherit settings, got %+v", pool)
	}
}
