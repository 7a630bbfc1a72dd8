// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	browserfetch "newsharvest/internal/fetcher/browser"
	fastfetch "newsharvest/internal/fetcher/fast"
	"newsharvest/internal/proxy"
	"newsharvest/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Scraper ScraperConfig `mapstructure:"scraper"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Browser BrowserConfig `mapstructure:"browser"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScraperConfig governs extraction and validation behavior. The list fields
// replace the built-in defaults when non-empty.
type ScraperConfig struct {
	UserAgent          string   `mapstructure:"user_agent"`
	MinContentLength   int      `mapstructure:"min_content_length"`
	ContainerSelectors []string `mapstructure:"container_selectors"`
	JunkSelectors      []string `mapstructure:"junk_selectors"`
	SubtitleSelectors  []string `mapstructure:"subtitle_selectors"`
	DecoyPhrases       []string `mapstructure:"decoy_phrases"`
}

// HTTPConfig configures the fast-path HTTP fetch tier.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	RetryAttempts  int `mapstructure:"retry_attempts"`
	RetryDelayMs   int `mapstructure:"retry_delay_ms"`
}

// BrowserConfig configures the robust headless-browser tier. The list fields
// replace the built-in defaults when non-empty.
type BrowserConfig struct {
	MaxParallel           int      `mapstructure:"max_parallel"`
	NavTimeoutSeconds     int      `mapstructure:"nav_timeout_seconds"`
	ConsentTimeoutSeconds int      `mapstructure:"consent_timeout_seconds"`
	ConsentSelectors      []string `mapstructure:"consent_selectors"`
	BlockedResourceTypes  []string `mapstructure:"blocked_resource_types"`
	BlockedDomains        []string `mapstructure:"blocked_domains"`
}

// ProxyConfig governs the free-proxy pool.
type ProxyConfig struct {
	// Mode is one of "off", "single", "pool", or "list".
	Mode                string   `mapstructure:"mode"`
	Server              string   `mapstructure:"server"`
	List                []string `mapstructure:"list"`
	MaxProxies          int      `mapstructure:"max_proxies"`
	CooldownMinutes     int      `mapstructure:"cooldown_minutes"`
	ProbeTimeoutSeconds int      `mapstructure:"probe_timeout_seconds"`
	ProbeConcurrency    int      `mapstructure:"probe_concurrency"`
	MaxFailCount        int      `mapstructure:"max_fail_count"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := scraper.DefaultOptions()

	v.SetDefault("scraper.user_agent", defaults.UserAgent)
	v.SetDefault("scraper.min_content_length", defaults.MinContentLength)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.retry_attempts", 2)
	v.SetDefault("http.retry_delay_ms", 1000)
	v.SetDefault("browser.max_parallel", 1)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.consent_timeout_seconds", 3)
	v.SetDefault("proxy.mode", "off")
	v.SetDefault("proxy.max_proxies", 50)
	v.SetDefault("proxy.cooldown_minutes", 30)
	v.SetDefault("proxy.probe_timeout_seconds", 10)
	v.SetDefault("proxy.probe_concurrency", 10)
	v.SetDefault("proxy.max_fail_count", 3)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scraper.MinContentLength <= 0 {
		return fmt.Errorf("scraper.min_content_length must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RetryAttempts < 0 {
		return fmt.Errorf("http.retry_attempts must be >= 0")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	switch c.Proxy.Mode {
	case "off", "pool":
	case "single":
		if c.Proxy.Server == "" {
			return fmt.Errorf("proxy.server must be set when proxy.mode is single")
		}
	case "list":
		if len(c.Proxy.List) == 0 {
			return fmt.Errorf("proxy.list must be non-empty when proxy.mode is list")
		}
	default:
		return fmt.Errorf("proxy.mode must be one of off, single, pool, list")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// ScraperOptions merges the configured knobs into the scraper defaults.
func (c Config) ScraperOptions() *scraper.Options {
	opts := scraper.DefaultOptions()
	if c.Scraper.UserAgent != "" {
		opts.UserAgent = c.Scraper.UserAgent
	}
	if c.Scraper.MinContentLength > 0 {
		opts.MinContentLength = c.Scraper.MinContentLength
	}
	if len(c.Scraper.ContainerSelectors) > 0 {
		opts.ContainerSelectors = c.Scraper.ContainerSelectors
	}
	if len(c.Scraper.JunkSelectors) > 0 {
		opts.JunkSelectors = c.Scraper.JunkSelectors
	}
	if len(c.Scraper.SubtitleSelectors) > 0 {
		opts.SubtitleSelectors = c.Scraper.SubtitleSelectors
	}
	if len(c.Scraper.DecoyPhrases) > 0 {
		opts.DecoyPhrases = c.Scraper.DecoyPhrases
	}
	if len(c.Browser.ConsentSelectors) > 0 {
		opts.ConsentSelectors = c.Browser.ConsentSelectors
	}
	if len(c.Browser.BlockedResourceTypes) > 0 {
		opts.BlockedResourceTypes = c.Browser.BlockedResourceTypes
	}
	if len(c.Browser.BlockedDomains) > 0 {
		opts.BlockedDomains = c.Browser.BlockedDomains
	}
	opts.RequestTimeout = time.Duration(c.HTTP.TimeoutSeconds) * time.Second
	opts.RetryAttempts = c.HTTP.RetryAttempts
	opts.RetryDelay = time.Duration(c.HTTP.RetryDelayMs) * time.Millisecond
	opts.NavigationTimeout = time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
	opts.ConsentTimeout = time.Duration(c.Browser.ConsentTimeoutSeconds) * time.Second
	return &opts
}

// FastConfig builds the fast-path fetcher configuration.
func (c Config) FastConfig() fastfetch.Config {
	opts := c.ScraperOptions()
	return fastfetch.Config{
		UserAgent:     opts.UserAgent,
		Timeout:       opts.RequestTimeout,
		RetryAttempts: opts.RetryAttempts,
		RetryDelay:    opts.RetryDelay,
		Headers:       scraper.BrowserHeaders(),
	}
}

// BrowserFetchConfig builds the headless-browser fetcher configuration.
func (c Config) BrowserFetchConfig() browserfetch.Config {
	opts := c.ScraperOptions()
	return browserfetch.Config{
		UserAgent:            opts.UserAgent,
		NavigationTimeout:    opts.NavigationTimeout,
		ConsentTimeout:       opts.ConsentTimeout,
		ConsentSelectors:     opts.ConsentSelectors,
		BlockedResourceTypes: opts.BlockedResourceTypes,
		BlockedDomains:       opts.BlockedDomains,
		ExtraHeaders:         scraper.BrowserHeaders(),
		MaxParallel:          c.Browser.MaxParallel,
	}
}

// PoolConfig builds the proxy pool configuration.
func (c Config) PoolConfig() proxy.Config {
	return proxy.Config{
		MaxProxies:       c.Proxy.MaxProxies,
		Cooldown:         time.Duration(c.Proxy.CooldownMinutes) * time.Minute,
		ProbeTimeout:     time.Duration(c.Proxy.ProbeTimeoutSeconds) * time.Second,
		ProbeConcurrency: c.Proxy.ProbeConcurrency,
		MaxFailCount:     c.Proxy.MaxFailCount,
		UserAgent:        c.Scraper.UserAgent,
	}
}
