package scraper

import "time"

// Options is the single explicit configuration value shared by the fetch
// tiers, the extractors, and the orchestrator. Construct it once (usually
// from the config package) and pass it by reference; there is no ambient
// global configuration.
type Options struct {
	UserAgent string

	// Fast path.
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Robust path.
	NavigationTimeout    time.Duration
	ConsentTimeout       time.Duration
	ConsentSelectors     []string
	BlockedResourceTypes []string
	BlockedDomains       []string

	// Extraction.
	ContainerSelectors []string
	JunkSelectors      []string
	SubtitleSelectors  []string

	// Validation.
	MinContentLength int
	DecoyPhrases     []string
}

// DefaultOptions returns the stock selector lists and timing knobs. The
// selector lists cover the mainstream news CMSes; site-specific additions
// come in through configuration.
func DefaultOptions() Options {
	return Options{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36" +
			" (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",

		RequestTimeout: 15 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     time.Second,

		NavigationTimeout: 45 * time.Second,
		ConsentTimeout:    3 * time.Second,
		ConsentSelectors: []string{
			`button#didomi-notice-agree-button`,
			`button[data-testid="uc-accept-all-button"]`,
			`.accept-cookies`,
			`#accept-cookies`,
		},
		BlockedResourceTypes: []string{"image", "stylesheet", "font", "media"},
		BlockedDomains: []string{
			"googletagmanager.com", "google-analytics.com",
			"adservice.google.com", "chartbeat.com", "facebook.com",
			"twitter.com", "linkedin.com",
		},

		ContainerSelectors: []string{
			"article", `[role="article"]`, ".post-content", ".article-body",
			".story-body", ".article-content", ".t-content__body",
			".standard-article-body", ".entry-content", ".post-body",
		},
		JunkSelectors: []string{
			".related-links", ".ad-container", ".social-share", ".author-bio",
			"figure.author", ".vjs-playlist", ".comments", ".sidebar",
			".advertisement", ".ads", ".sponsored",
		},
		SubtitleSelectors: []string{
			"p.intro", "h2.article__summary", "p.standfirst-lead",
			".c-article-header__standfirst", ".article-header__deck",
			".subtitle", ".deck",
		},

		MinContentLength: 250,
		DecoyPhrases: []string{
			"page not found", "page non trouvée",
			"enable javascript", "checking your browser",
		},
	}
}

// BrowserHeaders is the realistic header set sent by both fetch tiers.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}
