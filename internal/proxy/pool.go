package proxy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"newsharvest/internal/metrics"
)

// Config controls pool sizing and validation behavior.
type Config struct {
	// MaxProxies caps the working set; worst-ranked records are evicted.
	MaxProxies int
	// Cooldown is how long Refresh treats the working set as fresh.
	Cooldown time.Duration
	// ProbeTimeout bounds a single validation probe.
	ProbeTimeout time.Duration
	// ProbeConcurrency gates simultaneous in-flight probes.
	ProbeConcurrency int
	// TestEndpoints are probed through candidates; one is picked at random.
	TestEndpoints []string
	// MaxFailCount permanently blacklists a proxy once reached.
	MaxFailCount int
	// UserAgent is sent on probes and source fetches.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.MaxProxies <= 0 {
		c.MaxProxies = 50
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Minute
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 10
	}
	if len(c.TestEndpoints) == 0 {
		c.TestEndpoints = []string{
			"http://httpbin.org/ip",
			"https://httpbin.org/ip",
			"http://ip-api.com/json",
		}
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = 3
	}
}

// probeFunc issues one outbound request through the candidate and returns
// the observed latency. Swappable in tests.
type probeFunc func(ctx context.Context, rec Record) (time.Duration, error)

// Pool is safe for concurrent use. The working set is replaced atomically on
// refresh; readers never observe a partial update. The blacklist only grows
// for the lifetime of the process.
type Pool struct {
	cfg     Config
	sources []Source
	logger  *zap.Logger
	probe   probeFunc

	mu         sync.RWMutex
	working    []Record
	failCounts map[string]int
	blacklist  map[string]struct{}
	lastFetch  time.Time
}

// New builds a Pool over the given sources. Pass NewDefaultSources for the
// stock public proxy lists.
func New(cfg Config, sources []Source, logger *zap.Logger) *Pool {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:        cfg,
		sources:    sources,
		logger:     logger,
		failCounts: make(map[string]int),
		blacklist:  make(map[string]struct{}),
	}
	p.probe = p.httpProbe
	return p
}

// FetchCandidates queries every source in parallel and returns the
// deduplicated union. A failing source is logged and skipped; zero working
// sources yields an empty set and a warning, not an error.
func (p *Pool) FetchCandidates(ctx context.Context) []Record {
	var (
		mu  sync.Mutex
		all []Record
		wg  sync.WaitGroup
	)
	for _, src := range p.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			records, err := src.Fetch(ctx)
			if err != nil {
				p.logger.Warn("proxy source fetch failed",
					zap.String("source", src.Name()), zap.Error(err))
				return
			}
			p.logger.Info("proxy source fetched",
				zap.String("source", src.Name()), zap.Int("count", len(records)))
			mu.Lock()
			all = append(all, records...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	unique := dedupe(all)
	if len(unique) == 0 {
		p.logger.Warn("no proxy candidates fetched from any source")
	}
	return unique
}

// ValidateBatch probes candidates under the concurrency gate and returns the
// ones that passed. Each probe mutates only its own copy of the record; fail
// accounting and blacklisting merge through the pool's lock.
func (p *Pool) ValidateBatch(ctx context.Context, candidates []Record) []Record {
	var (
		mu      sync.Mutex
		passed  []Record
		wg      sync.WaitGroup
		limiter = make(chan struct{}, p.cfg.ProbeConcurrency)
	)
	for _, candidate := range candidates {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			select {
			case limiter <- struct{}{}:
				defer func() { <-limiter }()
			case <-ctx.Done():
				return
			}
			if ok := p.validate(ctx, &rec); ok {
				mu.Lock()
				passed = append(passed, rec)
				mu.Unlock()
			}
		}(candidate)
	}
	wg.Wait()
	return passed
}

// validate runs one probe and applies the outcome to the record copy and the
// pool's fail ledger.
func (p *Pool) validate(ctx context.Context, rec *Record) bool {
	if p.isBlacklisted(rec.Key()) {
		return false
	}

	latency, err := p.probe(ctx, *rec)
	rec.LastChecked = time.Now()
	if err != nil {
		rec.IsWorking = false
		p.recordFailure(rec)
		metrics.ObserveProxyValidation(false)
		return false
	}

	rec.IsWorking = true
	rec.LatencySeconds = latency.Seconds()
	rec.SuccessCount++
	metrics.ObserveProxyValidation(true)
	return true
}

func (p *Pool) recordFailure(rec *Record) {
	key := rec.Key()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCounts[key]++
	rec.FailCount = p.failCounts[key]
	if p.failCounts[key] >= p.cfg.MaxFailCount {
		p.blacklist[key] = struct{}{}
		p.logger.Debug("proxy blacklisted", zap.String("proxy", key), zap.Int("failures", rec.FailCount))
	}
}

func (p *Pool) isBlacklisted(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.blacklist[key]
	return ok
}

// Refresh rebuilds the working set unless it is still within the cooldown
// window. force bypasses the cooldown. The new set merges freshly validated
// candidates with the previous working set, ranked by success count then
// latency, truncated to the cap, and swapped in atomically.
func (p *Pool) Refresh(ctx context.Context, force bool) []Record {
	p.mu.RLock()
	fresh := !force && !p.lastFetch.IsZero() && time.Since(p.lastFetch) < p.cfg.Cooldown
	current := p.working
	p.mu.RUnlock()
	if fresh {
		p.logger.Debug("proxy refresh skipped, working set still fresh")
		return current
	}

	candidates := p.FetchCandidates(ctx)
	if len(candidates) == 0 {
		p.logger.Warn("proxy refresh found no candidates, keeping existing working set")
		return current
	}

	p.logger.Info("validating proxy candidates", zap.Int("count", len(candidates)))
	validated := p.ValidateBatch(ctx, candidates)

	merged := dedupe(append(append([]Record(nil), current...), validated...))
	ranked := merged[:0:0]
	for _, rec := range merged {
		if !p.isBlacklisted(rec.Key()) {
			ranked = append(ranked, rec)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SuccessCount != ranked[j].SuccessCount {
			return ranked[i].SuccessCount > ranked[j].SuccessCount
		}
		return ranked[i].LatencySeconds < ranked[j].LatencySeconds
	})
	if len(ranked) > p.cfg.MaxProxies {
		ranked = ranked[:p.cfg.MaxProxies]
	}

	p.mu.Lock()
	p.working = ranked
	p.lastFetch = time.Now()
	blacklisted := len(p.blacklist)
	p.mu.Unlock()

	metrics.SetProxyPool(len(ranked), blacklisted)
	p.logger.Info("proxy refresh complete", zap.Int("working", len(ranked)))
	return ranked
}

// Select picks a working proxy by weighted random choice, weight = success
// count + 1 so unproven proxies stay eligible. ok is false when the set is
// empty; callers proceed proxy-less, they never block.
func (p *Pool) Select() (Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.working) == 0 {
		return Record{}, false
	}
	total := 0
	for _, rec := range p.working {
		total += rec.SuccessCount + 1
	}
	n := rand.Intn(total)
	for _, rec := range p.working {
		n -= rec.SuccessCount + 1
		if n < 0 {
			return rec, true
		}
	}
	return p.working[len(p.working)-1], true
}

// Stats summarizes pool health for operators.
type Stats struct {
	TotalWorking      int            `json:"total_working"`
	TotalBlacklisted  int            `json:"total_blacklisted"`
	LastFetch         time.Time      `json:"last_fetch"`
	AvgLatencySeconds float64        `json:"avg_latency_seconds"`
	TopCountries      []CountryCount `json:"top_countries"`
}

// CountryCount pairs a country code with its working-proxy count.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// Stats reports counts, average latency, and the top source countries.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		TotalWorking:     len(p.working),
		TotalBlacklisted: len(p.blacklist),
		LastFetch:        p.lastFetch,
	}
	if len(p.working) > 0 {
		var sum float64
		for _, rec := range p.working {
			sum += rec.LatencySeconds
		}
		stats.AvgLatencySeconds = sum / float64(len(p.working))
	}

	counts := make(map[string]int)
	for _, rec := range p.working {
		if rec.Country != "" {
			counts[rec.Country]++
		}
	}
	for country, count := range counts {
		stats.TopCountries = append(stats.TopCountries, CountryCount{Country: country, Count: count})
	}
	sort.Slice(stats.TopCountries, func(i, j int) bool {
		if stats.TopCountries[i].Count != stats.TopCountries[j].Count {
			return stats.TopCountries[i].Count > stats.TopCountries[j].Count
		}
		return stats.TopCountries[i].Country < stats.TopCountries[j].Country
	})
	if len(stats.TopCountries) > 5 {
		stats.TopCountries = stats.TopCountries[:5]
	}
	return stats
}

// httpProbe issues a GET through the candidate against a random test
// endpoint.
func (p *Pool) httpProbe(ctx context.Context, rec Record) (time.Duration, error) {
	proxyURL, err := url.Parse(rec.ServerURL())
	if err != nil {
		return 0, err
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   p.cfg.ProbeTimeout,
	}
	endpoint := p.cfg.TestEndpoints[rand.Intn(len(p.cfg.TestEndpoints))]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

func dedupe(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	unique := records[:0:0]
	for _, rec := range records {
		key := rec.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}
	return unique
}
