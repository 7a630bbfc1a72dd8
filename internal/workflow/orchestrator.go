// Package workflow drives a scrape run through its stages: URL validation,
// the two fetch tiers, extraction, and validation of the result. Each run
// emits a finite event sequence ending in exactly one terminal event.
package workflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsharvest/internal/extract"
	"newsharvest/internal/metrics"
	"newsharvest/internal/progress"
	"newsharvest/internal/scraper"
)

// FastFetcher is the lightweight HTTP tier.
type FastFetcher interface {
	Fetch(ctx context.Context, url string) (scraper.FetchResult, error)
}

// BrowserFetcher is the robust headless-browser tier. proxyServer is empty
// when the run is not using a proxy.
type BrowserFetcher interface {
	Fetch(ctx context.Context, url, proxyServer string) (scraper.FetchResult, error)
}

// eventBuffer is sized above the longest possible event sequence so the run
// goroutine never blocks on an abandoned consumer and its deferred cleanup
// always executes.
const eventBuffer = 16

// Orchestrator coordinates one scrape run end to end.
type Orchestrator struct {
	opts     *scraper.Options
	fast     FastFetcher
	browser  BrowserFetcher
	proxies  ProxyProvider
	content  *extract.ContentExtractor
	metadata *extract.MetadataExtractor
	logger   *zap.Logger
}

// New builds an Orchestrator. A nil proxy provider means proxy-less runs.
func New(opts *scraper.Options, fast FastFetcher, browser BrowserFetcher, proxies ProxyProvider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if proxies == nil {
		proxies = NoProxy()
	}
	return &Orchestrator{
		opts:     opts,
		fast:     fast,
		browser:  browser,
		proxies:  proxies,
		content:  extract.NewContentExtractor(opts, logger),
		metadata: extract.NewMetadataExtractor(logger),
		logger:   logger,
	}
}

// Run starts a scrape and returns its event stream. The channel is closed
// after the terminal event; the caller may stop reading at any time without
// leaking the run goroutine.
func (o *Orchestrator) Run(ctx context.Context, rawURL string) <-chan progress.Event {
	events := make(chan progress.Event, eventBuffer)
	em := &emitter{
		runID:   uuid.New(),
		started: time.Now(),
		events:  events,
	}

	go func() {
		defer close(events)
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("scrape run panicked", zap.Any("panic", r))
				em.fail(em.stageLabel, fmt.Errorf("unexpected failure: %v", r))
				metrics.ObserveRun("error", "", rawURL, time.Since(em.started))
			}
		}()

		article, err := o.execute(ctx, rawURL, em)
		if err != nil {
			em.fail(em.stageLabel, err)
			metrics.ObserveRun("error", string(em.method), rawURL, time.Since(em.started))
			return
		}
		em.complete(article)
		metrics.ObserveRun("complete", string(article.ScrapedWith), rawURL, time.Since(em.started))
	}()

	return events
}

// RunError is the terminal error of a failed run, carrying its classified
// kind.
type RunError struct {
	Kind    string
	Message string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ScrapeOne runs the workflow and returns only the outcome, discarding the
// intermediate progress events.
func (o *Orchestrator) ScrapeOne(ctx context.Context, rawURL string) (*scraper.Article, error) {
	var (
		article *scraper.Article
		runErr  error
	)
	for evt := range o.Run(ctx, rawURL) {
		switch evt.Status {
		case progress.StatusComplete:
			article = evt.Article
		case progress.StatusError:
			runErr = &RunError{Kind: evt.ErrorKind, Message: evt.Error}
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if article == nil {
		return nil, &RunError{Kind: "UnexpectedError", Message: "run produced no terminal event"}
	}
	return article, nil
}

// execute walks the stages in order. Any returned error becomes the terminal
// error event at the stage recorded on the emitter.
func (o *Orchestrator) execute(ctx context.Context, rawURL string, em *emitter) (*scraper.Article, error) {
	em.progress(progress.StageInitialization, 1, "validating url")
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	result, content, fastErr := o.fastAttempt(ctx, rawURL, em)
	if fastErr != nil {
		result, content, err = o.robustAttempt(ctx, rawURL, fastErr, em)
		if err != nil {
			return nil, err
		}
	} else {
		em.progress(progress.StageContentExtraction, 5, "content extracted on fast path")
		em.progress(progress.StageValidation, 5, "content validated")
	}

	em.progress(progress.StageMetadataExtraction, 6, "extracting metadata")
	stageStart := time.Now()
	meta := o.metadata.ExtractHTML(string(result.Body))
	meta.WordCount = len(strings.Fields(content.Markdown))
	meta.ReadingTimeMinutes = scraper.ReadingTime(meta.WordCount)
	metrics.ObserveStage(string(progress.StageMetadataExtraction), time.Since(stageStart))

	return o.buildArticle(target, result, content, meta, em), nil
}

// fastAttempt runs the whole fast tier: the HTTP fetch plus content
// extraction and validation of its HTML. A failure of any kind here is an
// escalation signal, never a terminal error; a 200 serving a decoy
// interstitial escalates the same way a connection error does.
func (o *Orchestrator) fastAttempt(ctx context.Context, rawURL string, em *emitter) (scraper.FetchResult, extract.ContentResult, error) {
	em.progress(progress.StageFastPath, 2, "attempting fast http fetch")
	em.method = scraper.MethodHTTP
	stageStart := time.Now()
	defer func() {
		metrics.ObserveStage(string(progress.StageFastPath), time.Since(stageStart))
	}()

	result, err := o.fast.Fetch(ctx, rawURL)
	if err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}

	content, err := o.content.Extract(string(result.Body), result.URL)
	if err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}
	if err := o.validateContent(content.Markdown); err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}

	o.logger.Debug("fast path succeeded",
		zap.String("url", rawURL), zap.Int("status", result.StatusCode))
	return result, content, nil
}

// robustAttempt escalates to the browser tier and re-runs extraction and
// validation on its HTML. Failures here are terminal.
func (o *Orchestrator) robustAttempt(ctx context.Context, rawURL string, fastErr error, em *emitter) (scraper.FetchResult, extract.ContentResult, error) {
	o.logger.Info("fast path failed, escalating to browser",
		zap.String("url", rawURL), zap.Error(fastErr))
	metrics.ObserveEscalation()

	em.escalate(progress.StageRobustPath, 3, "escalating to headless browser", fastErr)
	em.method = scraper.MethodBrowser
	proxyServer := o.proxies.Next(ctx)
	if proxyServer != "" {
		o.logger.Debug("browser run using proxy", zap.String("proxy", proxyServer))
	}

	em.progress(progress.StageNavigation, 4, "navigating with headless browser")
	stageStart := time.Now()
	result, err := o.browser.Fetch(ctx, rawURL, proxyServer)
	metrics.ObserveStage(string(progress.StageNavigation), time.Since(stageStart))
	if err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}

	em.progress(progress.StageContentExtraction, 5, "extracting article content")
	stageStart = time.Now()
	content, err := o.content.Extract(string(result.Body), result.URL)
	metrics.ObserveStage(string(progress.StageContentExtraction), time.Since(stageStart))
	if err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}

	em.progress(progress.StageValidation, 5, "validating extracted content")
	if err := o.validateContent(content.Markdown); err != nil {
		return scraper.FetchResult{}, extract.ContentResult{}, err
	}
	return result, content, nil
}

// validateContent rejects decoy interstitials and bodies too short to be an
// article. A too-short body is treated as a blocked page, not a short article,
// so it carries the decoy kind.
func (o *Orchestrator) validateContent(markdown string) error {
	lower := strings.ToLower(markdown)
	for _, phrase := range o.opts.DecoyPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("%w: body contains %q", scraper.ErrDecoyPage, phrase)
		}
	}
	if len(markdown) < o.opts.MinContentLength {
		return fmt.Errorf("%w: body length %d below minimum %d",
			scraper.ErrDecoyPage, len(markdown), o.opts.MinContentLength)
	}
	return nil
}

func (o *Orchestrator) buildArticle(target *url.URL, result scraper.FetchResult, content extract.ContentResult, meta scraper.Metadata, em *emitter) *scraper.Article {
	finalURL := result.URL
	if finalURL == "" {
		finalURL = target.String()
	}
	domain := target.Hostname()
	if parsed, err := url.Parse(finalURL); err == nil && parsed.Hostname() != "" {
		domain = parsed.Hostname()
	}

	elapsed := time.Since(em.started).Seconds()
	return &scraper.Article{
		URL:              finalURL,
		Domain:           domain,
		RetrievalDateUTC: time.Now().UTC().Format(time.RFC3339),
		Title:            content.Title,
		Metadata:         meta,
		Content: scraper.Content{
			Markdown:  content.Markdown,
			CleanHTML: content.CleanHTML,
		},
		ScrapedWith:    em.method,
		WorkflowStages: em.visited,
		PerformanceMetrics: map[string]float64{
			"total_elapsed_time_seconds": elapsed,
			"fetch_time_seconds":         result.Duration.Seconds(),
		},
	}
}

// validateURL enforces an absolute http(s) URL with a host. It performs no
// network I/O.
func validateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scraper.ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", scraper.ErrValidation, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: missing host", scraper.ErrValidation)
	}
	return parsed, nil
}

// emitter tracks run identity and stage position, and guarantees the stage
// counter never decreases.
type emitter struct {
	runID      uuid.UUID
	started    time.Time
	events     chan<- progress.Event
	current    int
	stageLabel progress.Stage
	method     scraper.Method
	visited    []string
}

func (em *emitter) snapshot() progress.Snapshot {
	return progress.Snapshot{
		ElapsedSeconds: time.Since(em.started).Seconds(),
		StartedAt:      em.started,
	}
}

func (em *emitter) progress(stage progress.Stage, stageNum int, message string) {
	if stageNum > em.current {
		em.current = stageNum
	}
	em.stageLabel = stage
	em.visited = append(em.visited, string(stage))
	em.events <- progress.Event{
		RunID:        em.runID,
		Status:       progress.StatusProgress,
		Stage:        stage,
		CurrentStage: em.current,
		TotalStages:  progress.TotalStages,
		Message:      message,
		Performance:  em.snapshot(),
	}
}

// escalate is a progress event that also carries the fast-tier failure that
// forced the switch to the browser tier.
func (em *emitter) escalate(stage progress.Stage, stageNum int, message string, cause error) {
	if stageNum > em.current {
		em.current = stageNum
	}
	em.stageLabel = stage
	em.visited = append(em.visited, string(stage))
	em.events <- progress.Event{
		RunID:        em.runID,
		Status:       progress.StatusProgress,
		Stage:        stage,
		CurrentStage: em.current,
		TotalStages:  progress.TotalStages,
		Message:      message,
		Error:        cause.Error(),
		Performance:  em.snapshot(),
	}
}

func (em *emitter) fail(stage progress.Stage, err error) {
	if stage == "" {
		stage = progress.StageInitialization
	}
	em.events <- progress.Event{
		RunID:        em.runID,
		Status:       progress.StatusError,
		Stage:        stage,
		CurrentStage: em.current,
		TotalStages:  progress.TotalStages,
		Message:      "scrape failed",
		Error:        err.Error(),
		ErrorKind:    scraper.ClassifyError(err),
		Performance:  em.snapshot(),
	}
}

func (em *emitter) complete(article *scraper.Article) {
	em.visited = append(em.visited, string(progress.StageCompletion))
	article.WorkflowStages = em.visited
	em.events <- progress.Event{
		RunID:        em.runID,
		Status:       progress.StatusComplete,
		Stage:        progress.StageCompletion,
		CurrentStage: progress.TotalStages,
		TotalStages:  progress.TotalStages,
		Message:      "scrape complete",
		Article:      article,
		Performance:  em.snapshot(),
	}
}
