// Package extract turns raw page HTML into normalized article content and
// metadata. Content extraction walks an ordered selector list with a
// readability fallback; metadata extraction runs a short-circuiting strategy
// chain. Both operate on a parsed document and perform no network I/O.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"newsharvest/internal/scraper"
)

// ContentResult is the output of a successful content extraction.
type ContentResult struct {
	Title     string
	Markdown  string
	CleanHTML string
}

// ContentExtractor isolates the article body and converts it to markdown.
type ContentExtractor struct {
	containerSelectors []string
	junkSelectors      []string
	subtitleSelectors  []string
	converter          *md.Converter
	sanitizer          *bluemonday.Policy
	logger             *zap.Logger
}

// NewContentExtractor builds an extractor from the shared options.
func NewContentExtractor(opts *scraper.Options, logger *zap.Logger) *ContentExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentExtractor{
		containerSelectors: opts.ContainerSelectors,
		junkSelectors:      opts.JunkSelectors,
		subtitleSelectors:  opts.SubtitleSelectors,
		converter:          md.NewConverter("", true, nil),
		sanitizer:          bluemonday.UGCPolicy(),
		logger:             logger,
	}
}

// Extract locates the article container in rawHTML, strips junk regions,
// relocates the subtitle, and renders markdown plus sanitized HTML. It fails
// with scraper.ErrContentExtraction when no container can be located, even
// after the readability fallback.
func (e *ContentExtractor) Extract(rawHTML, pageURL string) (ContentResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ContentResult{}, fmt.Errorf("parse html: %w", scraper.ErrContentExtraction)
	}

	container, err := e.findContainer(doc, rawHTML, pageURL)
	if err != nil {
		return ContentResult{}, err
	}

	title := e.resolveTitle(container, doc)

	for _, sel := range e.junkSelectors {
		container.Find(sel).Remove()
	}

	subtitleHTML := e.detachSubtitle(doc, container)

	containerHTML, err := goquery.OuterHtml(container)
	if err != nil {
		return ContentResult{}, fmt.Errorf("render container: %w", scraper.ErrContentExtraction)
	}
	combined := subtitleHTML + containerHTML

	markdown, err := e.converter.ConvertString(combined)
	if err != nil {
		return ContentResult{}, fmt.Errorf("markdown conversion: %w", scraper.ErrContentExtraction)
	}

	return ContentResult{
		Title:     title,
		Markdown:  strings.TrimSpace(markdown),
		CleanHTML: e.sanitizer.Sanitize(combined),
	}, nil
}

// findContainer tries the configured selectors in priority order, then falls
// back to readability's main-region heuristic.
func (e *ContentExtractor) findContainer(doc *goquery.Document, rawHTML, pageURL string) (*goquery.Selection, error) {
	for _, sel := range e.containerSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s, nil
		}
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return nil, fmt.Errorf("no article container found: %w", scraper.ErrContentExtraction)
	}
	e.logger.Debug("selector chain exhausted, using readability fallback", zap.String("url", pageURL))

	fallback, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("parse readability output: %w", scraper.ErrContentExtraction)
	}
	body := fallback.Find("body").First()
	if body.Length() == 0 || strings.TrimSpace(body.Text()) == "" {
		return nil, fmt.Errorf("readability produced no content: %w", scraper.ErrContentExtraction)
	}
	return body, nil
}

// resolveTitle never fails: container h1, then any page h1, then the
// document title, then "Untitled".
func (e *ContentExtractor) resolveTitle(container *goquery.Selection, doc *goquery.Document) string {
	if h1 := container.Find("h1").First(); h1.Length() > 0 {
		if t := strings.TrimSpace(h1.Text()); t != "" {
			return t
		}
	}
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if t := strings.TrimSpace(h1.Text()); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return "Untitled"
}

// detachSubtitle finds the first matching subtitle anywhere in the document,
// removes its copy inside the container to avoid duplication, and returns it
// wrapped for prepending to the container content.
func (e *ContentExtractor) detachSubtitle(doc *goquery.Document, container *goquery.Selection) string {
	for _, sel := range e.subtitleSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return ""
		}
		container.Find(sel).Remove()
		return "<div>" + html + "</div>"
	}
	return ""
}
