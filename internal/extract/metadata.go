package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"newsharvest/internal/scraper"
)

// Strategy tags recorded on resolved metadata fields.
const (
	FoundByStructuredData = "structured-data"
	FoundByMetaTag        = "meta-tag"
	FoundByTimeTag        = "time-tag"
)

var authorMetaSelectors = []string{
	`meta[name="author"]`,
	`meta[name="dc.creator"]`,
	`meta[property="article:author"]`,
	`meta[property="og:author"]`,
}

var dateMetaSelectors = []string{
	`meta[name="date"]`,
	`meta[name="dc.date"]`,
	`meta[property="article:published_time"]`,
	`meta[property="og:published_time"]`,
	`meta[name="publish_date"]`,
	`meta[name="pubdate"]`,
}

// MetadataExtractor resolves author and publication date through an ordered
// strategy chain: structured data, then meta tags, then datetime attributes.
// It never fails; unresolved fields keep their sentinel defaults.
type MetadataExtractor struct {
	logger *zap.Logger
}

// NewMetadataExtractor builds a MetadataExtractor.
func NewMetadataExtractor(logger *zap.Logger) *MetadataExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataExtractor{logger: logger}
}

// Extract runs the strategy chain over the parsed document. Each strategy
// only touches fields that are still unresolved.
func (e *MetadataExtractor) Extract(doc *goquery.Document) scraper.Metadata {
	meta := scraper.NewMetadata()

	e.fromStructuredData(doc, &meta)
	if !meta.AuthorResolved() || !meta.DateResolved() {
		e.fromMetaTags(doc, &meta)
	}
	if !meta.DateResolved() {
		e.fromTimeAttributes(doc, &meta)
	}
	return meta
}

// ExtractHTML is a convenience wrapper over Extract for raw HTML input.
func (e *MetadataExtractor) ExtractHTML(rawHTML string) scraper.Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return scraper.NewMetadata()
	}
	return e.Extract(doc)
}

func (e *MetadataExtractor) fromStructuredData(doc *goquery.Document, meta *scraper.Metadata) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		obj := unwrapStructuredData(data)
		if obj == nil {
			return true
		}

		if !meta.AuthorResolved() {
			if name := authorName(obj["author"]); name != "" {
				meta.Author = name
				meta.AuthorFoundBy = FoundByStructuredData
			}
		}
		if !meta.DateResolved() {
			if raw, ok := obj["datePublished"].(string); ok {
				if iso, ok := normalizeDate(raw); ok {
					meta.PublicationDateUTC = iso
					meta.DateFoundBy = FoundByStructuredData
				}
			}
		}
		return !meta.AuthorResolved() || !meta.DateResolved()
	})
}

// unwrapStructuredData peels list and @graph containers down to the first
// object in the graph.
func unwrapStructuredData(data any) map[string]any {
	if list, ok := data.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		data = list[0]
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	if graph, ok := obj["@graph"].([]any); ok && len(graph) > 0 {
		if first, ok := graph[0].(map[string]any); ok {
			return first
		}
	}
	return obj
}

// authorName handles the author shapes seen in the wild: a plain string, an
// object with a name, or a list of either.
func authorName(data any) string {
	switch v := data.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		if len(v) == 0 {
			return ""
		}
		if first, ok := v[0].(map[string]any); ok {
			if name, ok := first["name"].(string); ok {
				return strings.TrimSpace(name)
			}
			return ""
		}
		if s, ok := v[0].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (e *MetadataExtractor) fromMetaTags(doc *goquery.Document, meta *scraper.Metadata) {
	if !meta.AuthorResolved() {
		for _, sel := range authorMetaSelectors {
			content := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", ""))
			if content != "" {
				meta.Author = content
				meta.AuthorFoundBy = FoundByMetaTag
				break
			}
		}
	}
	if !meta.DateResolved() {
		for _, sel := range dateMetaSelectors {
			content := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", ""))
			if content == "" {
				continue
			}
			if iso, ok := normalizeDate(content); ok {
				meta.PublicationDateUTC = iso
				meta.DateFoundBy = FoundByMetaTag
				break
			}
		}
	}
}

func (e *MetadataExtractor) fromTimeAttributes(doc *goquery.Document, meta *scraper.Metadata) {
	doc.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.AttrOr("datetime", ""))
		if raw == "" {
			return true
		}
		iso, ok := normalizeDate(raw)
		if !ok {
			return true
		}
		meta.PublicationDateUTC = iso
		meta.DateFoundBy = FoundByTimeTag
		return false
	})
}

// normalizeDate parses a loosely formatted date string and renders it as
// ISO-8601 UTC. Parse failures are swallowed; the caller moves on to the
// next candidate.
func normalizeDate(raw string) (string, bool) {
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}
