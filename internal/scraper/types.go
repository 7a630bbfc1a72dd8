// Package scraper defines the core types shared by the fetch tiers, the
// extraction pipeline, and the workflow orchestrator.
package scraper

import (
	"net/http"
	"time"
)

// Method identifies which fetch tier produced an article.
type Method string

// Fetch tiers.
const (
	MethodHTTP    Method = "http"
	MethodBrowser Method = "browser"
)

// Sentinel values used when metadata cannot be resolved.
const (
	UnknownAuthor     = "Unknown"
	DateNotApplicable = "N/A"
)

// Metadata holds the byline and timing facts resolved for an article. Fields
// are write-once: the first extraction strategy to resolve a field wins and
// later strategies must leave it alone.
type Metadata struct {
	Author             string  `json:"author"`
	PublicationDateUTC string  `json:"publication_date_utc"`
	AuthorFoundBy      string  `json:"author_found_by,omitempty"`
	DateFoundBy        string  `json:"date_found_by,omitempty"`
	WordCount          int     `json:"word_count"`
	ReadingTimeMinutes float64 `json:"reading_time_minutes"`
}

// NewMetadata returns a Metadata populated with the sentinel defaults.
func NewMetadata() Metadata {
	return Metadata{
		Author:             UnknownAuthor,
		PublicationDateUTC: DateNotApplicable,
	}
}

// AuthorResolved reports whether an earlier strategy already found an author.
func (m Metadata) AuthorResolved() bool {
	return m.Author != UnknownAuthor
}

// DateResolved reports whether an earlier strategy already found a date.
func (m Metadata) DateResolved() bool {
	return m.PublicationDateUTC != DateNotApplicable
}

// Content carries the two renditions of the extracted article body.
type Content struct {
	Markdown  string `json:"markdown"`
	CleanHTML string `json:"clean_html"`
}

// Article is the final product of a successful workflow run. It is created
// once, owned by the orchestrator until handed to the caller, and never
// mutated afterwards.
type Article struct {
	URL                string             `json:"url"`
	Domain             string             `json:"domain"`
	RetrievalDateUTC   string             `json:"retrieval_date_utc"`
	Title              string             `json:"title"`
	Metadata           Metadata           `json:"metadata"`
	Content            Content            `json:"content"`
	ScrapedWith        Method             `json:"scraped_with"`
	WorkflowStages     []string           `json:"workflow_stages"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
}

// WordsPerMinute is the reading speed used for the reading-time estimate.
const WordsPerMinute = 200

// ReadingTime converts a word count into minutes, floored at one minute.
func ReadingTime(wordCount int) float64 {
	minutes := float64(wordCount) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// FetchResult is what either fetch tier hands back to the orchestrator.
type FetchResult struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
