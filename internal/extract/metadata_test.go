package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"newsharvest/internal/scraper"
)

func TestMetadataFromStructuredData(t *testing.T) {
	t.Parallel()

	rawHTML := `<html><head>
<script type="application/ld+json">
{"@type": "NewsArticle", "author": {"@type": "Person", "name": "Jane Reporter"},
 "datePublished": "2024-03-01T09:30:00+01:00"}
</script>
<meta name="author" content="Meta Author">
</head><body><time datetime="2020-01-01">old</time></body></html>`

	meta := NewMetadataExtractor(nil).ExtractHTML(rawHTML)
	require.Equal(t, "Jane Reporter", meta.Author)
	require.Equal(t, FoundByStructuredData, meta.AuthorFoundBy)
	require.Equal(t, "2024-03-01T08:30:00Z", meta.PublicationDateUTC)
	require.Equal(t, FoundByStructuredData, meta.DateFoundBy)
}

func TestMetadataStructuredDataShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		jsonLD string
		author string
	}{
		{
			name:   "author as string",
			jsonLD: `{"author": "Solo Writer"}`,
			author: "Solo Writer",
		},
		{
			name:   "author list of objects",
			jsonLD: `{"author": [{"name": "First Author"}, {"name": "Second Author"}]}`,
			author: "First Author",
		},
		{
			name:   "top-level list",
			jsonLD: `[{"author": "Listed Writer"}]`,
			author: "Listed Writer",
		},
		{
			name:   "graph wrapper",
			jsonLD: `{"@graph": [{"author": {"name": "Graph Writer"}}]}`,
			author: "Graph Writer",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rawHTML := `<html><head><script type="application/ld+json">` + tt.jsonLD + `</script></head><body></body></html>`
			meta := NewMetadataExtractor(nil).ExtractHTML(rawHTML)
			require.Equal(t, tt.author, meta.Author)
			require.Equal(t, FoundByStructuredData, meta.AuthorFoundBy)
		})
	}
}

func TestMetadataFallsBackToMetaTags(t *testing.T) {
	t.Parallel()

	rawHTML := `<html><head>
<script type="application/ld+json">not valid json at all</script>
<meta name="author" content="Meta Author">
<meta property="article:published_time" content="2023-06-15T10:00:00Z">
</head><body></body></html>`

	meta := NewMetadataExtractor(nil).ExtractHTML(rawHTML)
	require.Equal(t, "Meta Author", meta.Author)
	require.Equal(t, FoundByMetaTag, meta.AuthorFoundBy)
	require.Equal(t, "2023-06-15T10:00:00Z", meta.PublicationDateUTC)
	require.Equal(t, FoundByMetaTag, meta.DateFoundBy)
}

func TestMetadataFallsBackToTimeTag(t *testing.T) {
	t.Parallel()

	rawHTML := `<html><body>
<time datetime="2022-11-05T18:45:00Z">November 5</time>
</body></html>`

	meta := NewMetadataExtractor(nil).ExtractHTML(rawHTML)
	require.Equal(t, scraper.UnknownAuthor, meta.Author)
	require.Equal(t, "2022-11-05T18:45:00Z", meta.PublicationDateUTC)
	require.Equal(t, FoundByTimeTag, meta.DateFoundBy)
}

func TestMetadataSentinelsWhenNothingResolves(t *testing.T) {
	t.Parallel()

	meta := NewMetadataExtractor(nil).ExtractHTML("<html><body><p>bare page</p></body></html>")
	require.Equal(t, scraper.UnknownAuthor, meta.Author)
	require.Equal(t, scraper.DateNotApplicable, meta.PublicationDateUTC)
	require.Empty(t, meta.AuthorFoundBy)
	require.Empty(t, meta.DateFoundBy)
}

func TestMetadataSkipsUnparseableDates(t *testing.T) {
	t.Parallel()

	rawHTML := `<html><head>
<meta property="article:published_time" content="sometime last week">
</head><body><time datetime="2021-02-03T04:05:06Z">ok</time></body></html>`

	meta := NewMetadataExtractor(nil).ExtractHTML(rawHTML)
	require.Equal(t, "2021-02-03T04:05:06Z", meta.PublicationDateUTC)
	require.Equal(t, FoundByTimeTag, meta.DateFoundBy)
}
