package serpapi

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body    []byte
	err     error
	lastURL string
}

func (f *fakeFetcher) Get(_ context.Context, _, _, u string) ([]byte, error) {
	f.lastURL = u
	return f.body, f.err
}

const sampleSERP = `{
  "organic_results": [
    {"position": 1, "title": "Best SEO Tools", "link": "https://example.com/seo", "snippet": "Top tools reviewed."},
    {"position": 2, "title": "SEO Guide", "link": "https://example.org/guide", "snippet": "A complete guide."}
  ],
  "related_questions": [
    {"question": "What is the best free SEO tool?"},
    {"question": "How much do SEO tools cost?"}
  ],
  "related_searches": [
    {"query": "seo tools free"},
    {"query": "seo software comparison"}
  ],
  "ads": [{}, {}],
  "top_ads": [{}],
  "featured_snippet": {"title": "SEO Tools"},
  "local_results": {"places": []}
}`

func TestSearchExtractsMetrics(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleSERP)}
	c := NewClient("test-key", f)

	m, err := c.Search(context.Background(), "seo tools", "US", "en")
	require.NoError(t, err)

	require.Len(t, m.Organic, 2)
	assert.Equal(t, 1, m.Organic[0].Position)
	assert.Equal(t, "https://example.com/seo", m.Organic[0].Link)

	assert.True(t, m.HasFeature("featured_snippet"))
	assert.True(t, m.HasFeature("people_also_ask"))
	assert.True(t, m.HasFeature("map_pack"))
	assert.False(t, m.HasFeature("shopping"))
	assert.True(t, m.MapPack)

	assert.Equal(t, []string{"What is the best free SEO tool?", "How much do SEO tools cost?"}, m.PAAQuestions)
	assert.Equal(t, []string{"seo tools free", "seo software comparison"}, m.RelatedSearches)

	assert.Equal(t, 3, m.AdsCount)
	assert.InDelta(t, 0.75, m.AdsDensity, 1e-9)
}

func TestSearchBuildsQueryParams(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{}`)}
	c := NewClient("key123", f)

	_, err := c.Search(context.Background(), "coffee shops", "GB", "en")
	require.NoError(t, err)

	assert.Contains(t, f.lastURL, "q=coffee+shops")
	assert.Contains(t, f.lastURL, "gl=gb")
	assert.Contains(t, f.lastURL, "hl=en")
	assert.Contains(t, f.lastURL, "api_key=key123")
}

func TestSearchEmptyResponse(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{}`)}
	c := NewClient("", f)

	m, err := c.Search(context.Background(), "obscure query", "US", "en")
	require.NoError(t, err)
	assert.Empty(t, m.Organic)
	assert.Empty(t, m.Features)
	assert.Equal(t, 0, m.AdsCount)
	assert.Zero(t, m.AdsDensity)
}

func TestSearchDecodeError(t *testing.T) {
	f := &fakeFetcher{body: []byte(`not json`)}
	c := NewClient("", f)

	_, err := c.Search(context.Background(), "x", "US", "en")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode"))
}

func TestAdsDensityCaps(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{"ads": [{},{},{},{},{},{}]}`)}
	c := NewClient("", f)

	m, err := c.Search(context.Background(), "x", "US", "en")
	require.NoError(t, err)
	assert.Equal(t, 6, m.AdsCount)
	assert.Equal(t, 1.0, m.AdsDensity)
}
