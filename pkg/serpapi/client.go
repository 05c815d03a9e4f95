// Package serpapi provides a client for SERP data acquisition.
package serpapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ProviderName tags ledger entries and rate-limit buckets for this provider.
const ProviderName = "serpapi"

// Fetcher executes the rate-limited HTTP call. Satisfied by the internal
// fetcher client; tests supply fakes.
type Fetcher interface {
	Get(ctx context.Context, provider, keyword, url string) ([]byte, error)
}

// Client defines the SERP operations used by the pipeline.
type Client interface {
	// Search fetches the SERP for one (query, geo, language) and returns
	// the extracted metrics.
	Search(ctx context.Context, query, geo, language string) (*Metrics, error)
}

// Result is one organic search result.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Metrics is the per-query SERP extraction consumed by scoring and briefs.
type Metrics struct {
	Organic         []Result
	Features        []string
	PAAQuestions    []string
	RelatedSearches []string
	AdsCount        int
	AdsDensity      float64
	MapPack         bool
}

// rawResponse mirrors the provider payload shape.
type rawResponse struct {
	OrganicResults []Result `json:"organic_results"`
	RelatedQuestions []struct {
		Question string `json:"question"`
	} `json:"related_questions"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"related_searches"`
	Ads             []json.RawMessage `json:"ads"`
	TopAds          []json.RawMessage `json:"top_ads"`
	BottomAds       []json.RawMessage `json:"bottom_ads"`
	FeaturedSnippet json.RawMessage   `json:"featured_snippet"`
	KnowledgeGraph  json.RawMessage   `json:"knowledge_graph"`
	AnswerBox       json.RawMessage   `json:"answer_box"`
	LocalResults    json.RawMessage   `json:"local_results"`
	LocalMap        json.RawMessage   `json:"local_map"`
	TopStories      []json.RawMessage `json:"top_stories"`
	InlineImages    []json.RawMessage `json:"inline_images"`
	InlineVideos    []json.RawMessage `json:"inline_videos"`
	ShoppingResults []json.RawMessage `json:"shopping_results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	fetch   Fetcher
}

// NewClient creates a SERP client backed by the given fetcher.
func NewClient(apiKey string, fetch Fetcher, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com/search",
		fetch:   fetch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query, geo, language string) (*Metrics, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("gl", strings.ToLower(geo))
	params.Set("hl", language)
	params.Set("num", "10")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.fetch.Get(ctx, ProviderName, query, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "serpapi: search %q", query)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrapf(err, "serpapi: decode response for %q", query)
	}

	return extractMetrics(&raw), nil
}

// extractMetrics flattens the raw payload into pipeline metrics.
func extractMetrics(raw *rawResponse) *Metrics {
	m := &Metrics{Organic: raw.OrganicResults}

	addFeature := func(present bool, name string) {
		if present {
			m.Features = append(m.Features, name)
		}
	}
	addFeature(len(raw.FeaturedSnippet) > 0, "featured_snippet")
	addFeature(len(raw.KnowledgeGraph) > 0, "knowledge_graph")
	addFeature(len(raw.AnswerBox) > 0, "answer_box")
	addFeature(len(raw.RelatedQuestions) > 0, "people_also_ask")
	addFeature(len(raw.LocalResults) > 0 || len(raw.LocalMap) > 0, "map_pack")
	addFeature(len(raw.TopStories) > 0, "top_stories")
	addFeature(len(raw.InlineImages) > 0, "images")
	addFeature(len(raw.InlineVideos) > 0, "videos")
	addFeature(len(raw.ShoppingResults) > 0, "shopping")

	for _, q := range raw.RelatedQuestions {
		if q.Question != "" {
			m.PAAQuestions = append(m.PAAQuestions, q.Question)
		}
	}
	for _, r := range raw.RelatedSearches {
		if r.Query != "" {
			m.RelatedSearches = append(m.RelatedSearches, r.Query)
		}
	}

	m.AdsCount = len(raw.Ads) + len(raw.TopAds) + len(raw.BottomAds)
	// 0 ads = 0.0, 4+ ads = 1.0.
	m.AdsDensity = float64(m.AdsCount) / 4.0
	if m.AdsDensity > 1 {
		m.AdsDensity = 1
	}
	m.MapPack = len(raw.LocalResults) > 0 || len(raw.LocalMap) > 0

	return m
}

// HasFeature reports whether the metrics contain the named SERP feature.
func (m *Metrics) HasFeature(name string) bool {
	for _, f := range m.Features {
		if f == name {
			return true
		}
	}
	return false
}
