// Package autosuggest collects query completions from public suggest endpoints.
package autosuggest

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Source identifies a suggest endpoint.
type Source string

const (
	SourceGoogle  Source = "google"
	SourceBing    Source = "bing"
	SourceYouTube Source = "youtube"
)

// Sources lists all endpoints queried by SuggestAll.
var Sources = []Source{SourceGoogle, SourceBing, SourceYouTube}

// ProviderName maps a source to its rate-limit bucket name.
func ProviderName(s Source) string {
	return "autosuggest_" + string(s)
}

// Fetcher executes the rate-limited HTTP call.
type Fetcher interface {
	Get(ctx context.Context, provider, keyword, url string) ([]byte, error)
}

// Client defines the suggest operations used during expansion.
type Client interface {
	// Suggest returns completions for the query from one source.
	Suggest(ctx context.Context, src Source, query, geo, language string) ([]string, error)
	// SuggestAll merges completions from every source, deduplicated,
	// preserving first-seen order. Per-source failures are skipped.
	SuggestAll(ctx context.Context, query, geo, language string) ([]string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint overrides the endpoint for a source (for testing).
func WithEndpoint(src Source, endpoint string) Option {
	return func(c *httpClient) {
		c.endpoints[src] = endpoint
	}
}

type httpClient struct {
	fetch     Fetcher
	endpoints map[Source]string
}

// NewClient creates a suggest client backed by the given fetcher.
func NewClient(fetch Fetcher, opts ...Option) Client {
	c := &httpClient{
		fetch: fetch,
		endpoints: map[Source]string{
			SourceGoogle:  "https://suggestqueries.google.com/complete/search",
			SourceBing:    "https://api.bing.com/osjson.aspx",
			SourceYouTube: "https://suggestqueries.google.com/complete/search",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Suggest(ctx context.Context, src Source, query, geo, language string) ([]string, error) {
	endpoint, ok := c.endpoints[src]
	if !ok {
		return nil, eris.Errorf("autosuggest: unknown source %q", src)
	}

	params := url.Values{}
	switch src {
	case SourceBing:
		params.Set("query", query)
	case SourceYouTube:
		params.Set("client", "youtube")
		params.Set("ds", "yt")
		params.Set("q", query)
	default:
		params.Set("client", "firefox")
		params.Set("q", query)
		params.Set("gl", strings.ToLower(geo))
		params.Set("hl", language)
	}

	body, err := c.fetch.Get(ctx, ProviderName(src), query, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "autosuggest: %s suggest %q", src, query)
	}

	return parseOpenSearch(body)
}

func (c *httpClient) SuggestAll(ctx context.Context, query, geo, language string) ([]string, error) {
	seen := make(map[string]struct{})
	var merged []string
	var lastErr error

	for _, src := range Sources {
		suggestions, err := c.Suggest(ctx, src, query, geo, language)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		for _, s := range suggestions {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, s)
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

// parseOpenSearch decodes the OpenSearch suggestion payload:
// ["query", ["completion one", "completion two", ...], ...].
func parseOpenSearch(body []byte) ([]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, eris.Wrap(err, "autosuggest: decode response")
	}
	if len(elems) < 2 {
		return nil, nil
	}
	var suggestions []string
	if err := json.Unmarshal(elems[1], &suggestions); err != nil {
		return nil, eris.Wrap(err, "autosuggest: decode suggestions")
	}
	return suggestions, nil
}
