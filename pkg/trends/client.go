// Package trends fetches keyword volume, CPC, and interest-over-time data.
package trends

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// ProviderName tags ledger entries and rate-limit buckets for this provider.
const ProviderName = "trends"

// Fetcher executes the rate-limited HTTP call.
type Fetcher interface {
	Get(ctx context.Context, provider, keyword, url string) ([]byte, error)
}

// Metrics is the per-keyword enrichment payload. Volume and CPC are nil
// when the provider has no data for the keyword.
type Metrics struct {
	Volume    *int
	CPC       *float64
	Series    []float64
	Direction model.TrendDirection
}

// Client defines the metrics operations used during enrichment.
type Client interface {
	// Metrics fetches volume, CPC, and the interest series for one
	// keyword in one geo.
	Metrics(ctx context.Context, keyword, geo string) (*Metrics, error)
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

// NewClient creates a trends client backed by the given fetcher.
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

type rawResponse struct {
	SearchVolume     *int     `json:"search_volume"`
	CostPerClick     *float64 `json:"cost_per_click"`
	InterestOverTime struct {
		TimelineData []struct {
			Values []struct {
				ExtractedValue float64 `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
}

func (c *httpClient) Metrics(ctx context.Context, keyword, geo string) (*Metrics, error) {
	params := url.Values{}
	params.Set("engine", "google_trends")
	params.Set("q", keyword)
	params.Set("geo", strings.ToUpper(geo))
	params.Set("data_type", "TIMESERIES")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.fetch.Get(ctx, ProviderName, keyword, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "trends: metrics %q", keyword)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrapf(err, "trends: decode response for %q", keyword)
	}

	m := &Metrics{Volume: raw.SearchVolume, CPC: raw.CostPerClick}
	for _, point := range raw.InterestOverTime.TimelineData {
		if len(point.Values) > 0 {
			m.Series = append(m.Series, point.Values[0].ExtractedValue)
		}
	}
	m.Direction = ClassifyDirection(m.Series)
	return m, nil
}

// ClassifyDirection compares the mean of the last quarter of the series
// against the mean of the first quarter. A 10 percent rise is rising, a
// 10 percent drop is declining, anything between is stable. Series with
// fewer than four points are unknown.
func ClassifyDirection(series []float64) model.TrendDirection {
	if len(series) < 4 {
		return model.TrendUnknown
	}
	q := len(series) / 4
	early := mean(series[:q])
	late := mean(series[len(series)-q:])
	if early == 0 {
		if late > 0 {
			return model.TrendRising
		}
		return model.TrendStable
	}
	ratio := late / early
	switch {
	case ratio >= 1.1:
		return model.TrendRising
	case ratio <= 0.9:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
