package autosuggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	// keyed by provider bucket name
	responses map[string][]byte
	errs      map[string]error
	calls     []string
}

func (f *fakeFetcher) Get(_ context.Context, provider, _, _ string) ([]byte, error) {
	f.calls = append(f.calls, provider)
	if err, ok := f.errs[provider]; ok {
		return nil, err
	}
	return f.responses[provider], nil
}

func TestSuggestParsesOpenSearch(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]byte{
		"autosuggest_google": []byte(`["seo tools", ["seo tools free", "seo tools 2026", "seo tools for agencies"]]`),
	}}
	c := NewClient(f)

	got, err := c.Suggest(context.Background(), SourceGoogle, "seo tools", "US", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"seo tools free", "seo tools 2026", "seo tools for agencies"}, got)
}

func TestSuggestAllMergesAndDedupes(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]byte{
		"autosuggest_google":  []byte(`["q", ["seo tools free", "seo audit"]]`),
		"autosuggest_bing":    []byte(`["q", ["SEO Tools Free", "seo checker"]]`),
		"autosuggest_youtube": []byte(`["q", ["seo audit", "seo tutorial"]]`),
	}}
	c := NewClient(f)

	got, err := c.SuggestAll(context.Background(), "seo", "US", "en")
	require.NoError(t, err)
	// Case-insensitive dedup, first-seen order, first-seen casing kept.
	assert.Equal(t, []string{"seo tools free", "seo audit", "seo checker", "seo tutorial"}, got)
	assert.Equal(t, []string{"autosuggest_google", "autosuggest_bing", "autosuggest_youtube"}, f.calls)
}

func TestSuggestAllSkipsFailedSource(t *testing.T) {
	f := &fakeFetcher{
		responses: map[string][]byte{
			"autosuggest_google":  []byte(`["q", ["alpha"]]`),
			"autosuggest_youtube": []byte(`["q", ["beta"]]`),
		},
		errs: map[string]error{"autosuggest_bing": errors.New("quota exceeded")},
	}
	c := NewClient(f)

	got, err := c.SuggestAll(context.Background(), "seo", "US", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestSuggestAllAllSourcesFail(t *testing.T) {
	boom := errors.New("network down")
	f := &fakeFetcher{errs: map[string]error{
		"autosuggest_google":  boom,
		"autosuggest_bing":    boom,
		"autosuggest_youtube": boom,
	}}
	c := NewClient(f)

	_, err := c.SuggestAll(context.Background(), "seo", "US", "en")
	require.Error(t, err)
}

func TestSuggestUnknownSource(t *testing.T) {
	c := NewClient(&fakeFetcher{})
	_, err := c.Suggest(context.Background(), Source("duckduckgo"), "q", "US", "en")
	require.Error(t, err)
}

func TestParseOpenSearchShortPayload(t *testing.T) {
	got, err := parseOpenSearch([]byte(`["only query"]`))
	require.NoError(t, err)
	assert.Nil(t, got)
}
