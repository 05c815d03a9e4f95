package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/pkg/serpapi"
)

func TestSerpCollectorCapturesSnapshots(t *testing.T) {
	serp := &fakeSerp{byQuery: map[string]*serpapi.Metrics{
		"seo tools": {
			Organic: []serpapi.Result{
				{Position: 1, Title: "Top SEO Tools", Link: "https://example.com/seo", Snippet: "tools compared"},
			},
			Features:     []string{"featured_snippet"},
			PAAQuestions: []string{"what are seo tools?"},
			AdsCount:     2,
			AdsDensity:   0.5,
		},
	}}
	collector := NewSerpCollector(serp, 4)

	pc := NewContext(model.Project{ID: "p1", Geo: "US", Language: "en"})
	pc.Keywords = []model.Keyword{
		{Text: "seo tools", Normalized: "seo tools"},
		{Text: "SEO Tools", Normalized: "seo tools"},
		{Text: "broken", Normalized: "", Invalid: true},
	}

	out, err := collector.Run(context.Background(), pc)
	require.NoError(t, err)
	snapshots := out.(Collected).Snapshots

	require.Len(t, snapshots, 1, "duplicate normalized texts fetch once, invalid keywords never")
	require.Len(t, serp.calls, 1)

	snap := snapshots["seo tools"]
	assert.Equal(t, "seo tools", snap.Query)
	assert.Equal(t, "US", snap.Geo)
	assert.Equal(t, serpapi.ProviderName, snap.Provider)
	assert.False(t, snap.FetchedAt.IsZero())
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "https://example.com/seo", snap.Results[0].URL)
	assert.Equal(t, []string{"featured_snippet"}, snap.Features)
	assert.InDelta(t, 0.5, snap.AdsDensity, 1e-9)
}

func TestSerpCollectorFailureAbortsStage(t *testing.T) {
	collector := NewSerpCollector(&fakeSerp{err: eris.New("quota exhausted")}, 4)

	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{{Text: "seo tools", Normalized: "seo tools"}}

	_, err := collector.Run(context.Background(), pc)
	require.Error(t, err, "a failed SERP fetch fails the whole stage so the checkpoint stays put")
}

func TestSerpCollectorEmptyKeywords(t *testing.T) {
	serp := &fakeSerp{}
	collector := NewSerpCollector(serp, 4)

	out, err := collector.Run(context.Background(), NewContext(model.Project{ID: "p1"}))
	require.NoError(t, err)
	assert.Empty(t, out.(Collected).Snapshots)
	assert.Empty(t, serp.calls)
}
