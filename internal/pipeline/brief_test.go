package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
)

func testBriefConfig() config.BriefConfig {
	return config.BriefConfig{MaxFAQs: 10, MaxEntities: 20}
}

func briefContext() *Context {
	pc := NewContext(model.Project{ID: "p1", ContentFocus: model.IntentCommercial})
	pc.Keywords = []model.Keyword{
		{
			Text: "crm software", Normalized: "crm software",
			Intent: model.IntentCommercial, PageGroupID: "page-1",
			Entities: map[string][]string{"products": {"software"}},
		},
		{
			Text: "affordable crm software", Normalized: "affordable crm software",
			Intent: model.IntentCommercial, PageGroupID: "page-1",
			Entities: map[string][]string{"price_signals": {"affordable"}},
		},
	}
	pc.Snapshots = map[string]model.SerpSnapshot{
		"crm software": {
			Query:        "crm software",
			Features:     []string{"featured_snippet", "people_also_ask"},
			PAAQuestions: []string{"What is CRM software?", "How much does CRM cost?"},
		},
		"affordable crm software": {
			Query:        "affordable crm software",
			Features:     []string{"people_also_ask"},
			PAAQuestions: []string{"what is crm software?", "Is free CRM any good?"},
		},
	}
	pc.PageGroups = []model.PageGroup{{
		ID: "page-1", TopicID: "topic-1", Label: "crm software",
		TargetText: "crm software", Intent: model.IntentCommercial, KeywordCount: 2,
	}}
	return pc
}

func TestBriefGeneratorRun(t *testing.T) {
	pc := briefContext()

	out, err := NewBriefGenerator(testBriefConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	groups := out.(Briefed).PageGroups

	require.Len(t, groups, 1)
	brief := groups[0].Brief
	require.NotNil(t, brief)

	assert.Equal(t, "crm software", brief.TargetKeyword)
	assert.Contains(t, brief.IntentSummary, "evaluating options")
	assert.Equal(t, []string{"Product", "Review", "AggregateRating", "FAQPage"}, brief.SchemaTypes)
	assert.Equal(t, "2000-3000", brief.WordRange)
	assert.Equal(t, []string{"affordable crm software"}, brief.SupportingKeywords)
	assert.ElementsMatch(t, []string{"affordable", "software"}, brief.MustCoverEntities)
}

func TestBriefOutlineStructure(t *testing.T) {
	pc := briefContext()

	out, err := NewBriefGenerator(testBriefConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	brief := out.(Briefed).PageGroups[0].Brief

	require.NotEmpty(t, brief.Outline)
	assert.Equal(t, "H1", brief.Outline[0].Level)
	assert.Contains(t, brief.Outline[0].Text, "Best Crm Software")
	assert.Equal(t, "What is Crm Software?", brief.Outline[1].Text)

	last := brief.Outline[len(brief.Outline)-1]
	assert.Equal(t, "Conclusion", last.Text)

	var hasOptions, hasFAQ bool
	for _, h := range brief.Outline {
		if h.Text == "Top Crm Software Options" {
			hasOptions = true
			assert.Len(t, h.Subsections, 3)
		}
		if h.Text == "Frequently Asked Questions" {
			hasFAQ = true
		}
	}
	assert.True(t, hasOptions)
	assert.True(t, hasFAQ)
}

func TestBriefFAQDeduplication(t *testing.T) {
	pc := briefContext()

	out, err := NewBriefGenerator(testBriefConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	brief := out.(Briefed).PageGroups[0].Brief

	// "What is CRM software?" appears in both snapshots with different
	// casing and must be kept once.
	require.Len(t, brief.FAQs, 3)
	questions := make(map[string]int)
	for _, f := range brief.FAQs {
		questions[f.Question]++
	}
	assert.Equal(t, 1, questions["What is CRM software?"])
}

func TestBriefFAQCap(t *testing.T) {
	pc := briefContext()
	snap := pc.Snapshots["crm software"]
	snap.PAAQuestions = []string{"q1?", "q2?", "q3?", "q4?"}
	pc.Snapshots["crm software"] = snap

	out, err := NewBriefGenerator(config.BriefConfig{MaxFAQs: 2, MaxEntities: 20}).Run(context.Background(), pc)
	require.NoError(t, err)
	assert.Len(t, out.(Briefed).PageGroups[0].Brief.FAQs, 2)
}

func TestBriefSerpFeatureTargets(t *testing.T) {
	pc := briefContext()

	out, err := NewBriefGenerator(testBriefConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	brief := out.(Briefed).PageGroups[0].Brief

	// people_also_ask is in 2/2 snapshots, featured_snippet in 1/2; both
	// clear the 30% bar.
	assert.Equal(t, []string{"featured_snippet", "people_also_ask"}, brief.SerpFeatureTargets)
}

func TestBriefIdempotent(t *testing.T) {
	gen := NewBriefGenerator(testBriefConfig())

	out1, err := gen.Run(context.Background(), briefContext())
	require.NoError(t, err)
	out2, err := gen.Run(context.Background(), briefContext())
	require.NoError(t, err)

	assert.Equal(t, out1.(Briefed).PageGroups[0].Brief, out2.(Briefed).PageGroups[0].Brief)
}

func TestBriefWithoutSnapshots(t *testing.T) {
	pc := briefContext()
	pc.Snapshots = nil

	out, err := NewBriefGenerator(testBriefConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	brief := out.(Briefed).PageGroups[0].Brief

	assert.Empty(t, brief.FAQs)
	assert.Empty(t, brief.SerpFeatureTargets)
	assert.NotEmpty(t, brief.Outline)
}
