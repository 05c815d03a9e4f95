package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
)

func testClusteringConfig() config.ClusteringConfig {
	return config.ClusteringConfig{TopicThreshold: 0.40, PageGroupThreshold: 0.60}
}

func clusterKeyword(text string, opportunity float64, volume int, intent model.Intent) model.Keyword {
	return model.Keyword{
		Text:        text,
		Normalized:  NormalizeText(text),
		Lemma:       Lemma(text),
		Volume:      &volume,
		Intent:      intent,
		Opportunity: opportunity,
	}
}

func TestLexicalSimilarity(t *testing.T) {
	a := clusterKeyword("crm software", 0, 0, model.IntentCommercial)
	b := clusterKeyword("crm software", 0, 0, model.IntentCommercial)
	assert.InDelta(t, 1.0, LexicalSimilarity(a, b), 1e-9)

	c := clusterKeyword("best crm softwares", 0, 0, model.IntentCommercial)
	sim := LexicalSimilarity(a, c)
	assert.Greater(t, sim, 0.4, "morphological variants should stay close")
	assert.Less(t, sim, 1.0)

	d := clusterKeyword("gardening gloves", 0, 0, model.IntentCommercial)
	assert.Less(t, LexicalSimilarity(a, d), 0.2)

	assert.InDelta(t, LexicalSimilarity(a, d), LexicalSimilarity(d, a), 1e-9, "similarity is symmetric")
}

func TestClustererGroupsRelatedKeywords(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		clusterKeyword("crm software", 80, 5000, model.IntentCommercial),
		clusterKeyword("best crm software", 60, 3000, model.IntentCommercial),
		clusterKeyword("crm software pricing", 40, 1000, model.IntentCommercial),
		clusterKeyword("gardening gloves", 50, 2000, model.IntentTransactional),
	}

	out, err := NewClusterer(testClusteringConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	clustered := out.(Clustered)

	require.Len(t, clustered.Topics, 2, "crm keywords cluster apart from gardening")

	var crmTopic *model.Topic
	for i := range clustered.Topics {
		if clustered.Topics[i].PillarText == "crm software" {
			crmTopic = &clustered.Topics[i]
		}
	}
	require.NotNil(t, crmTopic, "highest-opportunity keyword becomes the pillar")
	assert.Equal(t, 3, crmTopic.KeywordCount)
	assert.Equal(t, 9000, crmTopic.TotalVolume)
	assert.Equal(t, "crm software", crmTopic.Label)

	for _, kw := range clustered.Keywords {
		assert.NotEmpty(t, kw.TopicID, "keyword %q must belong to a topic", kw.Text)
		assert.NotEmpty(t, kw.PageGroupID, "keyword %q must belong to a page group", kw.Text)
	}
}

func TestClustererSplitsPageGroupsByIntent(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		clusterKeyword("crm software", 80, 5000, model.IntentCommercial),
		clusterKeyword("buy crm software", 70, 2000, model.IntentTransactional),
	}

	out, err := NewClusterer(testClusteringConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	clustered := out.(Clustered)

	intents := make(map[model.Intent]bool)
	for _, g := range clustered.PageGroups {
		intents[g.Intent] = true
		assert.Equal(t, 1, g.KeywordCount, "mixed intents never share a page")
	}
	assert.True(t, intents[model.IntentCommercial])
	assert.True(t, intents[model.IntentTransactional])
}

func TestClustererDeterministicUnderInputOrder(t *testing.T) {
	build := func(texts []string) Clustered {
		pc := NewContext(model.Project{ID: "p1"})
		for i, text := range texts {
			pc.Keywords = append(pc.Keywords, clusterKeyword(text, float64(10*(i+1)), 100, model.IntentCommercial))
		}
		// Opportunity must not depend on position for this comparison.
		for i := range pc.Keywords {
			pc.Keywords[i].Opportunity = 50
		}
		out, err := NewClusterer(testClusteringConfig()).Run(context.Background(), pc)
		require.NoError(t, err)
		return out.(Clustered)
	}

	texts := []string{"crm software", "best crm software", "email marketing", "email marketing tools"}
	reversed := []string{"email marketing tools", "email marketing", "best crm software", "crm software"}

	first := build(texts)
	second := build(reversed)

	require.Equal(t, len(first.Topics), len(second.Topics))
	firstIDs := make(map[string]string)
	for _, tp := range first.Topics {
		firstIDs[tp.PillarText] = tp.ID
	}
	for _, tp := range second.Topics {
		assert.Equal(t, firstIDs[tp.PillarText], tp.ID, "cluster identity is stable under input order")
	}
}

func TestClustererSkipsInvalidKeywords(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		clusterKeyword("crm software", 80, 5000, model.IntentCommercial),
		{Text: "???", Invalid: true},
	}

	out, err := NewClusterer(testClusteringConfig()).Run(context.Background(), pc)
	require.NoError(t, err)
	clustered := out.(Clustered)

	require.Len(t, clustered.Topics, 1)
	assert.Empty(t, clustered.Keywords[1].TopicID)
}

func TestClustererCustomSimilarity(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		clusterKeyword("alpha", 10, 100, model.IntentInformational),
		clusterKeyword("omega", 10, 100, model.IntentInformational),
	}

	everything := func(a, b model.Keyword) float64 { return 1.0 }
	out, err := NewClusterer(testClusteringConfig(), WithSimilarity(everything)).Run(context.Background(), pc)
	require.NoError(t, err)
	assert.Len(t, out.(Clustered).Topics, 1, "an always-similar function merges all keywords")
}

func TestClustererVolumeBreaksMergeTies(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		clusterKeyword("alpha gadgets", 10, 10, model.IntentCommercial),
		clusterKeyword("cheap widgets", 10, 10000, model.IntentCommercial),
		clusterKeyword("zeta things", 10, 10, model.IntentCommercial),
	}

	// "zeta things" is equally similar to both others; the others share
	// nothing. The merge must go to the higher-volume cluster.
	tied := func(a, b model.Keyword) float64 {
		if a.Normalized == "zeta things" || b.Normalized == "zeta things" {
			return 0.5
		}
		return 0
	}

	out, err := NewClusterer(testClusteringConfig(), WithSimilarity(tied)).Run(context.Background(), pc)
	require.NoError(t, err)
	clustered := out.(Clustered)

	byText := make(map[string]string)
	for _, kw := range clustered.Keywords {
		byText[kw.Normalized] = kw.TopicID
	}
	require.Len(t, clustered.Topics, 2)
	assert.Equal(t, byText["cheap widgets"], byText["zeta things"],
		"equal similarity resolves toward the higher combined volume")
	assert.NotEqual(t, byText["alpha gadgets"], byText["zeta things"])
}

func TestPillarSelection(t *testing.T) {
	keywords := []model.Keyword{
		clusterKeyword("b keyword", 50, 100, model.IntentCommercial),
		clusterKeyword("a keyword", 50, 100, model.IntentCommercial),
		clusterKeyword("c keyword", 90, 10, model.IntentCommercial),
	}
	assert.Equal(t, 2, pillarOf(keywords, []int{0, 1, 2}), "highest opportunity wins")

	keywords[2].Opportunity = 50
	vol := 500
	keywords[2].Volume = &vol
	assert.Equal(t, 2, pillarOf(keywords, []int{0, 1, 2}), "volume breaks opportunity ties")

	keywords[2].Volume = keywords[0].Volume
	assert.Equal(t, 1, pillarOf(keywords, []int{0, 1, 2}), "text order breaks remaining ties")
}
