package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/model"
)

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		keyword    string
		want       model.Intent
		confidence float64
	}{
		{"buy running shoes online", model.IntentTransactional, 1.0},
		{"how to train a puppy", model.IntentInformational, 1.0},
		{"best crm software", model.IntentCommercial, 1.0},
		{"acme login", model.IntentNavigational, 1.0},
		{"zxqv flibbertigibbet", model.IntentInformational, 0.5},
	}
	for _, tc := range cases {
		intent, conf := ClassifyIntent(tc.keyword)
		assert.Equal(t, tc.want, intent, "keyword %q", tc.keyword)
		assert.InDelta(t, tc.confidence, conf, 1e-9, "keyword %q", tc.keyword)
	}
}

func TestClassifyIntentTieBreaksByPriority(t *testing.T) {
	// "near me" matches both transactional and local banks; the tie goes
	// to the higher-priority transactional.
	intent, conf := ClassifyIntent("plumber near me")
	assert.Equal(t, model.IntentTransactional, intent)
	assert.InDelta(t, 0.5, conf, 1e-9)
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, IsQuestion("how to fix a leaky faucet"))
	assert.True(t, IsQuestion("what is seo"))
	assert.False(t, IsQuestion("seo tools"))
	assert.False(t, IsQuestion(""))
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("free crm software for small business 2025")
	require.NotNil(t, entities)
	assert.Equal(t, []string{"software"}, entities["products"])
	assert.Equal(t, []string{"for small business"}, entities["audience"])
	assert.Equal(t, []string{"free"}, entities["price_signals"])
	assert.Equal(t, []string{"2025"}, entities["years"])
	assert.NotContains(t, entities, "problems")
}

func TestExtractEntitiesLocations(t *testing.T) {
	entities := ExtractEntities("dentist in Austin near me")
	require.NotNil(t, entities)
	assert.Contains(t, entities["locations"], "Austin")
	assert.Contains(t, entities["locations"], "near me")
}

func TestExtractEntitiesEmpty(t *testing.T) {
	assert.Nil(t, ExtractEntities("zxqv flibber"))
}

func TestCoreTopic(t *testing.T) {
	assert.Equal(t, "crm software", CoreTopic("best crm software"))
	assert.Equal(t, "crm software", CoreTopic("crm software reviews"))
	assert.Equal(t, "plumber", CoreTopic("plumber near me"))
	assert.Equal(t, "seo", CoreTopic("what is seo"))
}

func TestIntentClassifierRun(t *testing.T) {
	pc := NewContext(model.Project{ID: "p1"})
	pc.Keywords = []model.Keyword{
		{Text: "how to choose crm software", Normalized: "how to choose crm software"},
		{Text: "buy crm license", Normalized: "buy crm license"},
		{Text: "???", Normalized: "", Invalid: true},
	}

	out, err := NewIntentClassifier().Run(context.Background(), pc)
	require.NoError(t, err)
	out.apply(pc)

	assert.Equal(t, model.IntentInformational, pc.Keywords[0].Intent)
	assert.True(t, pc.Keywords[0].IsQuestion)
	assert.NotEmpty(t, pc.Keywords[0].Entities["products"])

	assert.Equal(t, model.IntentTransactional, pc.Keywords[1].Intent)
	assert.False(t, pc.Keywords[1].IsQuestion)

	assert.Empty(t, pc.Keywords[2].Intent, "invalid keywords are skipped")
}
