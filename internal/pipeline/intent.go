package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Pattern banks per intent. Compiled once at init; classification is a
// total function so every keyword gets exactly one intent.
var intentPatterns = map[model.Intent][]*regexp.Regexp{
	model.IntentInformational: compilePatterns(
		`\b(how|what|why|when|where|who|guide|tutorial|learn|explain|definition|meaning)\b`,
		`\b(vs|versus|compared?|difference|review)\b`,
		`\b(tips|ideas|examples|benefits|advantages|disadvantages)\b`,
	),
	model.IntentCommercial: compilePatterns(
		`\b(best|top|review|comparison|affordable|cheap|premium|quality)\b`,
		`\b(vs|versus|alternative|option|solution)\b`,
		`\b(price|cost|pricing|quote|estimate)\b`,
	),
	model.IntentTransactional: compilePatterns(
		`\b(buy|purchase|order|shop|sale|deal|discount|coupon|promo)\b`,
		`\b(for sale|to buy|online|store|cart|checkout)\b`,
		`\b(near me|delivery|shipping|book|hire|rent)\b`,
	),
	model.IntentLocal: compilePatterns(
		`\b(near me|nearby|local|in [A-Z]|around)\b`,
		`\b(directions|hours|location|address|phone|contact)\b`,
		`\b(city|town|suburb|zip|postcode|\d{4,5})\b`,
	),
	model.IntentNavigational: compilePatterns(
		`\b(login|sign in|account|dashboard|portal|homepage|official)\b`,
		`^[A-Z][a-z]+ (website|site|app|platform|login)$`,
	),
}

// intentPriority breaks score ties; earlier wins.
var intentPriority = []model.Intent{
	model.IntentTransactional,
	model.IntentLocal,
	model.IntentCommercial,
	model.IntentNavigational,
	model.IntentInformational,
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// ClassifyIntent assigns one intent to a keyword with a confidence: the
// fraction of pattern matches belonging to the winning intent. No match at
// all defaults to informational at 0.5 confidence.
func ClassifyIntent(keyword string) (model.Intent, float64) {
	scores := make(map[model.Intent]int, len(intentPatterns))
	total := 0
	for intent, patterns := range intentPatterns {
		for _, p := range patterns {
			if p.MatchString(keyword) {
				scores[intent]++
				total++
			}
		}
	}

	if total == 0 {
		return model.IntentInformational, 0.5
	}

	max := 0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	for _, intent := range intentPriority {
		if scores[intent] == max {
			return intent, float64(scores[intent]) / float64(total)
		}
	}
	return model.IntentInformational, 0.5
}

var questionWords = map[string]struct{}{
	"how": {}, "what": {}, "why": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "can": {}, "is": {}, "does": {}, "do": {},
}

// IsQuestion reports whether a keyword reads as a question.
func IsQuestion(keyword string) bool {
	trimmed := strings.TrimSpace(keyword)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	fields := strings.Fields(strings.ToLower(trimmed))
	if len(fields) == 0 {
		return false
	}
	_, ok := questionWords[fields[0]]
	return ok
}

// IntentClassifier is the IntentClassification stage.
type IntentClassifier struct{}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

func (c *IntentClassifier) Stage() model.Stage {
	return model.StageIntentClassification
}

func (c *IntentClassifier) Run(_ context.Context, pc *Context) (Output, error) {
	keywords := make([]model.Keyword, len(pc.Keywords))
	copy(keywords, pc.Keywords)

	for i := range keywords {
		if keywords[i].Invalid {
			continue
		}
		intent, confidence := ClassifyIntent(keywords[i].Text)
		keywords[i].Intent = intent
		keywords[i].IntentConfidence = confidence
		keywords[i].IsQuestion = IsQuestion(keywords[i].Text)
		keywords[i].Entities = ExtractEntities(keywords[i].Text)
	}
	return Classified{Keywords: keywords}, nil
}
