package pipeline

import (
	"context"
	"math"
	"strings"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
)

// CTR curves by SERP layout: position -> expected click-through percent.
var ctrCurves = map[string]map[int]float64{
	"informational_clean": {
		1: 31.7, 2: 24.7, 3: 18.7, 4: 13.6, 5: 9.5,
		6: 6.9, 7: 5.1, 8: 3.8, 9: 2.8, 10: 2.2,
	},
	"informational_featured_snippet": {
		1: 19.6, 2: 15.3, 3: 11.3, 4: 8.1, 5: 5.8,
		6: 4.3, 7: 3.2, 8: 2.4, 9: 1.8, 10: 1.4,
	},
	"commercial": {
		1: 27.6, 2: 15.8, 3: 11.3, 4: 8.4, 5: 6.1,
		6: 4.5, 7: 3.4, 8: 2.6, 9: 2.0, 10: 1.6,
	},
	"local_with_map": {
		1: 12.0, 2: 9.0, 3: 6.5, 4: 4.8, 5: 3.5,
		6: 2.6, 7: 1.9, 8: 1.4, 9: 1.0, 10: 0.8,
	},
}

// bigBrandDomains flags SERPs dominated by high-authority sites.
var bigBrandDomains = []string{
	"wikipedia", "youtube", "amazon", "facebook", "twitter",
	"linkedin", "reddit", "instagram", "tiktok", "forbes",
	"nytimes", "cnn", "bbc", "medium", "quora",
}

// Scorer is the Scoring stage. All formulas are deterministic: identical
// inputs yield identical difficulty and opportunity within floating-point
// tolerance.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Stage() model.Stage {
	return model.StageScoring
}

func (s *Scorer) Run(_ context.Context, pc *Context) (Output, error) {
	keywords := make([]model.Keyword, len(pc.Keywords))
	copy(keywords, pc.Keywords)

	for i := range keywords {
		if keywords[i].Invalid {
			continue
		}
		kw := &keywords[i]
		snap, _ := pc.Snapshot(kw.Normalized)

		kw.Components = s.DifficultyComponents(&snap, kw.Normalized)
		kw.Difficulty = s.Difficulty(kw.Components)
		kw.TrafficPotential = s.TrafficPotential(kw.VolumeOrZero(), kw.Intent, snap.Features)
		kw.Opportunity = s.Opportunity(
			kw.TrafficPotential, kw.Difficulty, kw.CPCOrZero(),
			kw.Intent, pc.Project.ContentFocus, snap.Features,
		)
	}
	return Scored{Keywords: keywords}, nil
}

// DifficultyComponents computes the four difficulty sub-scores, each
// clamped to [0,1]. An empty SERP yields the neutral 0.5 on every
// component.
func (s *Scorer) DifficultyComponents(snap *model.SerpSnapshot, keyword string) model.DifficultyComponents {
	if snap == nil || len(snap.Results) == 0 {
		return model.DifficultyComponents{SerpStrength: 0.5, Competition: 0.5, Crowding: 0.5, ContentDepth: 0.5}
	}
	return model.DifficultyComponents{
		SerpStrength: serpStrength(snap),
		Competition:  competition(snap, keyword),
		Crowding:     crowding(snap),
		ContentDepth: contentDepth(snap),
	}
}

// Difficulty combines the components by the configured weighted sum into a
// 0-100 score.
func (s *Scorer) Difficulty(c model.DifficultyComponents) float64 {
	d := 100 * (c.SerpStrength*s.cfg.SerpStrengthWeight +
		c.Competition*s.cfg.CompetitionWeight +
		c.Crowding*s.cfg.CrowdingWeight +
		c.ContentDepth*s.cfg.ContentDepthWeight)
	return math.Round(clamp(d, 0, 100)*10) / 10
}

// serpStrength measures SERP authority: homepage ratio and big-brand
// presence in the top five, plus knowledge graph and featured snippet.
func serpStrength(snap *model.SerpSnapshot) float64 {
	top := snap.Results
	if len(top) > 5 {
		top = top[:5]
	}

	var homepages, brands int
	for _, r := range top {
		if isHomepage(r.URL) {
			homepages++
		}
		if isBigBrand(r.URL) {
			brands++
		}
	}

	score := float64(homepages)/5*0.30 + float64(brands)/5*0.40
	if snap.HasFeature("knowledge_graph") {
		score += 0.15
	}
	if snap.HasFeature("featured_snippet") {
		score += 0.15
	}
	return clamp(score, 0, 1)
}

// competition measures how many of the top ten results are explicitly
// title-optimized for the keyword.
func competition(snap *model.SerpSnapshot, keyword string) float64 {
	results := snap.Results
	if len(results) > 10 {
		results = results[:10]
	}

	kw := strings.ToLower(keyword)
	kwWords := strings.Fields(kw)

	var exact, partial int
	for _, r := range results {
		title := strings.ToLower(r.Title)
		if strings.Contains(title, kw) {
			exact++
			continue
		}
		titleWords := make(map[string]struct{})
		for _, w := range strings.Fields(title) {
			titleWords[w] = struct{}{}
		}
		all := true
		for _, w := range kwWords {
			if _, ok := titleWords[w]; !ok {
				all = false
				break
			}
		}
		if all {
			partial++
		}
	}
	return clamp(float64(exact)*0.10+float64(partial)*0.05, 0, 1)
}

// crowding measures how much of the SERP is taken by ads and rich
// features.
func crowding(snap *model.SerpSnapshot) float64 {
	score := snap.AdsDensity * 0.5
	score += math.Min(float64(len(snap.Features))*0.10, 0.5)
	return clamp(score, 0, 1)
}

// contentDepth is a proxy from snippet lengths: longer snippets suggest
// longer-form ranking content.
func contentDepth(snap *model.SerpSnapshot) float64 {
	top := snap.Results
	if len(top) > 5 {
		top = top[:5]
	}
	if len(top) == 0 {
		return 0.5
	}

	var total int
	for _, r := range top {
		total += len(r.Snippet)
	}
	avg := float64(total) / float64(len(top))
	return clamp(avg/200, 0, 1)
}

// TrafficPotential estimates monthly clicks at the configured target rank
// using the CTR curve matching the keyword's intent and SERP layout.
func (s *Scorer) TrafficPotential(volume int, intent model.Intent, features []string) float64 {
	if volume == 0 {
		return 0
	}

	curve := ctrCurves["informational_clean"]
	switch {
	case intent == model.IntentLocal && hasFeature(features, "map_pack"):
		curve = ctrCurves["local_with_map"]
	case hasFeature(features, "featured_snippet"):
		curve = ctrCurves["informational_featured_snippet"]
	case intent == model.IntentCommercial || intent == model.IntentTransactional:
		curve = ctrCurves["commercial"]
	}

	ctr, ok := curve[s.cfg.TargetRank]
	if !ok {
		ctr = 2.0
	}
	return math.Round(float64(volume)*ctr/100*10) / 10
}

// Opportunity scores value-adjusted ease of ranking on a 0-100 log scale:
// traffic weighted by CPC and intent fit, divided by difficulty plus brand
// crowding.
func (s *Scorer) Opportunity(traffic, difficulty, cpc float64, intent, focus model.Intent, features []string) float64 {
	cpcWeight := 1.0
	if intent == model.IntentTransactional || intent == model.IntentCommercial {
		cpcWeight = 1.0 + math.Min(cpc/10, 2.0)
	}

	intentFit := 1.0
	if intent == focus {
		intentFit = 1.5
	}

	brandCrowding := 0.0
	if hasFeature(features, "knowledge_graph") {
		brandCrowding = 10
	}

	opportunity := traffic * cpcWeight * intentFit / math.Max(difficulty+brandCrowding, 1)
	if opportunity > 0 {
		opportunity = math.Min(math.Log1p(opportunity)*10, 100)
	}
	return math.Round(opportunity*100) / 100
}

func isHomepage(u string) bool {
	u = stripScheme(u)
	return !strings.Contains(u, "/")
}

func isBigBrand(u string) bool {
	lower := strings.ToLower(u)
	for _, d := range bigBrandDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func hasFeature(features []string, name string) bool {
	for _, f := range features {
		if f == name {
			return true
		}
	}
	return false
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
