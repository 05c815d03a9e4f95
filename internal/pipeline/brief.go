package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
)

var schemaByIntent = map[model.Intent][]string{
	model.IntentInformational: {"Article", "FAQPage", "HowTo"},
	model.IntentCommercial:    {"Product", "Review", "AggregateRating", "FAQPage"},
	model.IntentTransactional: {"Product", "Offer", "Organization"},
	model.IntentLocal:         {"LocalBusiness", "Service", "FAQPage"},
	model.IntentNavigational:  {"Organization", "WebSite", "SearchAction"},
}

var wordRangeByIntent = map[model.Intent]string{
	model.IntentInformational: "1500-2500",
	model.IntentCommercial:    "2000-3000",
	model.IntentTransactional: "800-1200",
	model.IntentLocal:         "600-1000",
	model.IntentNavigational:  "300-600",
}

var titleCaser = cases.Title(language.English)

// BriefGenerator is the BriefGeneration stage: one deterministic content
// brief per page group, derived from the group's keywords and their stored
// SERP snapshots. Regenerating over the same inputs yields byte-identical
// briefs.
type BriefGenerator struct {
	cfg config.BriefConfig
}

func NewBriefGenerator(cfg config.BriefConfig) *BriefGenerator {
	return &BriefGenerator{cfg: cfg}
}

func (b *BriefGenerator) Stage() model.Stage {
	return model.StageBriefGeneration
}

func (b *BriefGenerator) Run(_ context.Context, pc *Context) (Output, error) {
	groups := make([]model.PageGroup, len(pc.PageGroups))
	copy(groups, pc.PageGroups)

	byGroup := make(map[string][]model.Keyword)
	for _, kw := range pc.Keywords {
		if kw.PageGroupID != "" {
			byGroup[kw.PageGroupID] = append(byGroup[kw.PageGroupID], kw)
		}
	}

	for i := range groups {
		brief := b.Generate(&groups[i], byGroup[groups[i].ID], pc)
		groups[i].Brief = &brief
	}
	return Briefed{PageGroups: groups}, nil
}

// Generate builds the brief for one page group.
func (b *BriefGenerator) Generate(group *model.PageGroup, keywords []model.Keyword, pc *Context) model.Brief {
	snapshots := make([]model.SerpSnapshot, 0, len(keywords))
	for _, kw := range keywords {
		if snap, ok := pc.Snapshot(kw.Normalized); ok {
			snapshots = append(snapshots, snap)
		}
	}

	entities := collectEntities(keywords)
	supporting := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw.Text != group.TargetText {
			supporting = append(supporting, kw.Text)
		}
	}
	sort.Strings(supporting)

	maxEntities := b.cfg.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 20
	}
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}

	schema, ok := schemaByIntent[group.Intent]
	if !ok {
		schema = []string{"Article"}
	}
	wordRange, ok := wordRangeByIntent[group.Intent]
	if !ok {
		wordRange = "1200-1800"
	}

	return model.Brief{
		TargetKeyword:      group.TargetText,
		IntentSummary:      intentSummary(group.TargetText, group.Intent),
		Outline:            buildOutline(group.TargetText, group.Intent, entities),
		FAQs:               b.collectFAQs(snapshots),
		SchemaTypes:        schema,
		SerpFeatureTargets: serpFeatureTargets(snapshots),
		WordRange:          wordRange,
		MustCoverEntities:  entities,
		SupportingKeywords: supporting,
	}
}

func buildOutline(target string, intent model.Intent, entities []string) []model.Heading {
	title := titleCaser.String(target)

	outline := []model.Heading{
		{Level: "H1", Text: h1Title(title, intent)},
		{Level: "H2", Text: fmt.Sprintf("What is %s?", title)},
	}
	outline = append(outline, intentOutline(title, intent)...)

	entitySections := entities
	if len(entitySections) > 5 {
		entitySections = entitySections[:5]
	}
	for _, e := range entitySections {
		outline = append(outline, model.Heading{
			Level: "H2",
			Text:  fmt.Sprintf("%s Explained", titleCaser.String(e)),
		})
	}

	outline = append(outline,
		model.Heading{Level: "H2", Text: "Frequently Asked Questions"},
		model.Heading{Level: "H2", Text: "Conclusion"},
	)
	return outline
}

func h1Title(title string, intent model.Intent) string {
	switch intent {
	case model.IntentCommercial:
		return fmt.Sprintf("Best %s [Year] - Expert Reviews & Comparisons", title)
	case model.IntentInformational:
		return fmt.Sprintf("%s: Complete Guide for [Year]", title)
	case model.IntentTransactional:
		return fmt.Sprintf("Buy %s - Best Deals & Prices", title)
	case model.IntentLocal:
		return fmt.Sprintf("%s Near You - Find Local Services", title)
	default:
		return title
	}
}

func intentOutline(title string, intent model.Intent) []model.Heading {
	switch intent {
	case model.IntentInformational:
		return []model.Heading{
			{Level: "H2", Text: fmt.Sprintf("How Does %s Work?", title)},
			{Level: "H2", Text: fmt.Sprintf("Benefits of %s", title)},
			{Level: "H2", Text: fmt.Sprintf("Types of %s", title)},
			{Level: "H2", Text: fmt.Sprintf("How to Choose the Right %s", title)},
		}
	case model.IntentCommercial:
		return []model.Heading{
			{Level: "H2", Text: fmt.Sprintf("Top %s Options", title), Subsections: []model.Heading{
				{Level: "H3", Text: "Option 1: [Product Name]"},
				{Level: "H3", Text: "Option 2: [Product Name]"},
				{Level: "H3", Text: "Option 3: [Product Name]"},
			}},
			{Level: "H2", Text: "Comparison Table"},
			{Level: "H2", Text: "Buying Guide", Subsections: []model.Heading{
				{Level: "H3", Text: "Key Features to Consider"},
				{Level: "H3", Text: "Price Range"},
				{Level: "H3", Text: "Where to Buy"},
			}},
		}
	case model.IntentTransactional:
		return []model.Heading{
			{Level: "H2", Text: fmt.Sprintf("Why Buy %s From Us?", title)},
			{Level: "H2", Text: "Pricing & Packages"},
			{Level: "H2", Text: "Shipping & Delivery"},
		}
	case model.IntentLocal:
		return []model.Heading{
			{Level: "H2", Text: fmt.Sprintf("%s in Your Area", title)},
			{Level: "H2", Text: "Service Areas"},
			{Level: "H2", Text: "Hours & Contact"},
		}
	default:
		return nil
	}
}

// collectFAQs gathers people-also-ask questions from the group's
// snapshots, deduplicated case-insensitively in snapshot order.
func (b *BriefGenerator) collectFAQs(snapshots []model.SerpSnapshot) []model.FAQ {
	max := b.cfg.MaxFAQs
	if max <= 0 {
		max = 10
	}

	seen := make(map[string]struct{})
	faqs := make([]model.FAQ, 0, max)
	for _, snap := range snapshots {
		for _, q := range snap.PAAQuestions {
			key := strings.ToLower(q)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			faqs = append(faqs, model.FAQ{Question: q})
			if len(faqs) == max {
				return faqs
			}
		}
	}
	return faqs
}

// serpFeatureTargets returns the SERP features present in at least 30% of
// the group's snapshots, sorted for stable output.
func serpFeatureTargets(snapshots []model.SerpSnapshot) []string {
	if len(snapshots) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, snap := range snapshots {
		for _, f := range snap.Features {
			counts[f]++
		}
	}

	threshold := float64(len(snapshots)) * 0.3
	targets := make([]string, 0, len(counts))
	for f, n := range counts {
		if float64(n) >= threshold {
			targets = append(targets, f)
		}
	}
	sort.Strings(targets)
	if len(targets) == 0 {
		return nil
	}
	return targets
}

func intentSummary(target string, intent model.Intent) string {
	switch intent {
	case model.IntentInformational:
		return fmt.Sprintf("Users searching for %q want to learn and understand the topic. Provide comprehensive, educational content.", target)
	case model.IntentCommercial:
		return fmt.Sprintf("Users are evaluating options and comparing products/services related to %q. Include comparisons, reviews, and buying guidance.", target)
	case model.IntentTransactional:
		return fmt.Sprintf("Users are ready to take action on %q. Optimize for conversion with clear CTAs and product information.", target)
	case model.IntentLocal:
		return fmt.Sprintf("Users are looking for local services/businesses related to %q. Include location information, hours, and contact details.", target)
	case model.IntentNavigational:
		return fmt.Sprintf("Users are looking for a specific page or brand related to %q.", target)
	default:
		return fmt.Sprintf("Primary intent: %s", intent)
	}
}

// collectEntities merges entity values across the group's keywords into a
// sorted unique list.
func collectEntities(keywords []model.Keyword) []string {
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		for _, values := range kw.Entities {
			for _, v := range values {
				seen[v] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	entities := make([]string, 0, len(seen))
	for e := range seen {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	return entities
}
