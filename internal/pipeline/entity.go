package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

var (
	productPattern = regexp.MustCompile(`(?i)\b(software|tool|app|platform|service|product|system|solution|program|device|machine)\b`)
	audiencePattern = regexp.MustCompile(`(?i)\b(for beginners|for students|for professionals|for kids|for small business|for enterprise|for startups|for seniors|for women|for men)\b`)
	pricePattern   = regexp.MustCompile(`(?i)\b(free|cheap|affordable|expensive|premium|budget|low cost|high end|luxury|discount)\b`)
	currencyPattern = regexp.MustCompile(`[$£€¥]\s*\d+`)
	yearPattern    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	problemPattern = regexp.MustCompile(`(?i)\b(problem|issue|error|fail|broken|not working|fix|solve|resolve)\b`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bin ([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`),
		regexp.MustCompile(`\bnear ([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`),
		regexp.MustCompile(`(?i)\b(near me|nearby|local)\b`),
	}

	brandPattern     = regexp.MustCompile(`\b[A-Z][a-z]*(?:\s+[A-Z][a-z]*)*\b`)
	nonBrandStarters = map[string]struct{}{
		"How": {}, "What": {}, "Why": {}, "When": {}, "Where": {},
		"Best": {}, "Top": {}, "The": {},
	}

	coreTopicStrips = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(how|what|why|when|where|who|which)\s+`),
		regexp.MustCompile(`(?i)^(is|are|do|does|can|could|should|will)\s+`),
		regexp.MustCompile(`(?i)\b(best|top|good|great|cheap|free|affordable)\b\s+`),
		regexp.MustCompile(`(?i)\s+\b(review|reviews|guide|tutorial|tips)\b`),
		regexp.MustCompile(`(?i)\s+\b(near me|nearby|local)\b`),
	}
)

// ExtractEntities pulls typed entity mentions out of a keyword. Empty
// categories are omitted; values within a category are sorted for
// deterministic output.
func ExtractEntities(keyword string) map[string][]string {
	entities := map[string][]string{
		"products":      uniqueMatches(productPattern.FindAllString(keyword, -1)),
		"audience":      uniqueMatches(audiencePattern.FindAllString(keyword, -1)),
		"price_signals": uniqueMatches(append(pricePattern.FindAllString(keyword, -1), currencyPattern.FindAllString(keyword, -1)...)),
		"years":         uniqueMatches(yearPattern.FindAllString(keyword, -1)),
		"problems":      uniqueMatches(problemPattern.FindAllString(keyword, -1)),
		"locations":     extractLocations(keyword),
		"brands":        extractBrands(keyword),
	}

	for k, v := range entities {
		if len(v) == 0 {
			delete(entities, k)
		}
	}
	if len(entities) == 0 {
		return nil
	}
	return entities
}

func extractLocations(keyword string) []string {
	var locations []string
	for _, p := range locationPatterns {
		for _, m := range p.FindAllStringSubmatch(keyword, -1) {
			if len(m) > 1 && m[1] != "" {
				locations = append(locations, m[1])
			} else {
				locations = append(locations, m[0])
			}
		}
	}
	return uniqueMatches(locations)
}

func extractBrands(keyword string) []string {
	var brands []string
	for _, b := range brandPattern.FindAllString(keyword, -1) {
		first := strings.Fields(b)[0]
		if _, skip := nonBrandStarters[first]; skip {
			continue
		}
		brands = append(brands, b)
	}
	return uniqueMatches(brands)
}

// CoreTopic strips question words and intent modifiers to expose the
// underlying subject of a keyword, used for topic labels.
func CoreTopic(keyword string) string {
	text := strings.ToLower(keyword)
	for _, p := range coreTopicStrips {
		text = strings.TrimSpace(p.ReplaceAllString(text, " "))
	}
	return strings.Join(strings.Fields(text), " ")
}

func uniqueMatches(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
