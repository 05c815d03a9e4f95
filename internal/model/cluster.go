package model

// Topic is a semantic cluster of keywords sharing a dominant theme.
// Immutable after creation within a run.
type Topic struct {
	ID               string  `json:"id"`
	Label            string  `json:"label"`
	PillarText       string  `json:"pillar_text"`
	TotalVolume      int     `json:"total_volume"`
	TotalOpportunity float64 `json:"total_opportunity"`
	AvgDifficulty    float64 `json:"avg_difficulty"`
	KeywordCount     int     `json:"keyword_count"`
}

// PageGroup maps a tight cluster of keywords to a single content page.
type PageGroup struct {
	ID               string  `json:"id"`
	TopicID          string  `json:"topic_id"`
	Label            string  `json:"label"`
	TargetText       string  `json:"target_text"`
	Intent           Intent  `json:"intent"`
	TotalVolume      int     `json:"total_volume"`
	TotalOpportunity float64 `json:"total_opportunity"`
	KeywordCount     int     `json:"keyword_count"`
	Brief            *Brief  `json:"brief,omitempty"`
}

// Heading is one node of a brief outline.
type Heading struct {
	Level       string    `json:"level"`
	Text        string    `json:"text"`
	Subsections []Heading `json:"subsections,omitempty"`
}

// FAQ is one question candidate for a brief.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// Brief is the deterministic content brief derived for a page group.
type Brief struct {
	TargetKeyword      string    `json:"target_keyword"`
	IntentSummary      string    `json:"intent_summary"`
	Outline            []Heading `json:"outline"`
	FAQs               []FAQ     `json:"faqs,omitempty"`
	SchemaTypes        []string  `json:"schema_types,omitempty"`
	SerpFeatureTargets []string  `json:"serp_feature_targets,omitempty"`
	WordRange          string    `json:"word_range"`
	MustCoverEntities  []string  `json:"must_cover_entities,omitempty"`
	SupportingKeywords []string  `json:"supporting_keywords,omitempty"`
}
