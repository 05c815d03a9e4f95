package model

// Intent is the inferred searcher purpose category for a keyword.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentCommercial    Intent = "commercial"
	IntentTransactional Intent = "transactional"
	IntentNavigational  Intent = "navigational"
	IntentLocal         Intent = "local"
)

// Intents lists every intent category.
var Intents = []Intent{
	IntentInformational,
	IntentCommercial,
	IntentTransactional,
	IntentNavigational,
	IntentLocal,
}

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	for _, in := range Intents {
		if in == i {
			return true
		}
	}
	return false
}

// KeywordSource tags where a candidate keyword came from.
type KeywordSource string

const (
	SourceSeed        KeywordSource = "seed"
	SourceModifier    KeywordSource = "modifier"
	SourceAutosuggest KeywordSource = "autosuggest"
	SourcePAA         KeywordSource = "paa"
	SourceRelated     KeywordSource = "related"
	SourceCompetitor  KeywordSource = "competitor"
	SourceHint        KeywordSource = "hint"
)

// TrendDirection summarizes a keyword's interest trajectory.
type TrendDirection string

const (
	TrendRising    TrendDirection = "rising"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
	TrendUnknown   TrendDirection = "unknown"
)

// DifficultyComponents are the four sub-scores composing difficulty, each
// clamped to [0,1] and persisted independently.
type DifficultyComponents struct {
	SerpStrength float64 `json:"serp_strength"`
	Competition  float64 `json:"competition"`
	Crowding     float64 `json:"crowding"`
	ContentDepth float64 `json:"content_depth"`
}

// Keyword is one candidate phrase. Created during Expansion and enriched in
// place by later stages; never deleted mid-run, only marked invalid when
// malformed. Text is unique within a project after normalization.
type Keyword struct {
	Text       string        `json:"text"`
	Normalized string        `json:"normalized"`
	Lemma      string        `json:"lemma,omitempty"`
	Source     KeywordSource `json:"source"`
	Invalid    bool          `json:"invalid,omitempty"`

	// Metrics (nullable until the enrichment stage; missing data is a
	// first-class state, not an error).
	Volume         *int           `json:"volume,omitempty"`
	CPC            *float64       `json:"cpc,omitempty"`
	TrendDirection TrendDirection `json:"trend_direction,omitempty"`

	// SERP signals.
	SerpFeatures []string `json:"serp_features,omitempty"`
	AdsDensity   float64  `json:"ads_density,omitempty"`

	// Classification.
	Intent           Intent              `json:"intent,omitempty"`
	IntentConfidence float64             `json:"intent_confidence,omitempty"`
	IsQuestion       bool                `json:"is_question,omitempty"`
	Entities         map[string][]string `json:"entities,omitempty"`

	// Scoring.
	Difficulty       float64              `json:"difficulty"`
	Components       DifficultyComponents `json:"difficulty_components"`
	TrafficPotential float64              `json:"traffic_potential"`
	Opportunity      float64              `json:"opportunity"`

	// Cluster assignment.
	TopicID     string `json:"topic_id,omitempty"`
	PageGroupID string `json:"page_group_id,omitempty"`
	IsPillar    bool   `json:"is_pillar,omitempty"`
}

// VolumeOrZero returns the search volume, treating missing metrics as zero
// for aggregation.
func (k *Keyword) VolumeOrZero() int {
	if k.Volume == nil {
		return 0
	}
	return *k.Volume
}

// CPCOrZero returns the cost-per-click, treating missing metrics as zero.
func (k *Keyword) CPCOrZero() float64 {
	if k.CPC == nil {
		return 0
	}
	return *k.CPC
}
