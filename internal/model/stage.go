package model

// Stage identifies a pipeline stage. Stages execute strictly in the order
// given by Stages; a checkpoint at stage N implies all stages <= N completed.
type Stage string

const (
	StageCreated              Stage = "created"
	StageExpansion            Stage = "expansion"
	StageSerpCollection       Stage = "serp_collection"
	StageMetricsEnrichment    Stage = "metrics_enrichment"
	StageNormalization        Stage = "normalization"
	StageIntentClassification Stage = "intent_classification"
	StageScoring              Stage = "scoring"
	StageClustering           Stage = "clustering"
	StageBriefGeneration      Stage = "brief_generation"
	StageCompleted            Stage = "completed"
)

// Stages is the canonical execution order.
var Stages = []Stage{
	StageCreated,
	StageExpansion,
	StageSerpCollection,
	StageMetricsEnrichment,
	StageNormalization,
	StageIntentClassification,
	StageScoring,
	StageClustering,
	StageBriefGeneration,
	StageCompleted,
}

// Index returns the position of s in the canonical order, or -1 if s is not
// a known stage.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage name.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Next returns the stage following s. ok is false when s is the terminal
// stage or unknown.
func (s Stage) Next() (next Stage, ok bool) {
	i := s.Index()
	if i < 0 || i >= len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// Before reports whether s precedes other in the canonical order.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// PercentComplete returns pipeline progress after s has completed, in the
// range [0,100]. StageCreated is 0, StageCompleted is 100.
func (s Stage) PercentComplete() float64 {
	i := s.Index()
	if i <= 0 {
		return 0
	}
	return float64(i) / float64(len(Stages)-1) * 100
}
