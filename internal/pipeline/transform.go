package pipeline

import (
	"context"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Transform is the uniform stage contract. Run must be idempotent given the
// same input and must not mutate pc; it returns an Output that the
// orchestrator applies atomically after success.
type Transform interface {
	Stage() model.Stage
	Run(ctx context.Context, pc *Context) (Output, error)
}

// Output is one stage's tagged result. Each stage has its own variant so
// the orchestrator dispatches by explicit type, not runtime shape.
type Output interface {
	apply(pc *Context)
}

// Expanded is the Expansion stage output: the deduplicated candidate set.
type Expanded struct {
	Keywords []model.Keyword
}

func (o Expanded) apply(pc *Context) {
	pc.Keywords = o.Keywords
}

// Collected is the SerpCollection stage output: SERP snapshots keyed by
// normalized keyword text.
type Collected struct {
	Snapshots map[string]model.SerpSnapshot
}

func (o Collected) apply(pc *Context) {
	pc.Snapshots = o.Snapshots
}

// Enriched is the MetricsEnrichment stage output.
type Enriched struct {
	Keywords []model.Keyword
}

func (o Enriched) apply(pc *Context) {
	pc.Keywords = o.Keywords
}

// Normalized is the Normalization stage output.
type Normalized struct {
	Keywords []model.Keyword
}

func (o Normalized) apply(pc *Context) {
	pc.Keywords = o.Keywords
}

// Classified is the IntentClassification stage output.
type Classified struct {
	Keywords []model.Keyword
}

func (o Classified) apply(pc *Context) {
	pc.Keywords = o.Keywords
}

// Scored is the Scoring stage output.
type Scored struct {
	Keywords []model.Keyword
}

func (o Scored) apply(pc *Context) {
	pc.Keywords = o.Keywords
}

// Clustered is the Clustering stage output: keywords carry their topic and
// page group assignments.
type Clustered struct {
	Keywords   []model.Keyword
	Topics     []model.Topic
	PageGroups []model.PageGroup
}

func (o Clustered) apply(pc *Context) {
	pc.Keywords = o.Keywords
	pc.Topics = o.Topics
	pc.PageGroups = o.PageGroups
}

// Briefed is the BriefGeneration stage output: page groups with briefs
// attached.
type Briefed struct {
	PageGroups []model.PageGroup
}

func (o Briefed) apply(pc *Context) {
	pc.PageGroups = o.PageGroups
}
