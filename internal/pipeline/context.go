// Package pipeline implements the keyword research pipeline: expansion,
// SERP collection, enrichment, normalization, intent classification,
// scoring, clustering, and brief generation, sequenced by a checkpointing
// orchestrator.
package pipeline

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Context is the explicit pipeline state passed stage to stage. Each stage
// reads the fields populated by its predecessors and a stage's output is
// swapped in wholesale on success, so a failed stage leaves no partial
// mutation behind.
type Context struct {
	Project    model.Project                 `json:"project"`
	Keywords   []model.Keyword               `json:"keywords,omitempty"`
	Snapshots  map[string]model.SerpSnapshot `json:"snapshots,omitempty"`
	Topics     []model.Topic                 `json:"topics,omitempty"`
	PageGroups []model.PageGroup             `json:"page_groups,omitempty"`
}

// NewContext builds the initial context for a freshly created project.
func NewContext(p model.Project) *Context {
	return &Context{Project: p}
}

// Snapshot returns the SERP snapshot for a keyword's normalized text.
func (c *Context) Snapshot(normalized string) (model.SerpSnapshot, bool) {
	snap, ok := c.Snapshots[normalized]
	return snap, ok
}

// Clone returns a deep copy. Stages mutate the clone and return it as
// their output, leaving the input context untouched on failure.
func (c *Context) Clone() *Context {
	data, err := json.Marshal(c)
	if err != nil {
		// Context is plain data; marshal cannot fail on it.
		panic(err)
	}
	var out Context
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// Marshal serializes the context into a checkpoint payload. The payload
// round-trips exactly through UnmarshalContext.
func (c *Context) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, eris.Wrap(err, "pipeline: marshal context")
}

// UnmarshalContext deserializes a checkpoint payload.
func UnmarshalContext(payload []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, eris.Wrap(err, "pipeline: unmarshal context")
	}
	return &c, nil
}

// Results assembles the read-only final output of a completed run.
func (c *Context) Results() *model.ResultSet {
	return &model.ResultSet{
		Keywords:   c.Keywords,
		Topics:     c.Topics,
		PageGroups: c.PageGroups,
	}
}
