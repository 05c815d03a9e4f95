package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusRunning   ProjectStatus = "running"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// DiscoveryHints are optional client-supplied expansion signal sources. Each
// is independent; their outputs are merged and de-duplicated with the rest of
// the expansion candidates.
type DiscoveryHints struct {
	BusinessDescription string   `json:"business_description,omitempty"`
	SourceURL           string   `json:"source_url,omitempty"`
	Competitors         []string `json:"competitors,omitempty"`
	NicheTerm           string   `json:"niche_term,omitempty"`
}

// Project is the unit of work for one pipeline run. The orchestrator owns it
// exclusively while a run is in flight; external consumers get read-only
// views through the store.
type Project struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Seeds        []string       `json:"seeds"`
	Geo          string         `json:"geo"`
	Language     string         `json:"language"`
	ContentFocus Intent         `json:"content_focus"`
	Hints        DiscoveryHints `json:"hints,omitzero"`

	Status         ProjectStatus `json:"status"`
	LastCheckpoint Stage         `json:"last_checkpoint"`
	CheckpointAt   *time.Time    `json:"checkpoint_at,omitempty"`
	FailedStage    Stage         `json:"failed_stage,omitempty"`
	LastError      string        `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Checkpoint is the durable record of the last completed stage plus the
// serialized pipeline context needed to resume at the next stage.
type Checkpoint struct {
	ProjectID string    `json:"project_id"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
}

// ResultSet is the read-only final output of a completed project.
type ResultSet struct {
	Keywords   []Keyword   `json:"keywords"`
	Topics     []Topic     `json:"topics"`
	PageGroups []PageGroup `json:"page_groups"`
}
