package store

import (
	"context"
	"sync"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// ProjectFilter specifies criteria for listing projects.
type ProjectFilter struct {
	Status model.ProjectStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the keyword pipeline.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus) error
	MarkProjectFailed(ctx context.Context, projectID string, stage model.Stage, cause string) error

	// Checkpoints. SaveCheckpoint persists the checkpoint row and
	// advances the project's last_checkpoint in one transaction.
	SaveCheckpoint(ctx context.Context, projectID string, stage model.Stage, payload []byte) error
	LoadCheckpoint(ctx context.Context, projectID string) (*model.Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, projectID string) error

	// Results
	SaveResults(ctx context.Context, projectID string, results *model.ResultSet) error
	GetResults(ctx context.Context, projectID string) (*model.ResultSet, error)

	// Quota ledger
	AppendLedger(ctx context.Context, projectID string, entries []model.LedgerEntry) error
	ListLedger(ctx context.Context, projectID string) ([]model.LedgerEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// keyedMutex serializes checkpoint save/load per project.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
