package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Event reports progress after a stage checkpoint is durably saved.
type Event struct {
	ProjectID string      `json:"project_id"`
	Stage     model.Stage `json:"stage"`
	Percent   float64     `json:"percent_complete"`
	At        time.Time   `json:"at"`
}

// Notifier receives progress events from the runner. Implementations must
// be safe for concurrent use; the runner calls them inline after each
// checkpoint.
type Notifier interface {
	StageCompleted(event Event)
}

// LogNotifier writes progress events to the process logger.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.L()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) StageCompleted(event Event) {
	n.log.Info("stage completed",
		zap.String("project_id", event.ProjectID),
		zap.String("stage", string(event.Stage)),
		zap.Float64("percent_complete", event.Percent),
	)
}

// MemoryNotifier retains the latest event per project, for progress
// endpoints polling in-flight runs.
type MemoryNotifier struct {
	mu     sync.RWMutex
	latest map[string]Event
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{latest: make(map[string]Event)}
}

func (n *MemoryNotifier) StageCompleted(event Event) {
	n.mu.Lock()
	n.latest[event.ProjectID] = event
	n.mu.Unlock()
}

// Latest returns the most recent event for a project, if any.
func (n *MemoryNotifier) Latest(projectID string) (Event, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	event, ok := n.latest[projectID]
	return event, ok
}

// MultiNotifier fans one event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) StageCompleted(event Event) {
	for _, n := range m {
		n.StageCompleted(event)
	}
}
