package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/internal/quota"
	"github.com/scribeworks/keyword-cli/internal/store"
)

// Runner drives a project through the stage sequence, checkpointing after
// every stage so a crashed or cancelled run resumes where it stopped
// instead of re-paying provider quota.
type Runner struct {
	store      store.Store
	transforms []Transform
	ledger     *quota.Ledger
	notifier   Notifier
	log        *zap.Logger
}

type RunnerOption func(*Runner)

// WithLedger attaches the quota ledger whose entries are flushed to the
// store after each stage.
func WithLedger(l *quota.Ledger) RunnerOption {
	return func(r *Runner) { r.ledger = l }
}

func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

func WithLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner wires the runner. Transforms must be ordered by stage; the
// runner skips any whose stage is already checkpointed.
func NewRunner(st store.Store, transforms []Transform, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:      st,
		transforms: transforms,
		notifier:   NewLogNotifier(nil),
		log:        zap.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateProject registers a new project and writes its initial checkpoint.
// The project is not run until Run is called.
func (r *Runner) CreateProject(ctx context.Context, name string, seeds []string, geo, language string, focus model.Intent, hints model.DiscoveryHints) (*model.Project, error) {
	if len(seeds) == 0 {
		return nil, eris.New("pipeline: project needs at least one seed")
	}
	if focus == "" {
		focus = model.IntentInformational
	}
	if !focus.Valid() {
		return nil, eris.Errorf("pipeline: unknown content focus %q", focus)
	}

	now := time.Now().UTC()
	project := &model.Project{
		ID:             uuid.NewString(),
		Name:           name,
		Seeds:          seeds,
		Geo:            geo,
		Language:       language,
		ContentFocus:   focus,
		Hints:          hints,
		Status:         model.ProjectStatusPending,
		LastCheckpoint: model.StageCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	payload, err := NewContext(*project).Marshal()
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveCheckpoint(ctx, project.ID, model.StageCreated, payload); err != nil {
		return nil, eris.Wrap(err, "pipeline: save initial checkpoint")
	}

	r.log.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("name", name),
		zap.Int("seeds", len(seeds)),
	)
	return project, nil
}

// Run executes the pipeline from the project's last checkpoint to
// completion. Running a completed project is a no-op. Run and Resume are
// the same operation; resuming a never-interrupted project simply starts
// at the first stage.
func (r *Runner) Run(ctx context.Context, projectID string) error {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == model.ProjectStatusCompleted {
		r.log.Info("project already completed", zap.String("project_id", projectID))
		return nil
	}

	pc, resumeAfter, err := r.loadContext(ctx, project)
	if err != nil {
		return err
	}

	if err := r.store.UpdateProjectStatus(ctx, projectID, model.ProjectStatusRunning); err != nil {
		return err
	}

	for _, t := range r.transforms {
		stage := t.Stage()
		if stage.Index() <= resumeAfter.Index() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return r.interrupted(ctx, projectID, stage, err)
		}

		start := time.Now()
		r.log.Info("stage starting",
			zap.String("project_id", projectID),
			zap.String("stage", string(stage)),
		)

		output, err := t.Run(ctx, pc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return r.interrupted(ctx, projectID, stage, err)
			}
			r.flushLedger(ctx, projectID)
			if markErr := r.store.MarkProjectFailed(ctx, projectID, stage, err.Error()); markErr != nil {
				r.log.Error("mark failed", zap.String("project_id", projectID), zap.Error(markErr))
			}
			return model.NewStageError(stage, err)
		}

		output.apply(pc)
		if err := r.checkpoint(ctx, projectID, stage, pc); err != nil {
			return err
		}

		r.log.Info("stage completed",
			zap.String("project_id", projectID),
			zap.String("stage", string(stage)),
			zap.Duration("took", time.Since(start)),
			zap.Int("keywords", len(pc.Keywords)),
		)
	}

	if err := r.store.SaveResults(ctx, projectID, pc.Results()); err != nil {
		return eris.Wrap(err, "pipeline: save results")
	}
	if err := r.checkpoint(ctx, projectID, model.StageCompleted, pc); err != nil {
		return err
	}
	if err := r.store.UpdateProjectStatus(ctx, projectID, model.ProjectStatusCompleted); err != nil {
		return err
	}

	r.log.Info("project completed",
		zap.String("project_id", projectID),
		zap.Int("keywords", len(pc.Keywords)),
		zap.Int("topics", len(pc.Topics)),
		zap.Int("page_groups", len(pc.PageGroups)),
	)
	return nil
}

// interrupted records a cancellation without marking the project failed.
// The last checkpoint stands and the project returns to pending, so a
// later Resume continues from where the run stopped.
func (r *Runner) interrupted(ctx context.Context, projectID string, stage model.Stage, cause error) error {
	detached := context.WithoutCancel(ctx)
	r.flushLedger(detached, projectID)
	if err := r.store.UpdateProjectStatus(detached, projectID, model.ProjectStatusPending); err != nil {
		r.log.Error("reset status", zap.String("project_id", projectID), zap.Error(err))
	}
	r.log.Warn("run interrupted",
		zap.String("project_id", projectID),
		zap.String("stage", string(stage)),
	)
	return eris.Wrap(cause, "pipeline: run cancelled")
}

// Resume is Run under its operational name: restart an interrupted
// project from its last durable checkpoint.
func (r *Runner) Resume(ctx context.Context, projectID string) error {
	return r.Run(ctx, projectID)
}

// Status returns the project's current lifecycle view.
func (r *Runner) Status(ctx context.Context, projectID string) (*model.Project, error) {
	return r.store.GetProject(ctx, projectID)
}

// Results returns the final output of a completed project, or nil if the
// project has not completed.
func (r *Runner) Results(ctx context.Context, projectID string) (*model.ResultSet, error) {
	return r.store.GetResults(ctx, projectID)
}

// loadContext restores the pipeline context from the last checkpoint and
// reports which stage it was taken after.
func (r *Runner) loadContext(ctx context.Context, project *model.Project) (*Context, model.Stage, error) {
	ckpt, err := r.store.LoadCheckpoint(ctx, project.ID)
	if err != nil {
		return nil, "", err
	}
	if ckpt == nil {
		return NewContext(*project), model.StageCreated, nil
	}

	pc, err := UnmarshalContext(ckpt.Payload)
	if err != nil {
		return nil, "", &model.CheckpointCorruptError{
			ProjectID: project.ID,
			Stage:     ckpt.Stage,
			Cause:     err,
		}
	}
	// The stored project row is authoritative for lifecycle fields.
	pc.Project = *project
	return pc, ckpt.Stage, nil
}

func (r *Runner) checkpoint(ctx context.Context, projectID string, stage model.Stage, pc *Context) error {
	payload, err := pc.Marshal()
	if err != nil {
		return err
	}
	if err := r.store.SaveCheckpoint(ctx, projectID, stage, payload); err != nil {
		return eris.Wrapf(err, "pipeline: checkpoint %s", stage)
	}
	r.flushLedger(ctx, projectID)
	r.notifier.StageCompleted(Event{
		ProjectID: projectID,
		Stage:     stage,
		Percent:   stage.PercentComplete(),
		At:        time.Now().UTC(),
	})
	return nil
}

// flushLedger moves accumulated quota entries to durable storage. Flushed
// on both success and failure so spend accounting survives crashes.
func (r *Runner) flushLedger(ctx context.Context, projectID string) {
	if r.ledger == nil {
		return
	}
	entries := r.ledger.Drain()
	if len(entries) == 0 {
		return
	}
	if err := r.store.AppendLedger(ctx, projectID, entries); err != nil {
		r.log.Error("append ledger",
			zap.String("project_id", projectID),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
	}
}
