package data

import (
	"context"
	"time"

	"github.com/mongodb/amboy"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/units"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (dc *DBConnector) FindAllTasks(ctx context.Context) ([]task.Task, error) {
	tasks, err := task.FindAll(ctx)
	return tasks, errors.Wrap(err, "finding tasks")
}

func (dc *DBConnector) FindTasksByOwner(ctx context.Context, owner string) ([]task.Task, error) {
	tasks, err := task.FindByOwner(ctx, owner)
	return tasks, errors.Wrapf(err, "finding tasks for user '%s'", owner)
}

// FindTaskForOwner returns the live task, reading through the task cache.
func (dc *DBConnector) FindTaskForOwner(ctx context.Context, owner, taskID string) (*task.Task, error) {
	ctx, span := tracer.Start(ctx, "FindTaskForOwner", trace.WithAttributes(
		attribute.String(userIDAttribute, owner),
		attribute.String(taskIDAttribute, taskID),
	))
	defer span.End()

	t, ok := dc.Caches.GetTask(taskID)
	if !ok {
		var err error
		t, err = task.FindOneId(ctx, taskID)
		if err != nil {
			return nil, errors.Wrapf(err, "finding task '%s'", taskID)
		}
		if t == nil {
			return nil, notFound("task '%s' not found", taskID)
		}
		dc.Caches.SetTask(t)
	}

	if t.Owner != owner {
		return nil, notFound("task '%s' not found", taskID)
	}
	return t, nil
}

func (dc *DBConnector) CreateTask(ctx context.Context, t *task.Task) error {
	if err := validateDefinition(t); err != nil {
		return err
	}
	if err := t.Insert(ctx); err != nil {
		return errors.Wrap(err, "creating task")
	}
	grip.Info(message.Fields{
		"message": "created task",
		"task":    t.Id,
		"owner":   t.Owner,
		"period":  t.Period.String(),
	})
	return nil
}

func (dc *DBConnector) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := validateDefinition(t); err != nil {
		return err
	}
	defer dc.Caches.InvalidateTask(t.Id)

	err := t.Update(ctx)
	if db.ResultsNotFound(err) {
		return notFound("task '%s' not found", t.Id)
	}
	return errors.Wrapf(err, "updating task '%s'", t.Id)
}

func (dc *DBConnector) DeleteTask(ctx context.Context, owner, taskID string) error {
	if _, err := dc.FindTaskForOwner(ctx, owner, taskID); err != nil {
		return err
	}
	defer dc.Caches.InvalidateTask(taskID)

	err := task.Remove(ctx, taskID)
	if db.ResultsNotFound(err) {
		return notFound("task '%s' not found", taskID)
	}
	return errors.Wrapf(err, "deleting task '%s'", taskID)
}

func validateDefinition(t *task.Task) error {
	def, err := t.Definition()
	if err != nil {
		return badRequest(err)
	}
	if err = def.Validate(); err != nil {
		return badRequest(err)
	}
	return nil
}

func (dc *DBConnector) FindRunsForTask(ctx context.Context, taskID string) ([]task.Run, error) {
	runs, err := task.FindRunsByTask(ctx, taskID)
	return runs, errors.Wrapf(err, "finding runs for task '%s'", taskID)
}

func (dc *DBConnector) FindRunForTask(ctx context.Context, taskID, runID string) (*task.Run, error) {
	r, err := task.FindOneRunId(ctx, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "finding run '%s'", runID)
	}
	if r == nil || r.TaskId != taskID {
		return nil, notFound("run '%s' not found for task '%s'", runID, taskID)
	}
	return r, nil
}

// CreateRun moves the task to pending and schedules the run. A task that is
// already running or pending can't get another run.
func (dc *DBConnector) CreateRun(ctx context.Context, t *task.Task, r *task.Run) error {
	previous := t.Status
	pending, err := task.MarkPending(ctx, t.Id)
	if db.ResultsNotFound(err) {
		return badRequest(errors.Errorf("task '%s' is already running or pending", t.Id))
	}
	if err != nil {
		return errors.Wrapf(err, "reserving task '%s'", t.Id)
	}
	dc.Caches.InvalidateTask(t.Id)
	t.Status = pending.Status
	t.UpdatedAt = pending.UpdatedAt

	r.TaskId = t.Id
	if r.Type == scrapedash.TaskRunTypeUnknown {
		r.Type = scrapedash.TaskRunTypeSingle
	}
	if err = r.Insert(ctx); err != nil {
		dc.releaseTask(ctx, t, previous)
		return errors.Wrapf(err, "creating run for task '%s'", t.Id)
	}

	if err = amboy.EnqueueUniqueJob(ctx, dc.Env.LocalQueue(), units.NewTaskRunJob(dc.Env, t.Id, r.Id)); err != nil {
		dc.releaseTask(ctx, t, previous)
		return errors.Wrapf(err, "scheduling run '%s'", r.Id)
	}
	grip.Info(message.Fields{
		"message": "scheduled task run",
		"task":    t.Id,
		"run":     r.Id,
		"type":    r.Type.String(),
	})
	return nil
}

// releaseTask puts back the status a task had before a run that never got
// scheduled.
func (dc *DBConnector) releaseTask(ctx context.Context, t *task.Task, status scrapedash.TaskStatus) {
	defer dc.Caches.InvalidateTask(t.Id)
	t.Status = status
	grip.Error(message.WrapError(task.SetStatus(ctx, t.Id, status), message.Fields{
		"message": "could not release task after failed run scheduling",
		"task":    t.Id,
		"status":  status.String(),
	}))
}

func (dc *DBConnector) UpdateRun(ctx context.Context, r *task.Run) error {
	if r.Status.IsFinished() && r.EndTime.IsZero() {
		r.EndTime = time.Now()
	}
	err := r.Update(ctx)
	if db.ResultsNotFound(err) {
		return notFound("run '%s' not found", r.Id)
	}
	if err != nil {
		return errors.Wrapf(err, "updating run '%s'", r.Id)
	}
	// a finished run finishes its task when it's the task's latest run
	if r.Status.IsFinished() {
		latest, err := task.FindLatestRunForTask(ctx, r.TaskId)
		if err != nil {
			return errors.Wrapf(err, "finding latest run for task '%s'", r.TaskId)
		}
		if latest != nil && latest.Id == r.Id {
			defer dc.Caches.InvalidateTask(r.TaskId)
			return errors.Wrapf(task.SetStatus(ctx, r.TaskId, r.Status), "finishing task '%s'", r.TaskId)
		}
	}
	return nil
}

func (dc *DBConnector) FindArtifacts(ctx context.Context, instanceID string, page, pageSize int) ([]task.Artifact, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, badRequest(errors.Errorf("invalid page %d with size %d", page, pageSize))
	}
	artifacts, total, err := task.FindArtifactsByInstance(ctx, instanceID, page, pageSize)
	return artifacts, total, errors.Wrapf(err, "finding artifacts for run instance '%s'", instanceID)
}

func (dc *DBConnector) CreateArtifact(ctx context.Context, a *task.Artifact) error {
	err := a.Insert(ctx)
	if db.IsDuplicateKey(err) {
		return badRequest(errors.Errorf("artifact '%s' already exists", a.ArtifactId))
	}
	return errors.Wrap(err, "creating artifact")
}
