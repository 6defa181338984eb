package units

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/notify"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/scrapedash/scrapedash/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	taskRunJobName = "task-run"

	// ResultArtifactType marks artifacts that hold a run's full result.
	ResultArtifactType = "result"
)

func init() {
	registry.AddJobType(taskRunJobName, func() amboy.Job {
		return makeTaskRunJob()
	})
}

type taskRunJob struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`
	TaskId   string `bson:"task_id" json:"task_id" yaml:"task_id"`
	RunId    string `bson:"run_id" json:"run_id" yaml:"run_id"`

	env scrapedash.Environment
}

func makeTaskRunJob() *taskRunJob {
	j := &taskRunJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    taskRunJobName,
				Version: 0,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewTaskRunJob executes one run of a task: it scrapes the task's source,
// stores the full result as an artifact and records the outcome on the run
// and the task.
func NewTaskRunJob(env scrapedash.Environment, taskID, runID string) amboy.Job {
	j := makeTaskRunJob()
	j.env = env
	j.TaskId = taskID
	j.RunId = runID
	j.SetID(fmt.Sprintf("%s.%s.%s", taskRunJobName, taskID, runID))
	if env != nil {
		j.UpdateTimeInfo(amboy.JobTimeInfo{
			MaxTime: time.Duration(env.Settings().Amboy.RunTimeoutMinutes) * time.Minute,
		})
	}
	return j
}

func (j *taskRunJob) Run(ctx context.Context) {
	defer j.MarkComplete()
	if j.env == nil {
		j.env = scrapedash.GetEnvironment()
	}

	ctx, span := tracer.Start(ctx, taskRunJobName, trace.WithAttributes(
		attribute.String(taskIDAttribute, j.TaskId),
		attribute.String(runIDAttribute, j.RunId),
	))
	defer span.End()

	svc, err := getServices(ctx, j.env)
	if err != nil {
		j.AddError(err)
		return
	}

	t, err := task.FindOneId(ctx, j.TaskId)
	if err != nil {
		j.AddError(errors.Wrapf(err, "finding task '%s'", j.TaskId))
		return
	}
	if t == nil {
		j.AddError(errors.Errorf("task '%s' not found", j.TaskId))
		return
	}
	run, err := task.FindOneRunId(ctx, j.RunId)
	if err != nil {
		j.AddError(errors.Wrapf(err, "finding run '%s'", j.RunId))
		return
	}
	if run == nil || run.TaskId != t.Id {
		j.AddError(errors.Errorf("run '%s' not found for task '%s'", j.RunId, j.TaskId))
		return
	}
	if run.Status.IsFinished() {
		grip.Info(message.Fields{
			"message": "run already finished",
			"job":     j.ID(),
			"task_id": t.Id,
			"run_id":  run.Id,
			"status":  run.Status.String(),
		})
		return
	}

	if err = j.start(ctx, svc, t, run); err != nil {
		j.AddError(err)
		return
	}

	startAt := time.Now()
	runErr := j.execute(ctx, svc, t, run)
	status := scrapedash.TaskStatusComplete
	if runErr != nil {
		status = scrapedash.TaskStatusFailed
		span.SetStatus(codes.Error, runErr.Error())
	}
	span.SetAttributes(attribute.String(runStatusAttribute, status.String()))

	j.AddError(errors.Wrap(run.MarkFinished(ctx, status, runErr), "finishing run"))
	j.AddError(errors.Wrap(task.SetStatus(ctx, t.Id, status), "setting final task status"))
	svc.invalidateTask(t.Id)

	grip.Info(message.Fields{
		"message":       "task run finished",
		"job":           j.ID(),
		"task_id":       t.Id,
		"run_id":        run.Id,
		"instance_id":   run.InstanceId,
		"status":        status.String(),
		"duration_secs": time.Since(startAt).Seconds(),
		"error":         runErr,
	})

	notify.Send(ctx, svc.Sender, notify.Notification{
		TaskId:   t.Id,
		TaskName: t.TaskName,
		RunId:    run.Id,
		Status:   status,
	})
	j.AddError(runErr)
}

func (j *taskRunJob) start(ctx context.Context, svc *Services, t *task.Task, run *task.Run) error {
	if err := run.MarkRunning(ctx); err != nil {
		return errors.Wrap(err, "marking run running")
	}
	catcher := grip.NewBasicCatcher()
	catcher.Wrap(task.SetStatus(ctx, t.Id, scrapedash.TaskStatusRunning), "marking task running")
	catcher.Wrap(task.SetLastRun(ctx, t.Id, run.Id), "recording last run")
	t.Status = scrapedash.TaskStatusRunning
	svc.invalidateTask(t.Id)
	return catcher.Resolve()
}

func (j *taskRunJob) execute(ctx context.Context, svc *Services, t *task.Task, run *task.Run) error {
	def, err := t.Definition()
	if err != nil {
		return err
	}
	if err = def.Validate(); err != nil {
		return errors.Wrap(err, "invalid task definition")
	}

	result, err := svc.Scraper.Preview(ctx, scrape.Request{
		TaskName:     t.TaskName,
		SourceURL:    def.SourceURL(),
		Keywords:     def.Keywords(),
		DataTypes:    def.DataTypes(),
		OutputFormat: def.OutputFormat(),
	})
	if err != nil {
		return errors.Wrap(err, "scraping task source")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(outputBytesAttribute, len(result.FullResponse)))

	if err = storeResult(ctx, svc.Store, t, run, result); err != nil {
		return err
	}

	def.SetOutput(task.ResultOutputName, result.FullResponse)
	t.TaskDefinition = def.String()
	return errors.Wrap(t.Update(ctx), "saving task result")
}

func storeResult(ctx context.Context, store storage.ArtifactStore, t *task.Task, run *task.Run, result *scrape.Result) error {
	key := storage.RunResultKey(t.Id, run.InstanceId, storage.ResultExtension(result.OutputFormat))
	if err := store.Put(ctx, key, strings.NewReader(result.FullResponse)); err != nil {
		return errors.Wrap(err, "storing run result")
	}

	artifact := &task.Artifact{
		InstanceId:    run.InstanceId,
		TaskId:        t.Id,
		ArtifactType:  ResultArtifactType,
		URL:           store.URL(key),
		ContentType:   storage.ContentType(result.OutputFormat),
		ContentLength: int64(len(result.FullResponse)),
		StatusCode:    http.StatusOK,
		Bucket:        store.Bucket(),
		Key:           key,
		AdditionalData: map[string]string{
			"run_id":        run.Id,
			"output_format": result.OutputFormat,
			"images":        strconv.Itoa(len(result.Images)),
			"preview":       result.Preview,
		},
	}
	return errors.Wrap(artifact.Insert(ctx), "recording run artifact")
}
