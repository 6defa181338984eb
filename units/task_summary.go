package units

import (
	"context"
	"fmt"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const taskSummaryJobName = "task-summary"

func init() {
	registry.AddJobType(taskSummaryJobName, func() amboy.Job {
		return makeTaskSummaryJob()
	})
}

type taskSummaryJob struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`
	TaskId   string `bson:"task_id" json:"task_id" yaml:"task_id"`

	env scrapedash.Environment
}

func makeTaskSummaryJob() *taskSummaryJob {
	j := &taskSummaryJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    taskSummaryJobName,
				Version: 0,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewTaskSummaryJob summarizes the latest result of a task into its
// "summary" output.
func NewTaskSummaryJob(env scrapedash.Environment, taskID, ts string) amboy.Job {
	j := makeTaskSummaryJob()
	j.env = env
	j.TaskId = taskID
	j.SetID(fmt.Sprintf("%s.%s.%s", taskSummaryJobName, taskID, ts))
	return j
}

func (j *taskSummaryJob) Run(ctx context.Context) {
	defer j.MarkComplete()
	if j.env == nil {
		j.env = scrapedash.GetEnvironment()
	}

	ctx, span := tracer.Start(ctx, taskSummaryJobName, trace.WithAttributes(
		attribute.String(taskIDAttribute, j.TaskId),
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

	summary, err := SummarizeTask(ctx, svc.Scraper, t)
	if err != nil {
		j.AddError(err)
		return
	}
	svc.invalidateTask(t.Id)

	grip.Info(message.Fields{
		"message":       "summarized task result",
		"job":           j.ID(),
		"task_id":       t.Id,
		"summary_bytes": len(summary),
	})
}

// Summarizer condenses a full extraction result.
type Summarizer interface {
	Summarize(ctx context.Context, full string) (string, error)
}

// SummarizeTask summarizes the task's result, stores it as the task's
// "summary" output and saves the task.
func SummarizeTask(ctx context.Context, s Summarizer, t *task.Task) (string, error) {
	def, err := t.Definition()
	if err != nil {
		return "", err
	}
	text, err := def.ResultText()
	if err != nil {
		return "", err
	}

	summary, err := s.Summarize(ctx, text)
	if err != nil {
		return "", errors.Wrapf(err, "summarizing task '%s'", t.Id)
	}

	def.SetOutput(task.SummaryOutputName, summary)
	t.TaskDefinition = def.String()
	if err = t.Update(ctx); err != nil {
		return "", errors.Wrapf(err, "saving summary for task '%s'", t.Id)
	}
	return summary, nil
}
