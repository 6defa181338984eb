package units

import (
	"context"
	"fmt"
	"time"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/task"
	"go.opentelemetry.io/otel/attribute"
)

const (
	staleRunCleanupJobName = "stale-run-cleanup"

	// RunTimedOutMessage is recorded on runs that never finished.
	RunTimedOutMessage = "run timed out"
)

func init() {
	registry.AddJobType(staleRunCleanupJobName, func() amboy.Job {
		return makeStaleRunCleanupJob()
	})
}

type staleRunCleanupJob struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`

	env scrapedash.Environment
}

func makeStaleRunCleanupJob() *staleRunCleanupJob {
	j := &staleRunCleanupJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    staleRunCleanupJobName,
				Version: 0,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewStaleRunCleanupJob fails runs that have been running for longer than
// the configured run timeout.
func NewStaleRunCleanupJob(env scrapedash.Environment, ts string) amboy.Job {
	j := makeStaleRunCleanupJob()
	j.env = env
	j.SetID(fmt.Sprintf("%s.%s", staleRunCleanupJobName, ts))
	return j
}

func (j *staleRunCleanupJob) Run(ctx context.Context) {
	defer j.MarkComplete()
	if j.env == nil {
		j.env = scrapedash.GetEnvironment()
	}
	if j.env == nil {
		j.AddError(errors.New("no environment configured"))
		return
	}

	ctx, span := tracer.Start(ctx, staleRunCleanupJobName)
	defer span.End()

	timeout := time.Duration(j.env.Settings().Amboy.RunTimeoutMinutes) * time.Minute
	runs, err := task.FindStaleRuns(ctx, time.Now().Add(-timeout))
	if err != nil {
		j.AddError(err)
		return
	}
	span.SetAttributes(attribute.Int(staleRunsAttribute, len(runs)))
	if len(runs) == 0 {
		return
	}

	svc, _ := getServices(ctx, j.env)

	catcher := grip.NewBasicCatcher()
	runIDs := make([]string, 0, len(runs))
	for i := range runs {
		run := runs[i]
		runIDs = append(runIDs, run.Id)
		if err = run.MarkFinished(ctx, scrapedash.TaskStatusFailed, errors.New(RunTimedOutMessage)); err != nil {
			catcher.Add(err)
			continue
		}

		latest, err := task.FindLatestRunForTask(ctx, run.TaskId)
		if err != nil {
			catcher.Add(err)
			continue
		}
		if latest == nil || latest.Id != run.Id {
			continue
		}
		// removed tasks keep their runs but can't change status
		err = task.SetStatus(ctx, run.TaskId, scrapedash.TaskStatusFailed)
		catcher.ErrorfWhen(err != nil && !db.ResultsNotFound(err), "failing task '%s': %v", run.TaskId, err)
		if svc != nil {
			svc.invalidateTask(run.TaskId)
		}
	}

	grip.Info(message.Fields{
		"message":      "failed stale runs",
		"job":          j.ID(),
		"num_runs":     len(runs),
		"runs":         runIDs,
		"timeout_mins": timeout.Minutes(),
	})
	j.AddError(catcher.Resolve())
}
