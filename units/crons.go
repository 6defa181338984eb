package units

import (
	"context"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/task"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tsFormat = "2006-01-02.15-04-05"

	staleRunCleanupMinutes = 10
	statsCollectorInterval = time.Minute
)

// NextRunTime returns when a task with the given period runs next after
// from. Periods that don't repeat have no next run.
func NextRunTime(period scrapedash.TaskPeriod, from time.Time) (time.Time, error) {
	spec, err := period.CronSpec()
	if err != nil {
		return time.Time{}, err
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing schedule '%s'", spec)
	}
	return schedule.Next(from), nil
}

// PopulatePeriodicTaskRuns creates a run for every periodic task that is due
// and enqueues the job to execute it. Each task's next run is advanced
// before its job is queued.
func PopulatePeriodicTaskRuns(env scrapedash.Environment) amboy.QueueOperation {
	return func(ctx context.Context, queue amboy.Queue) error {
		ctx, span := tracer.Start(ctx, "populate-periodic-task-runs")
		defer span.End()

		now := time.Now()
		tasks, err := task.FindDueForRun(ctx, now)
		if err != nil {
			return errors.WithStack(err)
		}
		span.SetAttributes(attribute.Int(dueTasksAttribute, len(tasks)))

		svc, _ := getServices(ctx, env)
		catcher := grip.NewBasicCatcher()
		for i := range tasks {
			t := tasks[i]
			runID, err := schedulePeriodicRun(ctx, env, queue, &t, now)
			if err != nil {
				catcher.Wrapf(err, "scheduling task '%s'", t.Id)
				continue
			}
			if runID == "" {
				continue
			}
			if svc != nil {
				svc.invalidateTask(t.Id)
			}
			grip.Debug(message.Fields{
				"message": "scheduled periodic run",
				"cron":    "populate-periodic-task-runs",
				"task_id": t.Id,
				"run_id":  runID,
				"period":  t.Period.String(),
			})
		}

		return catcher.Resolve()
	}
}

// schedulePeriodicRun returns an empty run id when another run claimed the
// task first.
func schedulePeriodicRun(ctx context.Context, env scrapedash.Environment, queue amboy.Queue, t *task.Task, now time.Time) (string, error) {
	next, err := NextRunTime(t.Period, now)
	if err != nil {
		return "", err
	}
	if _, err = task.MarkPending(ctx, t.Id); err != nil {
		if db.ResultsNotFound(err) {
			grip.Debug(message.Fields{
				"message": "task already running or pending",
				"cron":    "populate-periodic-task-runs",
				"task_id": t.Id,
			})
			return "", nil
		}
		return "", err
	}

	catcher := grip.NewBasicCatcher()
	catcher.Add(task.SetNextRun(ctx, t.Id, next))
	run := &task.Run{TaskId: t.Id, Type: scrapedash.TaskRunTypePeriodic}
	if !catcher.HasErrors() {
		catcher.Add(run.Insert(ctx))
	}
	if !catcher.HasErrors() {
		catcher.Wrap(amboy.EnqueueUniqueJob(ctx, queue, NewTaskRunJob(env, t.Id, run.Id)), "enqueueing task run job")
	}
	if catcher.HasErrors() {
		catcher.Wrapf(task.SetStatus(ctx, t.Id, t.Status), "releasing task '%s'", t.Id)
		return "", catcher.Resolve()
	}
	return run.Id, nil
}

// CleanupStaleRuns enqueues the job that fails runs stuck running past the
// run timeout.
func CleanupStaleRuns(env scrapedash.Environment) amboy.QueueOperation {
	return func(ctx context.Context, queue amboy.Queue) error {
		ts := utility.RoundPartOfHour(staleRunCleanupMinutes).Format(tsFormat)
		return errors.WithStack(amboy.EnqueueUniqueJob(ctx, queue, NewStaleRunCleanupJob(env, ts)))
	}
}

// CollectQueueStats enqueues the job that logs the local queue's stats.
func CollectQueueStats(env scrapedash.Environment) amboy.QueueOperation {
	return func(ctx context.Context, queue amboy.Queue) error {
		ts := utility.RoundPartOfMinute(0).Format(tsFormat)
		return errors.WithStack(amboy.EnqueueUniqueJob(ctx, queue, NewQueueStatsCollector(env, ts)))
	}
}

// StartCrons schedules the periodic queue operations on the environment's
// local queue. They stop when ctx is canceled.
func StartCrons(ctx context.Context, env scrapedash.Environment) {
	conf := env.Settings().Amboy
	if conf.DisableCrons {
		grip.Info(message.Fields{
			"message": "crons are disabled",
			"impact":  "periodic tasks will not run",
		})
		return
	}

	opts := amboy.QueueOperationConfig{
		ContinueOnError: true,
		LogErrors:       true,
	}
	queue := env.LocalQueue()
	amboy.IntervalQueueOperation(ctx, queue, time.Duration(conf.CronIntervalSeconds)*time.Second, time.Now(), opts, PopulatePeriodicTaskRuns(env))
	amboy.IntervalQueueOperation(ctx, queue, staleRunCleanupMinutes*time.Minute, time.Now(), opts, CleanupStaleRuns(env))
	amboy.IntervalQueueOperation(ctx, queue, statsCollectorInterval, time.Now(), opts, CollectQueueStats(env))

	grip.Info(message.Fields{
		"message":          "started crons",
		"interval_secs":    conf.CronIntervalSeconds,
		"cleanup_interval": staleRunCleanupMinutes,
	})
}
