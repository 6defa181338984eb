package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const RunsCollection = "task_runs"

// Run is one execution of a task. The instance id names the run's artifacts.
type Run struct {
	Id           string                 `bson:"_id" json:"id"`
	TaskId       string                 `bson:"task_id" json:"task_id"`
	InstanceId   string                 `bson:"instance_id" json:"instance_id"`
	Type         scrapedash.TaskRunType `bson:"type" json:"type"`
	Status       scrapedash.TaskStatus  `bson:"status" json:"status"`
	StartTime    time.Time              `bson:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime      time.Time              `bson:"end_time,omitempty" json:"end_time,omitempty"`
	ErrorMessage string                 `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time              `bson:"created_at" json:"created_at"`
}

var (
	RunIdKey           = bsonutil.MustHaveTag(Run{}, "Id")
	RunTaskIdKey       = bsonutil.MustHaveTag(Run{}, "TaskId")
	RunInstanceIdKey   = bsonutil.MustHaveTag(Run{}, "InstanceId")
	RunTypeKey         = bsonutil.MustHaveTag(Run{}, "Type")
	RunStatusKey       = bsonutil.MustHaveTag(Run{}, "Status")
	RunStartTimeKey    = bsonutil.MustHaveTag(Run{}, "StartTime")
	RunEndTimeKey      = bsonutil.MustHaveTag(Run{}, "EndTime")
	RunErrorMessageKey = bsonutil.MustHaveTag(Run{}, "ErrorMessage")
	RunCreatedAtKey    = bsonutil.MustHaveTag(Run{}, "CreatedAt")
)

// Insert writes a new run. New runs always start in the created state.
func (r *Run) Insert(ctx context.Context) error {
	if r.TaskId == "" {
		return errors.New("run must belong to a task")
	}
	if r.Id == "" {
		r.Id = primitive.NewObjectID().Hex()
	}
	if r.InstanceId == "" {
		r.InstanceId = uuid.NewString()
	}
	if r.Type == scrapedash.TaskRunTypeUnknown {
		r.Type = scrapedash.TaskRunTypeSingle
	}
	r.Status = scrapedash.TaskStatusCreated
	r.CreatedAt = time.Now()

	return errors.Wrapf(db.Insert(ctx, RunsCollection, r), "inserting run for task '%s'", r.TaskId)
}

// FindOneRunId returns the run with the given id, or nil if there is none.
func FindOneRunId(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	err := db.FindOneQContext(ctx, RunsCollection, db.Query(bson.M{RunIdKey: id}), r)
	if db.ResultsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding run '%s'", id)
	}
	return r, nil
}

// FindRunsByTask returns the runs of a task, newest first.
func FindRunsByTask(ctx context.Context, taskId string) ([]Run, error) {
	runs := []Run{}
	q := db.Query(bson.M{RunTaskIdKey: taskId}).Sort([]string{"-" + RunCreatedAtKey, "-" + RunIdKey})
	err := db.FindAllQ(ctx, RunsCollection, q, &runs)
	return runs, errors.Wrapf(err, "finding runs for task '%s'", taskId)
}

// FindLatestRunForTask returns the newest run of a task, or nil if the task
// never ran.
func FindLatestRunForTask(ctx context.Context, taskId string) (*Run, error) {
	r := &Run{}
	q := db.Query(bson.M{RunTaskIdKey: taskId}).Sort([]string{"-" + RunCreatedAtKey, "-" + RunIdKey})
	err := db.FindOneQContext(ctx, RunsCollection, q, r)
	if db.ResultsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding latest run for task '%s'", taskId)
	}
	return r, nil
}

// FindStaleRuns returns runs that started before the cutoff and are still
// running, and runs created before the cutoff that never started.
func FindStaleRuns(ctx context.Context, cutoff time.Time) ([]Run, error) {
	runs := []Run{}
	q := db.Query(bson.M{"$or": []bson.M{
		{
			RunStatusKey:    scrapedash.TaskStatusRunning,
			RunStartTimeKey: bson.M{"$lt": cutoff},
		},
		{
			RunStatusKey:    scrapedash.TaskStatusCreated,
			RunCreatedAtKey: bson.M{"$lt": cutoff},
		},
	}})
	err := db.FindAllQ(ctx, RunsCollection, q, &runs)
	return runs, errors.Wrap(err, "finding stale runs")
}

// Update persists the run's status, times and error message.
func (r *Run) Update(ctx context.Context) error {
	set := bson.M{
		RunStatusKey:       r.Status,
		RunErrorMessageKey: r.ErrorMessage,
	}
	if !r.StartTime.IsZero() {
		set[RunStartTimeKey] = r.StartTime
	}
	if !r.EndTime.IsZero() {
		set[RunEndTimeKey] = r.EndTime
	}
	return errors.Wrapf(db.UpdateIdContext(ctx, RunsCollection, r.Id, bson.M{"$set": set}), "updating run '%s'", r.Id)
}

// MarkRunning records that the run started.
func (r *Run) MarkRunning(ctx context.Context) error {
	r.Status = scrapedash.TaskStatusRunning
	r.StartTime = time.Now()
	return r.Update(ctx)
}

// MarkFinished records the final status of the run. A non-nil error is kept
// as the run's error message.
func (r *Run) MarkFinished(ctx context.Context, status scrapedash.TaskStatus, runErr error) error {
	if !status.IsFinished() {
		return errors.Errorf("status '%s' does not finish a run", status)
	}
	r.Status = status
	r.EndTime = time.Now()
	if runErr != nil {
		r.ErrorMessage = runErr.Error()
	}
	return r.Update(ctx)
}
