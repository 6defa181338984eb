package task

import (
	"context"
	"time"

	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "tasks"

// Task is a scrape task owned by a user. The definition is kept as the JSON
// the client sent.
type Task struct {
	Id             string                `bson:"_id" json:"id"`
	Owner          string                `bson:"owner" json:"owner"`
	TaskName       string                `bson:"task_name" json:"task_name"`
	TaskDefinition string                `bson:"task_definition" json:"task_definition"`
	Period         scrapedash.TaskPeriod `bson:"period" json:"period"`
	Status         scrapedash.TaskStatus `bson:"status" json:"status"`
	CreatedAt      time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `bson:"updated_at" json:"updated_at"`
	DeletedAt      time.Time             `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	NextRunAt      time.Time             `bson:"next_run_at,omitempty" json:"next_run_at,omitempty"`
	LastRunId      string                `bson:"last_run_id,omitempty" json:"last_run_id,omitempty"`
}

var (
	IdKey             = bsonutil.MustHaveTag(Task{}, "Id")
	OwnerKey          = bsonutil.MustHaveTag(Task{}, "Owner")
	TaskNameKey       = bsonutil.MustHaveTag(Task{}, "TaskName")
	TaskDefinitionKey = bsonutil.MustHaveTag(Task{}, "TaskDefinition")
	PeriodKey         = bsonutil.MustHaveTag(Task{}, "Period")
	StatusKey         = bsonutil.MustHaveTag(Task{}, "Status")
	CreatedAtKey      = bsonutil.MustHaveTag(Task{}, "CreatedAt")
	UpdatedAtKey      = bsonutil.MustHaveTag(Task{}, "UpdatedAt")
	DeletedAtKey      = bsonutil.MustHaveTag(Task{}, "DeletedAt")
	NextRunAtKey      = bsonutil.MustHaveTag(Task{}, "NextRunAt")
	LastRunIdKey      = bsonutil.MustHaveTag(Task{}, "LastRunId")
)

// Definition parses the task's definition.
func (t *Task) Definition() (*Definition, error) {
	return ParseDefinition(t.TaskDefinition)
}

// IsDeleted returns true if the task was removed.
func (t *Task) IsDeleted() bool { return !t.DeletedAt.IsZero() }

func notDeleted(filter bson.M) bson.M {
	filter[DeletedAtKey] = bson.M{"$exists": false}
	return filter
}

// ById returns a query for the live task with the given id.
func ById(id string) bson.M {
	return notDeleted(bson.M{IdKey: id})
}

// EnsureIndexes creates the indexes used by task queries.
func EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: OwnerKey, Value: 1}, {Key: CreatedAtKey, Value: -1}}},
		{Keys: bson.D{{Key: PeriodKey, Value: 1}, {Key: NextRunAtKey, Value: 1}}},
		{Keys: bson.D{{Key: RunTaskIdKey, Value: 1}, {Key: RunCreatedAtKey, Value: -1}}},
		{Keys: bson.D{{Key: ArtifactInstanceIdKey, Value: 1}, {Key: ArtifactCreatedAtKey, Value: -1}, {Key: ArtifactIdKey, Value: -1}}},
		{Keys: bson.D{{Key: ArtifactInstanceIdKey, Value: 1}, {Key: ArtifactIdKey, Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	colls := []string{Collection, Collection, RunsCollection, ArtifactsCollection, ArtifactsCollection}
	for i, idx := range indexes {
		if err := db.EnsureIndex(ctx, colls[i], idx); err != nil {
			return errors.Wrapf(err, "creating index on '%s'", colls[i])
		}
	}
	return nil
}

// Insert writes a new task. The task gets an id, timestamps, and a created
// status if it has none. Periodic tasks are due immediately.
func (t *Task) Insert(ctx context.Context) error {
	if t.Owner == "" {
		return errors.New("task must have an owner")
	}
	def, err := t.Definition()
	if err != nil {
		return err
	}

	now := time.Now()
	if t.Id == "" {
		t.Id = primitive.NewObjectID().Hex()
	}
	if t.Status == scrapedash.TaskStatusUnknown {
		t.Status = scrapedash.TaskStatusCreated
	}
	t.Period = def.Period
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Period.IsPeriodic() && t.NextRunAt.IsZero() {
		t.NextRunAt = now
	}

	return errors.Wrapf(db.Insert(ctx, Collection, t), "inserting task '%s'", t.Id)
}

// FindOneId returns the live task with the given id, or nil if there is none.
func FindOneId(ctx context.Context, id string) (*Task, error) {
	t := &Task{}
	err := db.FindOneQContext(ctx, Collection, db.Query(ById(id)), t)
	if db.ResultsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding task '%s'", id)
	}
	return t, nil
}

// FindByOwner returns the live tasks owned by the user, newest first.
func FindByOwner(ctx context.Context, owner string) ([]Task, error) {
	tasks := []Task{}
	q := db.Query(notDeleted(bson.M{OwnerKey: owner})).Sort([]string{"-" + CreatedAtKey})
	err := db.FindAllQ(ctx, Collection, q, &tasks)
	return tasks, errors.Wrapf(err, "finding tasks for '%s'", owner)
}

// FindAll returns every live task, newest first.
func FindAll(ctx context.Context) ([]Task, error) {
	tasks := []Task{}
	q := db.Query(notDeleted(bson.M{})).Sort([]string{"-" + CreatedAtKey})
	err := db.FindAllQ(ctx, Collection, q, &tasks)
	return tasks, errors.Wrap(err, "finding tasks")
}

// FindDueForRun returns periodic tasks whose next run is at or before now
// and that aren't already running or waiting to run.
func FindDueForRun(ctx context.Context, now time.Time) ([]Task, error) {
	periodic := []scrapedash.TaskPeriod{}
	for p := scrapedash.TaskPeriodSingle; p <= scrapedash.TaskPeriodMonthly; p++ {
		if p.IsPeriodic() {
			periodic = append(periodic, p)
		}
	}

	tasks := []Task{}
	q := db.Query(notDeleted(bson.M{
		PeriodKey:    bson.M{"$in": periodic},
		NextRunAtKey: bson.M{"$lte": now},
		StatusKey:    bson.M{"$nin": busyStatuses},
	})).Sort([]string{NextRunAtKey})
	err := db.FindAllQ(ctx, Collection, q, &tasks)
	return tasks, errors.Wrap(err, "finding tasks due to run")
}

// Update persists the task's name, definition and status.
func (t *Task) Update(ctx context.Context) error {
	def, err := t.Definition()
	if err != nil {
		return err
	}
	t.Period = def.Period
	t.UpdatedAt = time.Now()

	set := bson.M{
		TaskNameKey:       t.TaskName,
		TaskDefinitionKey: t.TaskDefinition,
		PeriodKey:         t.Period,
		StatusKey:         t.Status,
		UpdatedAtKey:      t.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if t.Period.IsPeriodic() {
		if t.NextRunAt.IsZero() {
			t.NextRunAt = t.UpdatedAt
		}
		set[NextRunAtKey] = t.NextRunAt
	} else {
		t.NextRunAt = time.Time{}
		update["$unset"] = bson.M{NextRunAtKey: 1}
	}

	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(t.Id), update), "updating task '%s'", t.Id)
}

// SetStatus changes the status of the task.
var busyStatuses = []scrapedash.TaskStatus{scrapedash.TaskStatusRunning, scrapedash.TaskStatusPending}

// MarkPending moves the task to pending unless it is already running or
// pending, and returns the updated task. Only one caller wins for a given
// task; the others get a not-found error.
func MarkPending(ctx context.Context, id string) (*Task, error) {
	query := ById(id)
	query[StatusKey] = bson.M{"$nin": busyStatuses}

	t := &Task{}
	err := db.FindAndModify(ctx, Collection, query, nil, bson.M{
		"$set": bson.M{StatusKey: scrapedash.TaskStatusPending, UpdatedAtKey: time.Now()},
	}, t)
	if err != nil {
		return nil, errors.Wrapf(err, "marking task '%s' pending", id)
	}
	return t, nil
}

func SetStatus(ctx context.Context, id string, status scrapedash.TaskStatus) error {
	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(id), bson.M{
		"$set": bson.M{StatusKey: status, UpdatedAtKey: time.Now()},
	}), "setting status for task '%s'", id)
}

// SetNextRun schedules the next periodic run of the task.
func SetNextRun(ctx context.Context, id string, at time.Time) error {
	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(id), bson.M{
		"$set": bson.M{NextRunAtKey: at},
	}), "scheduling task '%s'", id)
}

// ClearNextRun stops scheduling the task.
func ClearNextRun(ctx context.Context, id string) error {
	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(id), bson.M{
		"$unset": bson.M{NextRunAtKey: 1},
	}), "unscheduling task '%s'", id)
}

// SetLastRun records the most recent run of the task.
func SetLastRun(ctx context.Context, id, runId string) error {
	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(id), bson.M{
		"$set": bson.M{LastRunIdKey: runId},
	}), "setting last run for task '%s'", id)
}

// Remove soft-deletes the task. Removed tasks are excluded from every find.
func Remove(ctx context.Context, id string) error {
	now := time.Now()
	return errors.Wrapf(db.UpdateContext(ctx, Collection, ById(id), bson.M{
		"$set":   bson.M{DeletedAtKey: now, UpdatedAtKey: now},
		"$unset": bson.M{NextRunAtKey: 1},
	}), "removing task '%s'", id)
}
