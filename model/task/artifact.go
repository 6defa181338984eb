package task

import (
	"context"
	"time"

	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ArtifactsCollection = "task_run_artifacts"

// Artifact records a file produced by a run.
type Artifact struct {
	InstanceId     string            `bson:"instance_id" json:"instance_id"`
	TaskId         string            `bson:"task_id" json:"task_id"`
	ArtifactId     string            `bson:"artifact_id" json:"artifact_id"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`
	ArtifactType   string            `bson:"artifact_type" json:"artifact_type"`
	URL            string            `bson:"url,omitempty" json:"url,omitempty"`
	ContentType    string            `bson:"content_type,omitempty" json:"content_type,omitempty"`
	ContentLength  int64             `bson:"content_length" json:"content_length"`
	StatusCode     int               `bson:"status_code,omitempty" json:"status_code,omitempty"`
	Bucket         string            `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key            string            `bson:"key,omitempty" json:"key,omitempty"`
	AdditionalData map[string]string `bson:"additional_data,omitempty" json:"additional_data,omitempty"`
}

var (
	ArtifactInstanceIdKey = bsonutil.MustHaveTag(Artifact{}, "InstanceId")
	ArtifactTaskIdKey     = bsonutil.MustHaveTag(Artifact{}, "TaskId")
	ArtifactIdKey         = bsonutil.MustHaveTag(Artifact{}, "ArtifactId")
	ArtifactCreatedAtKey  = bsonutil.MustHaveTag(Artifact{}, "CreatedAt")
)

// Insert writes the artifact record.
func (a *Artifact) Insert(ctx context.Context) error {
	if a.InstanceId == "" {
		return errors.New("artifact must belong to a run instance")
	}
	if a.ArtifactId == "" {
		a.ArtifactId = primitive.NewObjectID().Hex()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return errors.Wrapf(db.Insert(ctx, ArtifactsCollection, a), "inserting artifact '%s'", a.ArtifactId)
}

// FindArtifactsByInstance returns one page of a run's artifacts, newest
// first, and the total number of artifacts for the run. Pages start at 1.
func FindArtifactsByInstance(ctx context.Context, instanceId string, page, pageSize int) ([]Artifact, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, errors.Errorf("invalid page %d with size %d", page, pageSize)
	}

	filter := bson.M{ArtifactInstanceIdKey: instanceId}
	total, err := db.Count(ctx, ArtifactsCollection, filter)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "counting artifacts for '%s'", instanceId)
	}

	artifacts := []Artifact{}
	q := db.Query(filter).
		Sort([]string{"-" + ArtifactCreatedAtKey, "-" + ArtifactIdKey}).
		Skip((page - 1) * pageSize).
		Limit(pageSize)
	if err = db.FindAllQ(ctx, ArtifactsCollection, q, &artifacts); err != nil {
		return nil, 0, errors.Wrapf(err, "finding artifacts for '%s'", instanceId)
	}

	return artifacts, total, nil
}
