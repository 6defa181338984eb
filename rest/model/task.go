package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
)

// APIDefinition holds a task definition as JSON text. It is sent as a JSON
// string, and requests may also carry the definition as an object.
type APIDefinition string

func (d APIDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

func (d *APIDefinition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decoding task definition")
		}
		*d = APIDefinition(s)
		return nil
	}
	if !json.Valid(data) {
		return errors.New("task definition is not valid JSON")
	}
	*d = APIDefinition(data)
	return nil
}

// APITask is the REST view of a task.
type APITask struct {
	Id             *string               `json:"id"`
	TaskName       *string               `json:"task_name"`
	TaskDefinition APIDefinition         `json:"task_definition"`
	Status         scrapedash.TaskStatus `json:"status"`
	Owner          *string               `json:"owner"`
	CreatedAt      *time.Time            `json:"created_at"`
	UpdatedAt      *time.Time            `json:"updated_at"`
	DeletedAt      *time.Time            `json:"deleted_at"`
	NextRunAt      *time.Time            `json:"next_run_at,omitempty"`
	LastRunId      *string               `json:"last_run_id,omitempty"`
}

func (t *APITask) BuildFromService(in task.Task) {
	t.Id = utility.ToStringPtr(in.Id)
	t.TaskName = utility.ToStringPtr(in.TaskName)
	t.TaskDefinition = APIDefinition(in.TaskDefinition)
	t.Status = in.Status
	t.Owner = utility.ToStringPtr(in.Owner)
	t.CreatedAt = utility.ToTimePtr(in.CreatedAt)
	t.UpdatedAt = utility.ToTimePtr(in.UpdatedAt)
	if !in.DeletedAt.IsZero() {
		t.DeletedAt = utility.ToTimePtr(in.DeletedAt)
	}
	if !in.NextRunAt.IsZero() {
		t.NextRunAt = utility.ToTimePtr(in.NextRunAt)
	}
	t.LastRunId = optionalString(in.LastRunId)
}

// ToService returns the task described by the request. The id, owner and
// timestamps are set by the server.
func (t *APITask) ToService() task.Task {
	return task.Task{
		Id:             utility.FromStringPtr(t.Id),
		TaskName:       utility.FromStringPtr(t.TaskName),
		TaskDefinition: string(t.TaskDefinition),
		Status:         t.Status,
		Owner:          utility.FromStringPtr(t.Owner),
	}
}

// APITaskRun is the REST view of a run.
type APITaskRun struct {
	Id           *string                `json:"id"`
	TaskId       *string                `json:"task_id"`
	InstanceId   *string                `json:"instance_id"`
	Type         scrapedash.TaskRunType `json:"type"`
	Status       scrapedash.TaskStatus  `json:"status"`
	StartTime    *time.Time             `json:"start_time"`
	EndTime      *time.Time             `json:"end_time"`
	ErrorMessage *string                `json:"error_message"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
}

func (r *APITaskRun) BuildFromService(in task.Run) {
	r.Id = utility.ToStringPtr(in.Id)
	r.TaskId = utility.ToStringPtr(in.TaskId)
	r.InstanceId = utility.ToStringPtr(in.InstanceId)
	r.Type = in.Type
	r.Status = in.Status
	r.StartTime = utility.ToTimePtr(in.StartTime)
	r.EndTime = utility.ToTimePtr(in.EndTime)
	r.ErrorMessage = utility.ToStringPtr(in.ErrorMessage)
	r.CreatedAt = utility.ToTimePtr(in.CreatedAt)
}

func (r *APITaskRun) ToService() task.Run {
	return task.Run{
		Id:           utility.FromStringPtr(r.Id),
		TaskId:       utility.FromStringPtr(r.TaskId),
		InstanceId:   utility.FromStringPtr(r.InstanceId),
		Type:         r.Type,
		Status:       r.Status,
		StartTime:    fromTimePtr(r.StartTime),
		EndTime:      fromTimePtr(r.EndTime),
		ErrorMessage: utility.FromStringPtr(r.ErrorMessage),
	}
}

// APIArtifact is the REST view of a file produced by a run.
type APIArtifact struct {
	InstanceId     *string           `json:"instance_id"`
	TaskId         *string           `json:"task_id"`
	ArtifactId     *string           `json:"artifact_id"`
	CreatedAt      *time.Time        `json:"created_at"`
	ArtifactType   *string           `json:"artifact_type"`
	URL            *string           `json:"url"`
	ContentType    *string           `json:"content_type"`
	ContentLength  int64             `json:"content_length"`
	StatusCode     int               `json:"status_code"`
	Bucket         *string           `json:"bucket,omitempty"`
	Key            *string           `json:"key,omitempty"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

func (a *APIArtifact) BuildFromService(in task.Artifact) {
	a.InstanceId = utility.ToStringPtr(in.InstanceId)
	a.TaskId = utility.ToStringPtr(in.TaskId)
	a.ArtifactId = utility.ToStringPtr(in.ArtifactId)
	a.CreatedAt = utility.ToTimePtr(in.CreatedAt)
	a.ArtifactType = utility.ToStringPtr(in.ArtifactType)
	a.URL = utility.ToStringPtr(in.URL)
	a.ContentType = utility.ToStringPtr(in.ContentType)
	a.ContentLength = in.ContentLength
	a.StatusCode = in.StatusCode
	a.Bucket = optionalString(in.Bucket)
	a.Key = optionalString(in.Key)
	a.AdditionalData = in.AdditionalData
}

func (a *APIArtifact) ToService() (task.Artifact, error) {
	if utility.FromStringPtr(a.ArtifactType) == "" {
		return task.Artifact{}, errors.New("artifact type is required")
	}
	return task.Artifact{
		InstanceId:     utility.FromStringPtr(a.InstanceId),
		TaskId:         utility.FromStringPtr(a.TaskId),
		ArtifactId:     utility.FromStringPtr(a.ArtifactId),
		CreatedAt:      fromTimePtr(a.CreatedAt),
		ArtifactType:   utility.FromStringPtr(a.ArtifactType),
		URL:            utility.FromStringPtr(a.URL),
		ContentType:    utility.FromStringPtr(a.ContentType),
		ContentLength:  a.ContentLength,
		StatusCode:     a.StatusCode,
		Bucket:         utility.FromStringPtr(a.Bucket),
		Key:            utility.FromStringPtr(a.Key),
		AdditionalData: a.AdditionalData,
	}, nil
}

// APIPaginated is one page of a listing with the size of the whole listing.
type APIPaginated[T any] struct {
	Total int64 `json:"total"`
	Data  []T   `json:"data"`
}

// NewPaginated wraps a page, never rendering the data as null.
func NewPaginated[T any](total int, data []T) APIPaginated[T] {
	if data == nil {
		data = []T{}
	}
	return APIPaginated[T]{Total: int64(total), Data: data}
}
