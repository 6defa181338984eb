package data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/scrape"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockConnector keeps users, tasks, runs and artifacts in memory. Setting
// IdentityErr makes every user directory call fail.
type MockConnector struct {
	mu sync.Mutex

	Users     map[string]user.User
	Tasks     map[string]task.Task
	Runs      map[string]task.Run
	Artifacts []task.Artifact

	PreviewResult *scrape.Result
	PreviewErr    error
	Summary       string
	SummaryErr    error
	IdentityErr   error

	// ScheduledRuns records the ids of runs passed to CreateRun.
	ScheduledRuns []string
}

func NewMockConnector() *MockConnector {
	return &MockConnector{
		Users: map[string]user.User{},
		Tasks: map[string]task.Task{},
		Runs:  map[string]task.Run{},
	}
}

var _ Connector = &MockConnector{}

func (mc *MockConnector) sortedUsers() []user.User {
	out := make([]user.User, 0, len(mc.Users))
	for _, u := range mc.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (mc *MockConnector) FindUsers(_ context.Context, page, pageSize int) ([]user.User, int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return nil, 0, mc.IdentityErr
	}
	if page < 1 || pageSize < 1 {
		return nil, 0, badRequest(errors.Errorf("invalid page %d with size %d", page, pageSize))
	}
	all := mc.sortedUsers()
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []user.User{}, len(all), nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], len(all), nil
}

func (mc *MockConnector) FindAllUsers(_ context.Context) ([]user.User, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return nil, mc.IdentityErr
	}
	return mc.sortedUsers(), nil
}

func (mc *MockConnector) FindUserById(_ context.Context, id string) (*user.User, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return nil, mc.IdentityErr
	}
	u, ok := mc.Users[id]
	if !ok {
		return nil, notFound("user '%s' not found", id)
	}
	return &u, nil
}

func (mc *MockConnector) UserRoles(_ context.Context, id string) ([]scrapedash.UserRole, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return nil, mc.IdentityErr
	}
	u, ok := mc.Users[id]
	if !ok {
		return nil, notFound("user '%s' not found", id)
	}
	return append([]scrapedash.UserRole{}, u.Roles...), nil
}

func (mc *MockConnector) UpdateUser(_ context.Context, id string, update user.Update) (*user.User, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return nil, mc.IdentityErr
	}
	u, ok := mc.Users[id]
	if !ok {
		return nil, notFound("user '%s' not found", id)
	}
	update.Apply(&u)
	mc.Users[id] = u
	return &u, nil
}

func (mc *MockConnector) DeleteUser(_ context.Context, id string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return mc.IdentityErr
	}
	if _, ok := mc.Users[id]; !ok {
		return notFound("user '%s' not found", id)
	}
	delete(mc.Users, id)
	return nil
}

func (mc *MockConnector) AssignUserRole(_ context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return badRequest(err)
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return mc.IdentityErr
	}
	u, ok := mc.Users[id]
	if !ok {
		return notFound("user '%s' not found", id)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	mc.Users[id] = u
	return nil
}

func (mc *MockConnector) RemoveUserRole(_ context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return badRequest(err)
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.IdentityErr != nil {
		return mc.IdentityErr
	}
	u, ok := mc.Users[id]
	if !ok {
		return notFound("user '%s' not found", id)
	}
	roles := []scrapedash.UserRole{}
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
	mc.Users[id] = u
	return nil
}

func (mc *MockConnector) liveTasks(keep func(task.Task) bool) []task.Task {
	out := []task.Task{}
	for _, t := range mc.Tasks {
		if !t.IsDeleted() && keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Id > out[j].Id
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (mc *MockConnector) FindAllTasks(_ context.Context) ([]task.Task, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.liveTasks(func(task.Task) bool { return true }), nil
}

func (mc *MockConnector) FindTasksByOwner(_ context.Context, owner string) ([]task.Task, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.liveTasks(func(t task.Task) bool { return t.Owner == owner }), nil
}

func (mc *MockConnector) FindTaskForOwner(_ context.Context, owner, taskID string) (*task.Task, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	t, ok := mc.Tasks[taskID]
	if !ok || t.IsDeleted() || t.Owner != owner {
		return nil, notFound("task '%s' not found", taskID)
	}
	return &t, nil
}

func (mc *MockConnector) CreateTask(_ context.Context, t *task.Task) error {
	if err := validateDefinition(t); err != nil {
		return err
	}
	def, _ := t.Definition()

	mc.mu.Lock()
	defer mc.mu.Unlock()

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
	mc.Tasks[t.Id] = *t
	return nil
}

func (mc *MockConnector) UpdateTask(_ context.Context, t *task.Task) error {
	if err := validateDefinition(t); err != nil {
		return err
	}
	def, _ := t.Definition()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	existing, ok := mc.Tasks[t.Id]
	if !ok || existing.IsDeleted() {
		return notFound("task '%s' not found", t.Id)
	}
	existing.TaskName = t.TaskName
	existing.TaskDefinition = t.TaskDefinition
	existing.Status = t.Status
	existing.Period = def.Period
	existing.UpdatedAt = time.Now()
	mc.Tasks[t.Id] = existing
	*t = existing
	return nil
}

func (mc *MockConnector) DeleteTask(_ context.Context, owner, taskID string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	t, ok := mc.Tasks[taskID]
	if !ok || t.IsDeleted() || t.Owner != owner {
		return notFound("task '%s' not found", taskID)
	}
	t.DeletedAt = time.Now()
	mc.Tasks[taskID] = t
	return nil
}

func (mc *MockConnector) FindRunsForTask(_ context.Context, taskID string) ([]task.Run, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := []task.Run{}
	for _, r := range mc.Runs {
		if r.TaskId == taskID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (mc *MockConnector) FindRunForTask(_ context.Context, taskID, runID string) (*task.Run, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	r, ok := mc.Runs[runID]
	if !ok || r.TaskId != taskID {
		return nil, notFound("run '%s' not found for task '%s'", runID, taskID)
	}
	return &r, nil
}

func (mc *MockConnector) CreateRun(_ context.Context, t *task.Task, r *task.Run) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	stored, ok := mc.Tasks[t.Id]
	if !ok || !stored.DeletedAt.IsZero() ||
		stored.Status == scrapedash.TaskStatusRunning || stored.Status == scrapedash.TaskStatusPending {
		return badRequest(errors.Errorf("task '%s' is already running or pending", t.Id))
	}
	stored.Status = scrapedash.TaskStatusPending
	stored.UpdatedAt = time.Now()
	mc.Tasks[t.Id] = stored
	t.Status = stored.Status

	r.TaskId = t.Id
	if r.Id == "" {
		r.Id = primitive.NewObjectID().Hex()
	}
	if r.InstanceId == "" {
		r.InstanceId = primitive.NewObjectID().Hex()
	}
	if r.Type == scrapedash.TaskRunTypeUnknown {
		r.Type = scrapedash.TaskRunTypeSingle
	}
	r.Status = scrapedash.TaskStatusCreated
	r.CreatedAt = time.Now()
	mc.Runs[r.Id] = *r
	mc.ScheduledRuns = append(mc.ScheduledRuns, r.Id)
	return nil
}

func (mc *MockConnector) UpdateRun(_ context.Context, r *task.Run) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	existing, ok := mc.Runs[r.Id]
	if !ok {
		return notFound("run '%s' not found", r.Id)
	}
	existing.Status = r.Status
	existing.ErrorMessage = r.ErrorMessage
	if !r.StartTime.IsZero() {
		existing.StartTime = r.StartTime
	}
	if !r.EndTime.IsZero() {
		existing.EndTime = r.EndTime
	}
	mc.Runs[r.Id] = existing
	*r = existing
	return nil
}

func (mc *MockConnector) FindArtifacts(_ context.Context, instanceID string, page, pageSize int) ([]task.Artifact, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, badRequest(errors.Errorf("invalid page %d with size %d", page, pageSize))
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	matching := []task.Artifact{}
	for _, a := range mc.Artifacts {
		if a.InstanceId == instanceID {
			matching = append(matching, a)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ArtifactId > matching[j].ArtifactId
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(matching) {
		return []task.Artifact{}, len(matching), nil
	}
	end := min(start+pageSize, len(matching))
	return matching[start:end], len(matching), nil
}

func (mc *MockConnector) CreateArtifact(_ context.Context, a *task.Artifact) error {
	if a.InstanceId == "" {
		return errors.New("artifact must belong to a run instance")
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if a.ArtifactId == "" {
		a.ArtifactId = primitive.NewObjectID().Hex()
	}
	for _, existing := range mc.Artifacts {
		if existing.InstanceId == a.InstanceId && existing.ArtifactId == a.ArtifactId {
			return badRequest(errors.Errorf("artifact '%s' already exists", a.ArtifactId))
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	mc.Artifacts = append(mc.Artifacts, *a)
	return nil
}

func (mc *MockConnector) Preview(_ context.Context, req scrape.Request) (*scrape.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, badRequest(err)
	}
	if mc.PreviewErr != nil {
		return nil, mc.PreviewErr
	}
	if mc.PreviewResult == nil {
		return &scrape.Result{
			Message:      scrape.PreviewMessage,
			Keywords:     req.Keywords,
			DataTypes:    req.DataTypes,
			OutputFormat: req.OutputFormat,
		}, nil
	}
	return mc.PreviewResult, nil
}

func (mc *MockConnector) SummarizeTask(_ context.Context, t *task.Task) error {
	if err := validateSummaryInput(t); err != nil {
		return err
	}
	if mc.SummaryErr != nil {
		return mc.SummaryErr
	}
	def, err := t.Definition()
	if err != nil {
		return badRequest(err)
	}
	def.SetOutput(task.SummaryOutputName, mc.Summary)
	t.TaskDefinition = def.String()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if existing, ok := mc.Tasks[t.Id]; ok {
		existing.TaskDefinition = t.TaskDefinition
		existing.UpdatedAt = time.Now()
		mc.Tasks[t.Id] = existing
	}
	return nil
}
