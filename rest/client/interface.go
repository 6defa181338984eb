package client

import (
	"context"
	"time"

	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/rest/model"
)

// Client talks to the scrapedash REST API on behalf of one bearer token.
type Client interface {
	// Setters
	SetToken(string)
	SetMaxAttempts(int)
	SetTimeoutStart(time.Duration)
	SetTimeoutMax(time.Duration)

	// Close releases the client's HTTP resources.
	Close()

	Health(context.Context) error

	// Users
	ListUsers(ctx context.Context, opts UserListOptions) (*model.APIPaginated[model.APIUser], error)
	GetUser(ctx context.Context, userID string) (*model.APIUser, error)
	UpdateUser(ctx context.Context, userID string, update model.APIUser) (*model.APIUser, error)
	DeleteUser(ctx context.Context, userID string) error
	GetUserRoles(ctx context.Context, userID string) (*model.APIUserRoles, error)
	AssignUserRole(ctx context.Context, userID string, role scrapedash.UserRole) (*model.APIUserRoles, error)
	RemoveUserRole(ctx context.Context, userID string, role scrapedash.UserRole) (*model.APIUserRoles, error)

	// Tasks
	ListAllTasks(ctx context.Context) ([]model.APITask, error)
	ListTasks(ctx context.Context, userID string) ([]model.APITask, error)
	CreateTask(ctx context.Context, userID string, t model.APITask) (*model.APITask, error)
	GetTask(ctx context.Context, userID, taskID string) (*model.APITask, error)
	UpdateTask(ctx context.Context, userID, taskID string, t model.APITask) (*model.APITask, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	PreviewTask(ctx context.Context, userID string, req model.APIPreviewRequest) (*model.APIPreviewResponse, error)
	SummarizeTask(ctx context.Context, userID, taskID string, details *model.APITask) (*model.APITask, error)

	// Runs
	ListRuns(ctx context.Context, userID, taskID string) ([]model.APITaskRun, error)
	CreateRun(ctx context.Context, userID, taskID string) (*model.APITaskRun, error)
	GetRun(ctx context.Context, userID, taskID, runID string) (*model.APITaskRun, error)
	UpdateRun(ctx context.Context, userID, taskID, runID string, r model.APITaskRun) (*model.APITaskRun, error)
	ListArtifacts(ctx context.Context, userID, taskID, runID string, page, pageSize int) (*model.APIPaginated[model.APIArtifact], error)
	CreateArtifact(ctx context.Context, userID, taskID, runID string, a model.APIArtifact) (*model.APIArtifact, error)
}

// UserListOptions selects a page of the user listing.
type UserListOptions struct {
	Page     int
	PageSize int
	// All lists the whole directory and ignores Page and PageSize.
	All    bool
	Search string
	// Sort is email, name or last_login, optionally prefixed with '-'.
	Sort string
}
