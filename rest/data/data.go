package data

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/auth"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/scrapedash/scrapedash/thirdparty/identity"
)

// Connector is the data layer behind the REST routes. Pages passed to it
// start at 1.
type Connector interface {
	auth.RoleResolver

	FindUsers(ctx context.Context, page, pageSize int) ([]user.User, int, error)
	FindAllUsers(ctx context.Context) ([]user.User, error)
	FindUserById(ctx context.Context, id string) (*user.User, error)
	UpdateUser(ctx context.Context, id string, update user.Update) (*user.User, error)
	DeleteUser(ctx context.Context, id string) error
	AssignUserRole(ctx context.Context, id string, role scrapedash.UserRole) error
	RemoveUserRole(ctx context.Context, id string, role scrapedash.UserRole) error

	FindAllTasks(ctx context.Context) ([]task.Task, error)
	FindTasksByOwner(ctx context.Context, owner string) ([]task.Task, error)
	// FindTaskForOwner returns a not-found error for tasks owned by
	// someone else.
	FindTaskForOwner(ctx context.Context, owner, taskID string) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, owner, taskID string) error

	FindRunsForTask(ctx context.Context, taskID string) ([]task.Run, error)
	FindRunForTask(ctx context.Context, taskID, runID string) (*task.Run, error)
	// CreateRun records a new run and schedules it.
	CreateRun(ctx context.Context, t *task.Task, r *task.Run) error
	UpdateRun(ctx context.Context, r *task.Run) error
	FindArtifacts(ctx context.Context, instanceID string, page, pageSize int) ([]task.Artifact, int, error)
	CreateArtifact(ctx context.Context, a *task.Artifact) error

	Preview(ctx context.Context, req scrape.Request) (*scrape.Result, error)
	// SummarizeTask stores a summary of the task's result on the task.
	SummarizeTask(ctx context.Context, t *task.Task) error
}

func notFound(format string, args ...any) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf(format, args...),
	}
}

func badRequest(err error) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
	}
}

// identityError translates directory errors into responses. Missing users
// are not found and everything else is a server error.
func identityError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if identity.IsNotFound(err) {
		return notFound(format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
