package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/rest/model"
)

func (c *restClient) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}

func userPath(userID string) string {
	return "/user/" + url.PathEscape(userID)
}

func taskPath(userID, taskID string) string {
	return fmt.Sprintf("%s/task/%s", userPath(userID), url.PathEscape(taskID))
}

func runPath(userID, taskID, runID string) string {
	return fmt.Sprintf("%s/run/%s", taskPath(userID, taskID), url.PathEscape(runID))
}

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *restClient) ListUsers(ctx context.Context, opts UserListOptions) (*model.APIPaginated[model.APIUser], error) {
	q := pageQuery(opts.Page, opts.PageSize)
	if opts.All {
		q = url.Values{"all": []string{"true"}}
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	out := &model.APIPaginated[model.APIUser]{}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/user", q), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) GetUser(ctx context.Context, userID string) (*model.APIUser, error) {
	out := &model.APIUser{}
	if err := c.doJSON(ctx, http.MethodGet, userPath(userID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) UpdateUser(ctx context.Context, userID string, update model.APIUser) (*model.APIUser, error) {
	out := &model.APIUser{}
	if err := c.doJSON(ctx, http.MethodPut, userPath(userID), update, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) DeleteUser(ctx context.Context, userID string) error {
	return c.doJSON(ctx, http.MethodDelete, userPath(userID), nil, nil)
}

func (c *restClient) GetUserRoles(ctx context.Context, userID string) (*model.APIUserRoles, error) {
	out := &model.APIUserRoles{}
	if err := c.doJSON(ctx, http.MethodGet, userPath(userID)+"/roles", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) AssignUserRole(ctx context.Context, userID string, role scrapedash.UserRole) (*model.APIUserRoles, error) {
	return c.modifyRole(ctx, http.MethodPost, userID, role)
}

func (c *restClient) RemoveUserRole(ctx context.Context, userID string, role scrapedash.UserRole) (*model.APIUserRoles, error) {
	return c.modifyRole(ctx, http.MethodDelete, userID, role)
}

func (c *restClient) modifyRole(ctx context.Context, method, userID string, role scrapedash.UserRole) (*model.APIUserRoles, error) {
	out := &model.APIUserRoles{}
	if err := c.doJSON(ctx, method, userPath(userID)+"/roles", model.APIRoleRequest{Role: role}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) ListAllTasks(ctx context.Context) ([]model.APITask, error) {
	out := []model.APITask{}
	if err := c.doJSON(ctx, http.MethodGet, "/task", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) ListTasks(ctx context.Context, userID string) ([]model.APITask, error) {
	out := []model.APITask{}
	if err := c.doJSON(ctx, http.MethodGet, userPath(userID)+"/task", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) CreateTask(ctx context.Context, userID string, t model.APITask) (*model.APITask, error) {
	out := &model.APITask{}
	if err := c.doJSON(ctx, http.MethodPost, userPath(userID)+"/task", t, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) GetTask(ctx context.Context, userID, taskID string) (*model.APITask, error) {
	out := &model.APITask{}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(userID, taskID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) UpdateTask(ctx context.Context, userID, taskID string, t model.APITask) (*model.APITask, error) {
	out := &model.APITask{}
	if err := c.doJSON(ctx, http.MethodPut, taskPath(userID, taskID), t, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) DeleteTask(ctx context.Context, userID, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(userID, taskID), nil, nil)
}

func (c *restClient) PreviewTask(ctx context.Context, userID string, req model.APIPreviewRequest) (*model.APIPreviewResponse, error) {
	out := &model.APIPreviewResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/"+url.PathEscape(userID)+"/task", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) SummarizeTask(ctx context.Context, userID, taskID string, details *model.APITask) (*model.APITask, error) {
	path := fmt.Sprintf("/%s/task/%s/summary", url.PathEscape(userID), url.PathEscape(taskID))
	out := &model.APITask{}
	if err := c.doJSON(ctx, http.MethodPut, path, model.APISummaryRequest{TaskDetails: details}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) ListRuns(ctx context.Context, userID, taskID string) ([]model.APITaskRun, error) {
	out := []model.APITaskRun{}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(userID, taskID)+"/run", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) CreateRun(ctx context.Context, userID, taskID string) (*model.APITaskRun, error) {
	out := &model.APITaskRun{}
	if err := c.doJSON(ctx, http.MethodPost, taskPath(userID, taskID)+"/run", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) GetRun(ctx context.Context, userID, taskID, runID string) (*model.APITaskRun, error) {
	out := &model.APITaskRun{}
	if err := c.doJSON(ctx, http.MethodGet, runPath(userID, taskID, runID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) UpdateRun(ctx context.Context, userID, taskID, runID string, r model.APITaskRun) (*model.APITaskRun, error) {
	out := &model.APITaskRun{}
	if err := c.doJSON(ctx, http.MethodPut, runPath(userID, taskID, runID), r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) ListArtifacts(ctx context.Context, userID, taskID, runID string, page, pageSize int) (*model.APIPaginated[model.APIArtifact], error) {
	out := &model.APIPaginated[model.APIArtifact]{}
	path := withQuery(runPath(userID, taskID, runID)+"/artifact", pageQuery(page, pageSize))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) CreateArtifact(ctx context.Context, userID, taskID, runID string, a model.APIArtifact) (*model.APIArtifact, error) {
	out := &model.APIArtifact{}
	if err := c.doJSON(ctx, http.MethodPost, runPath(userID, taskID, runID)+"/artifact", a, out); err != nil {
		return nil, err
	}
	return out, nil
}
