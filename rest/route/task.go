package route

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/model"
	"github.com/scrapedash/scrapedash/util"
)

func taskResponse(t task.Task) gimlet.Responder {
	apiTask := model.APITask{}
	apiTask.BuildFromService(t)
	return gimlet.NewJSONResponse(apiTask)
}

func tasksResponse(tasks []task.Task) gimlet.Responder {
	apiTasks := make([]model.APITask, 0, len(tasks))
	for _, t := range tasks {
		apiTask := model.APITask{}
		apiTask.BuildFromService(t)
		apiTasks = append(apiTasks, apiTask)
	}
	return gimlet.NewJSONResponse(apiTasks)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /task

type taskListAllHandler struct {
	sc data.Connector
}

func makeFetchAllTasks(sc data.Connector) gimlet.RouteHandler {
	return &taskListAllHandler{sc: sc}
}

func (h *taskListAllHandler) Factory() gimlet.RouteHandler {
	return &taskListAllHandler{sc: h.sc}
}

func (h *taskListAllHandler) Parse(ctx context.Context, r *http.Request) error { return nil }

func (h *taskListAllHandler) Run(ctx context.Context) gimlet.Responder {
	tasks, err := h.sc.FindAllTasks(ctx)
	if err != nil {
		return errorResponder(err, "finding tasks")
	}
	return tasksResponse(tasks)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/task

type taskListHandler struct {
	userID string

	sc data.Connector
}

func makeFetchUserTasks(sc data.Connector) gimlet.RouteHandler {
	return &taskListHandler{sc: sc}
}

func (h *taskListHandler) Factory() gimlet.RouteHandler {
	return &taskListHandler{sc: h.sc}
}

func (h *taskListHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	return nil
}

func (h *taskListHandler) Run(ctx context.Context) gimlet.Responder {
	tasks, err := h.sc.FindTasksByOwner(ctx, h.userID)
	if err != nil {
		return errorResponder(err, "finding tasks for user '%s'", h.userID)
	}
	return tasksResponse(tasks)
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /user/{user_id}/task

type taskCreateHandler struct {
	userID string
	body   model.APITask

	sc data.Connector
}

func makeCreateTask(sc data.Connector) gimlet.RouteHandler {
	return &taskCreateHandler{sc: sc}
}

func (h *taskCreateHandler) Factory() gimlet.RouteHandler {
	return &taskCreateHandler{sc: h.sc}
}

func (h *taskCreateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading task from JSON request body")
	}
	if h.body.TaskName == nil || *h.body.TaskName == "" {
		return badRequest(errors.New("task name is required"))
	}
	return nil
}

func (h *taskCreateHandler) Run(ctx context.Context) gimlet.Responder {
	t := h.body.ToService()
	t.Id = ""
	t.Owner = h.userID
	if err := h.sc.CreateTask(ctx, &t); err != nil {
		return errorResponder(err, "creating task for user '%s'", h.userID)
	}

	resp := taskResponse(t)
	if err := resp.SetStatus(http.StatusCreated); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, "setting HTTP status code to %d", http.StatusCreated))
	}
	return resp
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/task/{task_id}

type taskGetHandler struct {
	userID string
	taskID string

	sc data.Connector
}

func makeFetchTask(sc data.Connector) gimlet.RouteHandler {
	return &taskGetHandler{sc: sc}
}

func (h *taskGetHandler) Factory() gimlet.RouteHandler {
	return &taskGetHandler{sc: h.sc}
}

func (h *taskGetHandler) Parse(ctx context.Context, r *http.Request) error {
	vars := gimlet.GetVars(r)
	h.userID = vars["user_id"]
	h.taskID = vars["task_id"]
	return nil
}

func (h *taskGetHandler) Run(ctx context.Context) gimlet.Responder {
	t, err := h.sc.FindTaskForOwner(ctx, h.userID, h.taskID)
	if err != nil {
		return errorResponder(err, "finding task '%s'", h.taskID)
	}
	return taskResponse(*t)
}

///////////////////////////////////////////////////////////////////////////////
//
// PUT /user/{user_id}/task/{task_id}

type taskUpdateHandler struct {
	userID string
	taskID string
	body   model.APITask

	sc data.Connector
}

func makeUpdateTask(sc data.Connector) gimlet.RouteHandler {
	return &taskUpdateHandler{sc: sc}
}

func (h *taskUpdateHandler) Factory() gimlet.RouteHandler {
	return &taskUpdateHandler{sc: h.sc}
}

func (h *taskUpdateHandler) Parse(ctx context.Context, r *http.Request) error {
	vars := gimlet.GetVars(r)
	h.userID = vars["user_id"]
	h.taskID = vars["task_id"]
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading task from JSON request body")
	}
	return nil
}

func (h *taskUpdateHandler) Run(ctx context.Context) gimlet.Responder {
	t, err := h.sc.FindTaskForOwner(ctx, h.userID, h.taskID)
	if err != nil {
		return errorResponder(err, "finding task '%s'", h.taskID)
	}
	applyTaskChanges(t, h.body)

	if err = h.sc.UpdateTask(ctx, t); err != nil {
		return errorResponder(err, "updating task '%s'", h.taskID)
	}
	return taskResponse(*t)
}

// applyTaskChanges copies the fields a client may change. Ownership and
// timestamps stay with the server.
func applyTaskChanges(t *task.Task, body model.APITask) {
	if body.TaskName != nil && *body.TaskName != "" {
		t.TaskName = *body.TaskName
	}
	if body.TaskDefinition != "" {
		t.TaskDefinition = string(body.TaskDefinition)
	}
	if body.Status != scrapedash.TaskStatusUnknown {
		t.Status = body.Status
	}
}

///////////////////////////////////////////////////////////////////////////////
//
// DELETE /user/{user_id}/task/{task_id}

type taskDeleteHandler struct {
	userID string
	taskID string

	sc data.Connector
}

func makeDeleteTask(sc data.Connector) gimlet.RouteHandler {
	return &taskDeleteHandler{sc: sc}
}

func (h *taskDeleteHandler) Factory() gimlet.RouteHandler {
	return &taskDeleteHandler{sc: h.sc}
}

func (h *taskDeleteHandler) Parse(ctx context.Context, r *http.Request) error {
	vars := gimlet.GetVars(r)
	h.userID = vars["user_id"]
	h.taskID = vars["task_id"]
	return nil
}

func (h *taskDeleteHandler) Run(ctx context.Context) gimlet.Responder {
	if err := h.sc.DeleteTask(ctx, h.userID, h.taskID); err != nil {
		return errorResponder(err, "deleting task '%s'", h.taskID)
	}
	return gimlet.NewJSONResponse(struct{}{})
}
