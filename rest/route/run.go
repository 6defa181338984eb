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

// runPath holds the ids of a nested run route.
type runPath struct {
	userID string
	taskID string
	runID  string
}

func parseRunPath(r *http.Request) runPath {
	vars := gimlet.GetVars(r)
	return runPath{
		userID: vars["user_id"],
		taskID: vars["task_id"],
		runID:  vars["run_id"],
	}
}

// findRun resolves the run, making sure the task belongs to the user and the
// run belongs to the task.
func (p runPath) findRun(ctx context.Context, sc data.Connector) (*task.Task, *task.Run, error) {
	t, err := sc.FindTaskForOwner(ctx, p.userID, p.taskID)
	if err != nil {
		return nil, nil, err
	}
	r, err := sc.FindRunForTask(ctx, t.Id, p.runID)
	if err != nil {
		return nil, nil, err
	}
	return t, r, nil
}

func runResponse(r task.Run) gimlet.Responder {
	apiRun := model.APITaskRun{}
	apiRun.BuildFromService(r)
	return gimlet.NewJSONResponse(apiRun)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/task/{task_id}/run

type runListHandler struct {
	path runPath

	sc data.Connector
}

func makeFetchTaskRuns(sc data.Connector) gimlet.RouteHandler {
	return &runListHandler{sc: sc}
}

func (h *runListHandler) Factory() gimlet.RouteHandler {
	return &runListHandler{sc: h.sc}
}

func (h *runListHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	return nil
}

func (h *runListHandler) Run(ctx context.Context) gimlet.Responder {
	t, err := h.sc.FindTaskForOwner(ctx, h.path.userID, h.path.taskID)
	if err != nil {
		return errorResponder(err, "finding task '%s'", h.path.taskID)
	}
	runs, err := h.sc.FindRunsForTask(ctx, t.Id)
	if err != nil {
		return errorResponder(err, "finding runs for task '%s'", t.Id)
	}

	apiRuns := make([]model.APITaskRun, 0, len(runs))
	for _, r := range runs {
		apiRun := model.APITaskRun{}
		apiRun.BuildFromService(r)
		apiRuns = append(apiRuns, apiRun)
	}
	return gimlet.NewJSONResponse(apiRuns)
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /user/{user_id}/task/{task_id}/run

type runCreateHandler struct {
	path runPath
	body model.APITaskRun

	sc data.Connector
}

func makeCreateTaskRun(sc data.Connector) gimlet.RouteHandler {
	return &runCreateHandler{sc: sc}
}

func (h *runCreateHandler) Factory() gimlet.RouteHandler {
	return &runCreateHandler{sc: h.sc}
}

func (h *runCreateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	// the body is optional and only sets the run type
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading run from JSON request body")
	}
	if h.body.Type == scrapedash.TaskRunTypePreview {
		return badRequest(errors.New("preview runs are not stored"))
	}
	return nil
}

func (h *runCreateHandler) Run(ctx context.Context) gimlet.Responder {
	t, err := h.sc.FindTaskForOwner(ctx, h.path.userID, h.path.taskID)
	if err != nil {
		return errorResponder(err, "finding task '%s'", h.path.taskID)
	}

	r := &task.Run{Type: h.body.Type}
	if err = h.sc.CreateRun(ctx, t, r); err != nil {
		return errorResponder(err, "creating run for task '%s'", t.Id)
	}
	return runResponse(*r)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/task/{task_id}/run/{run_id}

type runGetHandler struct {
	path runPath

	sc data.Connector
}

func makeFetchTaskRun(sc data.Connector) gimlet.RouteHandler {
	return &runGetHandler{sc: sc}
}

func (h *runGetHandler) Factory() gimlet.RouteHandler {
	return &runGetHandler{sc: h.sc}
}

func (h *runGetHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	return nil
}

func (h *runGetHandler) Run(ctx context.Context) gimlet.Responder {
	_, r, err := h.path.findRun(ctx, h.sc)
	if err != nil {
		return errorResponder(err, "finding run '%s'", h.path.runID)
	}
	return runResponse(*r)
}

///////////////////////////////////////////////////////////////////////////////
//
// PUT /user/{user_id}/task/{task_id}/run/{run_id}

type runUpdateHandler struct {
	path runPath
	body model.APITaskRun

	sc data.Connector
}

func makeUpdateTaskRun(sc data.Connector) gimlet.RouteHandler {
	return &runUpdateHandler{sc: sc}
}

func (h *runUpdateHandler) Factory() gimlet.RouteHandler {
	return &runUpdateHandler{sc: h.sc}
}

func (h *runUpdateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading run from JSON request body")
	}
	return nil
}

func (h *runUpdateHandler) Run(ctx context.Context) gimlet.Responder {
	_, r, err := h.path.findRun(ctx, h.sc)
	if err != nil {
		return errorResponder(err, "finding run '%s'", h.path.runID)
	}

	update := h.body.ToService()
	if h.body.Status != scrapedash.TaskStatusUnknown {
		r.Status = update.Status
	}
	if h.body.StartTime != nil {
		r.StartTime = update.StartTime
	}
	if h.body.EndTime != nil {
		r.EndTime = update.EndTime
	}
	if h.body.ErrorMessage != nil {
		r.ErrorMessage = update.ErrorMessage
	}

	if err = h.sc.UpdateRun(ctx, r); err != nil {
		return errorResponder(err, "updating run '%s'", r.Id)
	}
	return runResponse(*r)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/task/{task_id}/run/{run_id}/artifact

type artifactListHandler struct {
	path     runPath
	page     int
	pageSize int

	sc data.Connector
}

func makeFetchRunArtifacts(sc data.Connector) gimlet.RouteHandler {
	return &artifactListHandler{sc: sc}
}

func (h *artifactListHandler) Factory() gimlet.RouteHandler {
	return &artifactListHandler{sc: h.sc}
}

func (h *artifactListHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	var err error
	h.page, h.pageSize, err = parsePagination(r.URL.Query())
	return err
}

func (h *artifactListHandler) Run(ctx context.Context) gimlet.Responder {
	_, r, err := h.path.findRun(ctx, h.sc)
	if err != nil {
		return errorResponder(err, "finding run '%s'", h.path.runID)
	}
	artifacts, total, err := h.sc.FindArtifacts(ctx, r.InstanceId, h.page, h.pageSize)
	if err != nil {
		return errorResponder(err, "finding artifacts for run '%s'", r.Id)
	}

	apiArtifacts := make([]model.APIArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		apiArtifact := model.APIArtifact{}
		apiArtifact.BuildFromService(a)
		apiArtifacts = append(apiArtifacts, apiArtifact)
	}
	return gimlet.NewJSONResponse(model.NewPaginated(total, apiArtifacts))
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /user/{user_id}/task/{task_id}/run/{run_id}/artifact

type artifactCreateHandler struct {
	path     runPath
	artifact task.Artifact

	sc data.Connector
}

func makeCreateRunArtifact(sc data.Connector) gimlet.RouteHandler {
	return &artifactCreateHandler{sc: sc}
}

func (h *artifactCreateHandler) Factory() gimlet.RouteHandler {
	return &artifactCreateHandler{sc: h.sc}
}

func (h *artifactCreateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.path = parseRunPath(r)
	body := model.APIArtifact{}
	if err := util.ReadJSONInto(util.NewRequestReader(r), &body); err != nil {
		return errors.Wrap(err, "reading artifact from JSON request body")
	}
	var err error
	if h.artifact, err = body.ToService(); err != nil {
		return badRequest(err)
	}
	return nil
}

func (h *artifactCreateHandler) Run(ctx context.Context) gimlet.Responder {
	t, r, err := h.path.findRun(ctx, h.sc)
	if err != nil {
		return errorResponder(err, "finding run '%s'", h.path.runID)
	}
	h.artifact.InstanceId = r.InstanceId
	h.artifact.TaskId = t.Id

	if err = h.sc.CreateArtifact(ctx, &h.artifact); err != nil {
		return errorResponder(err, "creating artifact '%s'", h.artifact.ArtifactId)
	}
	apiArtifact := model.APIArtifact{}
	apiArtifact.BuildFromService(h.artifact)
	return gimlet.NewJSONResponse(apiArtifact)
}
