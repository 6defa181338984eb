package route

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/model"
	"github.com/scrapedash/scrapedash/util"
)

///////////////////////////////////////////////////////////////////////////////
//
// POST /{user_id}/task

type taskPreviewHandler struct {
	userID string
	body   model.APIPreviewRequest

	sc data.Connector
}

func makePreviewTask(sc data.Connector) gimlet.RouteHandler {
	return &taskPreviewHandler{sc: sc}
}

func (h *taskPreviewHandler) Factory() gimlet.RouteHandler {
	return &taskPreviewHandler{sc: h.sc}
}

func (h *taskPreviewHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading preview request from JSON request body")
	}
	if err := h.body.ToService().Validate(); err != nil {
		return badRequest(err)
	}
	return nil
}

func (h *taskPreviewHandler) Run(ctx context.Context) gimlet.Responder {
	res, err := h.sc.Preview(ctx, h.body.ToService())
	if err != nil {
		grip.Info(message.WrapError(err, message.Fields{
			"message": "task preview failed",
			"user":    h.userID,
			"source":  h.body.SourceURL,
		}))
		return errorResponder(err, "previewing task '%s'", h.body.TaskName)
	}

	out := model.APIPreviewResponse{}
	out.BuildFromService(*res)
	return gimlet.NewJSONResponse(out)
}

///////////////////////////////////////////////////////////////////////////////
//
// PUT /{user_id}/task/{task_id}/summary

type taskSummaryHandler struct {
	userID string
	taskID string
	body   model.APISummaryRequest

	sc data.Connector
}

func makeSummarizeTask(sc data.Connector) gimlet.RouteHandler {
	return &taskSummaryHandler{sc: sc}
}

func (h *taskSummaryHandler) Factory() gimlet.RouteHandler {
	return &taskSummaryHandler{sc: h.sc}
}

func (h *taskSummaryHandler) Parse(ctx context.Context, r *http.Request) error {
	vars := gimlet.GetVars(r)
	h.userID = vars["user_id"]
	h.taskID = vars["task_id"]
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading summary request from JSON request body")
	}
	return nil
}

func (h *taskSummaryHandler) Run(ctx context.Context) gimlet.Responder {
	t, err := h.sc.FindTaskForOwner(ctx, h.userID, h.taskID)
	if err != nil {
		return errorResponder(err, "finding task '%s'", h.taskID)
	}
	if h.body.TaskDetails != nil && h.body.TaskDetails.TaskDefinition != "" {
		t.TaskDefinition = string(h.body.TaskDetails.TaskDefinition)
	}

	if err = h.sc.SummarizeTask(ctx, t); err != nil {
		return errorResponder(err, "summarizing task '%s'", h.taskID)
	}
	return taskResponse(*t)
}
