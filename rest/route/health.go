package route

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/scrapedash/scrapedash"
)

///////////////////////////////////////////////////////////////////////////////
//
// GET /healthz

type healthResponse struct {
	Status   string `json:"status"`
	Revision string `json:"revision,omitempty"`
}

type healthHandler struct{}

func makeHealthCheck() gimlet.RouteHandler { return &healthHandler{} }

func (h *healthHandler) Factory() gimlet.RouteHandler { return &healthHandler{} }

func (h *healthHandler) Parse(ctx context.Context, r *http.Request) error { return nil }

func (h *healthHandler) Run(ctx context.Context) gimlet.Responder {
	return gimlet.NewJSONResponse(healthResponse{
		Status:   "ok",
		Revision: scrapedash.BuildRevision,
	})
}
