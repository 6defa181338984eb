package route

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/gorilla/handlers"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/auth"
	"github.com/scrapedash/scrapedash/rest/data"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiPrefix  = "/api"
	apiVersion = 1
)

// AttachHandler registers every API route on the app. All routes except the
// health check require a valid bearer token.
func AttachHandler(app *gimlet.APIApp, sc data.Connector, validator auth.TokenValidator) {
	authenticate := auth.NewAuthenticationMiddleware(validator)
	requireAdmin := auth.NewRequireRoleMiddleware(sc, scrapedash.UserRoleAdmin)
	selfOrAdmin := auth.NewSelfOrAdminMiddleware(sc)

	app.AddRoute("/healthz").Version(apiVersion).Get().RouteHandler(makeHealthCheck())

	app.AddRoute("/user").Version(apiVersion).Get().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeFetchUsers(sc))
	app.AddRoute("/user/{user_id}").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchUser(sc))
	app.AddRoute("/user/{user_id}").Version(apiVersion).Put().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeUpdateUser(sc))
	app.AddRoute("/user/{user_id}").Version(apiVersion).Delete().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeDeleteUser(sc))
	app.AddRoute("/user/{user_id}/roles").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchUserRoles(sc))
	app.AddRoute("/user/{user_id}/roles").Version(apiVersion).Post().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeAssignUserRole(sc))
	app.AddRoute("/user/{user_id}/roles").Version(apiVersion).Delete().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeRemoveUserRole(sc))

	app.AddRoute("/task").Version(apiVersion).Get().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeFetchAllTasks(sc))
	app.AddRoute("/user/{user_id}/task").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchUserTasks(sc))
	app.AddRoute("/user/{user_id}/task").Version(apiVersion).Post().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeCreateTask(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchTask(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}").Version(apiVersion).Put().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeUpdateTask(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}").Version(apiVersion).Delete().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeDeleteTask(sc))

	app.AddRoute("/user/{user_id}/task/{task_id}/run").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchTaskRuns(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}/run").Version(apiVersion).Post().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeCreateTaskRun(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}/run/{run_id}").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchTaskRun(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}/run/{run_id}").Version(apiVersion).Put().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeUpdateTaskRun(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}/run/{run_id}/artifact").Version(apiVersion).Get().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeFetchRunArtifacts(sc))
	app.AddRoute("/user/{user_id}/task/{task_id}/run/{run_id}/artifact").Version(apiVersion).Post().Wrap(authenticate).Wrap(requireAdmin).RouteHandler(makeCreateRunArtifact(sc))

	app.AddRoute("/{user_id}/task").Version(apiVersion).Post().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makePreviewTask(sc))
	app.AddRoute("/{user_id}/task/{task_id}/summary").Version(apiVersion).Put().Wrap(authenticate).Wrap(selfOrAdmin).RouteHandler(makeSummarizeTask(sc))
}

// NewApp returns the API application, reachable both under /api and
// /api/v1.
func NewApp(sc data.Connector, validator auth.TokenValidator) *gimlet.APIApp {
	app := gimlet.NewApp()
	app.SetPrefix(apiPrefix)
	app.SetDefaultVersion(apiVersion)
	app.AddMiddleware(gimlet.MakeRecoveryLogger())
	app.AddMiddleware(gimlet.NewAppLogger())
	AttachHandler(app, sc, validator)
	return app
}

// NewHandler resolves the API application and wraps it for browsers and
// tracing.
func NewHandler(conf scrapedash.APIConfig, sc data.Connector, validator auth.TokenValidator) (http.Handler, error) {
	h, err := NewApp(sc, validator).Handler()
	if err != nil {
		return nil, errors.Wrap(err, "resolving API routes")
	}

	origins := conf.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)

	return otelhttp.NewHandler(h, "scrapedash-api"), nil
}
