package route

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/model"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testDefinition = `{"type": 2, "source": [{"type": 1, "url": "https://example.com/jobs"}], "target": [{"type": 1, "name": "Text", "value": "title"}], "output": [{"type": 2}], "period": 1}`

type TaskRouteSuite struct {
	sc  *data.MockConnector
	ctx context.Context
	suite.Suite
}

func TestTaskRouteSuite(t *testing.T) {
	suite.Run(t, new(TaskRouteSuite))
}

func (s *TaskRouteSuite) SetupTest() {
	s.ctx = context.Background()
	s.sc = data.NewMockConnector()
}

func (s *TaskRouteSuite) createTask(owner, body string) gimlet.Responder {
	h := makeCreateTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/"+owner+"/task", body, map[string]string{"user_id": owner})))
	return h.Run(s.ctx)
}

func (s *TaskRouteSuite) newTask(owner string) model.APITask {
	resp := s.createTask(owner, `{"task_name": "jobs", "task_definition": `+testDefinition+`}`)
	s.Require().Equal(http.StatusCreated, resp.Status())
	t, ok := resp.Data().(model.APITask)
	s.Require().True(ok)
	return t
}

func (s *TaskRouteSuite) TestCreateTask() {
	t := s.newTask("u1")
	s.NotEmpty(utility.FromStringPtr(t.Id))
	s.Equal("u1", utility.FromStringPtr(t.Owner))
	s.Equal(scrapedash.TaskStatusCreated, t.Status)
	s.JSONEq(testDefinition, string(t.TaskDefinition))

	stored := s.sc.Tasks[utility.FromStringPtr(t.Id)]
	s.Equal(scrapedash.TaskPeriodSingle, stored.Period)
}

func (s *TaskRouteSuite) TestCreateTaskIgnoresClientOwner() {
	resp := s.createTask("u1", `{"task_name": "jobs", "owner": "u2", "id": "chosen", "task_definition": `+testDefinition+`}`)
	s.Require().Equal(http.StatusCreated, resp.Status())
	t := resp.Data().(model.APITask)
	s.Equal("u1", utility.FromStringPtr(t.Owner))
	s.NotEqual("chosen", utility.FromStringPtr(t.Id))
}

func (s *TaskRouteSuite) TestCreateTaskWithStringDefinition() {
	resp := s.createTask("u1", `{"task_name": "jobs", "task_definition": "{\"type\": 2, \"source\": [{\"type\": 1, \"url\": \"https://example.com\"}], \"target\": [{\"type\": 1, \"value\": \"title\"}], \"output\": [{\"type\": 1}], \"period\": 1}"}`)
	s.Equal(http.StatusCreated, resp.Status())
}

func (s *TaskRouteSuite) TestCreateTaskRejectsInvalidDefinition() {
	resp := s.createTask("u1", `{"task_name": "jobs", "task_definition": {"type": 2, "source": [{"type": 1, "url": "not a url"}], "target": [{"type": 1, "value": "title"}], "output": [{"type": 1}], "period": 1}}`)
	s.Equal(http.StatusBadRequest, resp.Status())
	errResp, ok := resp.Data().(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Contains(errResp.Message, "invalid URL")
	s.Empty(s.sc.Tasks)

	h := makeCreateTask(s.sc)
	err := h.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task", `{"task_definition": `+testDefinition+`}`, map[string]string{"user_id": "u1"}))
	s.Error(err)
}

func (s *TaskRouteSuite) TestListTasks() {
	s.newTask("u1")
	s.newTask("u1")
	s.newTask("u2")

	h := makeFetchUserTasks(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task", "", map[string]string{"user_id": "u1"})))
	resp := h.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	s.Len(resp.Data().([]model.APITask), 2)

	h = makeFetchUserTasks(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u3/task", "", map[string]string{"user_id": "u3"})))
	resp = h.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	s.NotNil(resp.Data().([]model.APITask))
	s.Empty(resp.Data().([]model.APITask))

	all := makeFetchAllTasks(s.sc)
	s.Require().NoError(all.Parse(s.ctx, newRequest(http.MethodGet, "/api/task", "", nil)))
	resp = all.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	s.Len(resp.Data().([]model.APITask), 3)
}

func (s *TaskRouteSuite) TestForeignTaskIsNotFound() {
	t := s.newTask("u1")
	vars := map[string]string{"user_id": "u2", "task_id": utility.FromStringPtr(t.Id)}

	get := makeFetchTask(s.sc)
	s.Require().NoError(get.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u2/task/x", "", vars)))
	s.Equal(http.StatusNotFound, get.Run(s.ctx).Status())

	update := makeUpdateTask(s.sc)
	s.Require().NoError(update.Parse(s.ctx, newRequest(http.MethodPut, "/api/user/u2/task/x", `{"task_name": "mine"}`, vars)))
	s.Equal(http.StatusNotFound, update.Run(s.ctx).Status())

	del := makeDeleteTask(s.sc)
	s.Require().NoError(del.Parse(s.ctx, newRequest(http.MethodDelete, "/api/user/u2/task/x", "", vars)))
	s.Equal(http.StatusNotFound, del.Run(s.ctx).Status())

	runs := makeFetchTaskRuns(s.sc)
	s.Require().NoError(runs.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u2/task/x/run", "", vars)))
	s.Equal(http.StatusNotFound, runs.Run(s.ctx).Status())
}

func (s *TaskRouteSuite) TestUpdateAndDeleteTask() {
	t := s.newTask("u1")
	vars := map[string]string{"user_id": "u1", "task_id": utility.FromStringPtr(t.Id)}

	update := makeUpdateTask(s.sc)
	s.Require().NoError(update.Parse(s.ctx, newRequest(http.MethodPut, "/api/user/u1/task/x", `{"task_name": "renamed", "owner": "u2"}`, vars)))
	resp := update.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	updated := resp.Data().(model.APITask)
	s.Equal("renamed", utility.FromStringPtr(updated.TaskName))
	s.Equal("u1", utility.FromStringPtr(updated.Owner))

	update = makeUpdateTask(s.sc)
	s.Require().NoError(update.Parse(s.ctx, newRequest(http.MethodPut, "/api/user/u1/task/x", `{"task_definition": {"type": 2}}`, vars)))
	s.Equal(http.StatusBadRequest, update.Run(s.ctx).Status())

	del := makeDeleteTask(s.sc)
	s.Require().NoError(del.Parse(s.ctx, newRequest(http.MethodDelete, "/api/user/u1/task/x", "", vars)))
	s.Equal(http.StatusOK, del.Run(s.ctx).Status())

	get := makeFetchTask(s.sc)
	s.Require().NoError(get.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task/x", "", vars)))
	s.Equal(http.StatusNotFound, get.Run(s.ctx).Status())
}

func (s *TaskRouteSuite) TestRuns() {
	t := s.newTask("u1")
	vars := map[string]string{"user_id": "u1", "task_id": utility.FromStringPtr(t.Id)}

	create := makeCreateTaskRun(s.sc)
	s.Require().NoError(create.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run", "", vars)))
	resp := create.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	run := resp.Data().(model.APITaskRun)
	s.Equal(scrapedash.TaskRunTypeSingle, run.Type)
	s.Equal(scrapedash.TaskStatusCreated, run.Status)
	s.Equal([]string{utility.FromStringPtr(run.Id)}, s.sc.ScheduledRuns)

	list := makeFetchTaskRuns(s.sc)
	s.Require().NoError(list.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task/x/run", "", vars)))
	resp = list.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	s.Len(resp.Data().([]model.APITaskRun), 1)

	runVars := map[string]string{"user_id": "u1", "task_id": utility.FromStringPtr(t.Id), "run_id": utility.FromStringPtr(run.Id)}
	update := makeUpdateTaskRun(s.sc)
	s.Require().NoError(update.Parse(s.ctx, newRequest(http.MethodPut, "/api/user/u1/task/x/run/y", `{"status": 4, "error_message": "page moved"}`, runVars)))
	resp = update.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	updated := resp.Data().(model.APITaskRun)
	s.Equal(scrapedash.TaskStatusFailed, updated.Status)
	s.Equal("page moved", utility.FromStringPtr(updated.ErrorMessage))

	get := makeFetchTaskRun(s.sc)
	runVars["run_id"] = "missing"
	s.Require().NoError(get.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task/x/run/missing", "", runVars)))
	s.Equal(http.StatusNotFound, get.Run(s.ctx).Status())
}

func (s *TaskRouteSuite) TestRunningTaskCannotStartAnotherRun() {
	t := s.newTask("u1")
	stored := s.sc.Tasks[utility.FromStringPtr(t.Id)]
	stored.Status = scrapedash.TaskStatusRunning
	s.sc.Tasks[stored.Id] = stored

	create := makeCreateTaskRun(s.sc)
	s.Require().NoError(create.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run", "", map[string]string{"user_id": "u1", "task_id": stored.Id})))
	s.Equal(http.StatusBadRequest, create.Run(s.ctx).Status())
	s.Empty(s.sc.ScheduledRuns)
}

func (s *TaskRouteSuite) TestSecondRunWhilePendingIsRejected() {
	t := s.newTask("u1")
	vars := map[string]string{"user_id": "u1", "task_id": utility.FromStringPtr(t.Id)}

	first := makeCreateTaskRun(s.sc)
	s.Require().NoError(first.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run", "", vars)))
	s.Require().Equal(http.StatusOK, first.Run(s.ctx).Status())
	s.Equal(scrapedash.TaskStatusPending, s.sc.Tasks[utility.FromStringPtr(t.Id)].Status)

	second := makeCreateTaskRun(s.sc)
	s.Require().NoError(second.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run", "", vars)))
	resp := second.Run(s.ctx)
	s.Equal(http.StatusBadRequest, resp.Status())
	errResp, ok := resp.Data().(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Contains(errResp.Message, "already running or pending")
	s.Len(s.sc.ScheduledRuns, 1)
	s.Len(s.sc.Runs, 1)
}

func (s *TaskRouteSuite) TestArtifacts() {
	t := s.newTask("u1")
	taskID := utility.FromStringPtr(t.Id)
	r := &task.Run{}
	s.Require().NoError(s.sc.CreateRun(s.ctx, &task.Task{Id: taskID}, r))
	vars := map[string]string{"user_id": "u1", "task_id": taskID, "run_id": r.Id}

	for i, artifactType := range []string{"result", "result", "screenshot"} {
		h := makeCreateRunArtifact(s.sc)
		body := `{"artifact_type": "` + artifactType + `", "created_at": "2024-03-01T10:0` + string(rune('0'+i)) + `:00Z"}`
		s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run/y/artifact", body, vars)))
		resp := h.Run(s.ctx)
		s.Require().Equal(http.StatusOK, resp.Status())
		created := resp.Data().(model.APIArtifact)
		s.Equal(r.InstanceId, utility.FromStringPtr(created.InstanceId))
		s.Equal(taskID, utility.FromStringPtr(created.TaskId))
	}

	h := makeCreateRunArtifact(s.sc)
	err := h.Parse(s.ctx, newRequest(http.MethodPost, "/api/user/u1/task/x/run/y/artifact", `{"url": "s3://bucket/key"}`, vars))
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, err.(gimlet.ErrorResponse).StatusCode)

	list := makeFetchRunArtifacts(s.sc)
	s.Require().NoError(list.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task/x/run/y/artifact?page=1&pageSize=2", "", vars)))
	resp := list.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	page := resp.Data().(model.APIPaginated[model.APIArtifact])
	s.EqualValues(3, page.Total)
	s.Require().Len(page.Data, 2)
	s.Equal("screenshot", utility.FromStringPtr(page.Data[0].ArtifactType))
	s.True(page.Data[0].CreatedAt.After(*page.Data[1].CreatedAt))

	list = makeFetchRunArtifacts(s.sc)
	err = list.Parse(s.ctx, newRequest(http.MethodGet, "/api/user/u1/task/x/run/y/artifact?page=0", "", vars))
	s.Require().Error(err)
}

func (s *TaskRouteSuite) TestPreview() {
	s.sc.PreviewResult = &scrape.Result{
		Message:      scrape.PreviewMessage,
		CleanedText:  "Widgets\nBlue widget",
		Keywords:     []string{"title"},
		DataTypes:    []string{"Text"},
		Preview:      "title\nBlue widget\n",
		FullResponse: "title\nBlue widget\nRed widget\n",
		OutputFormat: scrapedash.OutputFormatCSV,
	}
	body := `{"taskName": "widgets", "sourceURL": "https://example.com", "keywords": ["title"], "outputFormat": "CSV", "dataTypes": ["Text"]}`

	h := makePreviewTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPost, "/api/u1/task", body, map[string]string{"user_id": "u1"})))
	resp := h.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())
	out := resp.Data().(model.APIPreviewResponse)
	s.Equal("Task received successfully", out.Message)
	s.Equal("title\nBlue widget\n", out.GPTResponse)
	s.Equal("title\nBlue widget\nRed widget\n", out.GPTFullResponse)
	s.Equal("CSV", out.OutputFormat)

	s.sc.PreviewErr = errors.New("failed to retrieve the page")
	h = makePreviewTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPost, "/api/u1/task", body, map[string]string{"user_id": "u1"})))
	s.Equal(http.StatusInternalServerError, h.Run(s.ctx).Status())
}

func (s *TaskRouteSuite) TestSummary() {
	t := s.newTask("u1")
	vars := map[string]string{"user_id": "u1", "task_id": utility.FromStringPtr(t.Id)}
	s.sc.Summary = "Two widgets are listed."

	h := makeSummarizeTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPut, "/api/u1/task/x/summary", "", vars)))
	resp := h.Run(s.ctx)
	s.Require().Equal(http.StatusBadRequest, resp.Status())
	s.Contains(resp.Data().(gimlet.ErrorResponse).Message, "Full response not found")

	withResult := `{"TaskDetails": {"task_definition": {"type": 2, "source": [{"type": 1, "url": "https://example.com/jobs"}], "target": [{"type": 1, "value": "title"}], "output": [{"type": 2}, {"type": 3, "name": "result", "value": "title\nBlue widget"}], "period": 1}}}`
	h = makeSummarizeTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPut, "/api/u1/task/x/summary", withResult, vars)))
	resp = h.Run(s.ctx)
	s.Require().Equal(http.StatusOK, resp.Status())

	def, err := task.ParseDefinition(string(resp.Data().(model.APITask).TaskDefinition))
	s.Require().NoError(err)
	summary := def.FindOutput(task.SummaryOutputName)
	s.Require().NotNil(summary)
	s.Equal("Two widgets are listed.", summary.Value)
}

func (s *TaskRouteSuite) TestSummaryRejectsInvalidDefinition() {
	t := s.newTask("u1")
	id := utility.FromStringPtr(t.Id)
	vars := map[string]string{"user_id": "u1", "task_id": id}
	s.sc.Summary = "Two widgets are listed."

	invalid := `{"TaskDetails": {"task_definition": {"output": [{"type": 2}, {"type": 3, "name": "result", "value": "x"}], "period": 0}}}`
	h := makeSummarizeTask(s.sc)
	s.Require().NoError(h.Parse(s.ctx, newRequest(http.MethodPut, "/api/u1/task/x/summary", invalid, vars)))
	resp := h.Run(s.ctx)
	s.Require().Equal(http.StatusBadRequest, resp.Status())
	msg := resp.Data().(gimlet.ErrorResponse).Message
	s.Contains(msg, "at least one URL source")
	s.Contains(msg, "invalid task period 0")

	s.JSONEq(testDefinition, s.sc.Tasks[id].TaskDefinition)
}

func TestParsePagination(t *testing.T) {
	for query, expected := range map[string][2]int{
		"":                     {1, scrapedash.DefaultPageSize},
		"page=3":               {3, scrapedash.DefaultPageSize},
		"page=2&pageSize=25":   {2, 25},
		"pageSize=101":         {1, scrapedash.MaxPageSize},
		"page=1&pageSize=1000": {1, scrapedash.MaxPageSize},
	} {
		r := newRequest(http.MethodGet, "/api/user?"+query, "", nil)
		page, size, err := parsePagination(r.URL.Query())
		require.NoError(t, err, query)
		assert.Equal(t, expected[0], page, query)
		assert.Equal(t, expected[1], size, query)
	}
}

func TestSortUsersPutsMissingFieldsLast(t *testing.T) {
	login := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	users := []model.APIUser{
		{Id: utility.ToStringPtr("never")},
		{Id: utility.ToStringPtr("early"), LastLogin: utility.ToTimePtr(login)},
		{Id: utility.ToStringPtr("late"), LastLogin: utility.ToTimePtr(login.Add(time.Hour))},
	}
	sortUsers(users, "last_login", true)
	assert.Equal(t, "late", utility.FromStringPtr(users[0].Id))
	assert.Equal(t, "early", utility.FromStringPtr(users[1].Id))
	assert.Equal(t, "never", utility.FromStringPtr(users[2].Id))
}
