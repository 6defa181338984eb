package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/model"
	resttestutil "github.com/scrapedash/scrapedash/rest/testutil"
	"github.com/scrapedash/scrapedash/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const clientTestDefinition = `{"type": 2, "source": [{"type": 1, "url": "https://example.com/jobs"}], "target": [{"type": 1, "name": "Text", "value": "title"}], "output": [{"type": 2}], "period": 1}`

type ClientSuite struct {
	sc     *data.MockConnector
	server *httptest.Server
	admin  Client
	member Client
	ctx    context.Context
	cancel context.CancelFunc
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 30*time.Second)
	s.sc = data.NewMockConnector()
	s.sc.Users["auth0|admin"] = user.User{Id: "auth0|admin", Email: "admin@example.com", Name: "Admin", Roles: []scrapedash.UserRole{scrapedash.UserRoleAdmin}}
	s.sc.Users["auth0|member"] = user.User{Id: "auth0|member", Email: "member@example.com", Name: "Member", Roles: []scrapedash.UserRole{scrapedash.UserRoleUser}}

	var err error
	s.server, err = resttestutil.NewTestServerFromConnector(s.sc)
	s.Require().NoError(err)

	s.admin = NewClient(s.server.URL, testutil.TestToken(s.T(), "auth0|admin", scrapedash.UserRoleAdmin))
	s.member = NewClient(s.server.URL, testutil.TestToken(s.T(), "auth0|member", scrapedash.UserRoleUser))
	for _, c := range []Client{s.admin, s.member} {
		c.SetMaxAttempts(2)
		c.SetTimeoutStart(time.Millisecond)
		c.SetTimeoutMax(5 * time.Millisecond)
	}
}

func (s *ClientSuite) TearDownTest() {
	s.admin.Close()
	s.member.Close()
	s.server.Close()
	s.cancel()
}

func (s *ClientSuite) TestHealth() {
	s.NoError(s.admin.Health(s.ctx))
}

func (s *ClientSuite) TestUsers() {
	page, err := s.admin.ListUsers(s.ctx, UserListOptions{Page: 1, PageSize: 10, Sort: "email"})
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)
	s.Require().Len(page.Data, 2)
	s.Equal("admin@example.com", utility.FromStringPtr(page.Data[0].Email))

	page, err = s.admin.ListUsers(s.ctx, UserListOptions{Page: 2, PageSize: 1, All: true, Search: "member"})
	s.Require().NoError(err)
	s.Require().Len(page.Data, 1)
	s.Equal("auth0|member", utility.FromStringPtr(page.Data[0].Id))

	_, err = s.member.ListUsers(s.ctx, UserListOptions{})
	s.Error(err)
	s.False(IsNotFound(err))

	u, err := s.member.GetUser(s.ctx, "auth0|member")
	s.Require().NoError(err)
	s.Equal("Member", utility.FromStringPtr(u.Name))

	u, err = s.member.UpdateUser(s.ctx, "auth0|member", model.APIUser{Nickname: utility.ToStringPtr("mem")})
	s.Require().NoError(err)
	s.Equal("mem", utility.FromStringPtr(u.Nickname))

	_, err = s.admin.GetUser(s.ctx, "auth0|nobody")
	s.True(IsNotFound(err))
}

func (s *ClientSuite) TestRoles() {
	roles, err := s.admin.AssignUserRole(s.ctx, "auth0|member", scrapedash.UserRoleMember)
	s.Require().NoError(err)
	s.ElementsMatch([]scrapedash.UserRole{scrapedash.UserRoleUser, scrapedash.UserRoleMember}, roles.Roles)

	roles, err = s.admin.RemoveUserRole(s.ctx, "auth0|member", scrapedash.UserRoleUser)
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleMember}, roles.Roles)

	roles, err = s.member.GetUserRoles(s.ctx, "auth0|member")
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleMember}, roles.Roles)

	_, err = s.member.AssignUserRole(s.ctx, "auth0|member", scrapedash.UserRoleAdmin)
	s.Error(err)
}

func (s *ClientSuite) TestTaskLifecycle() {
	created, err := s.member.CreateTask(s.ctx, "auth0|member", model.APITask{
		TaskName:       utility.ToStringPtr("jobs"),
		TaskDefinition: model.APIDefinition(clientTestDefinition),
	})
	s.Require().NoError(err)
	taskID := utility.FromStringPtr(created.Id)
	s.NotEmpty(taskID)
	s.Equal("auth0|member", utility.FromStringPtr(created.Owner))

	tasks, err := s.member.ListTasks(s.ctx, "auth0|member")
	s.Require().NoError(err)
	s.Len(tasks, 1)

	all, err := s.admin.ListAllTasks(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)

	updated, err := s.member.UpdateTask(s.ctx, "auth0|member", taskID, model.APITask{
		TaskName:       utility.ToStringPtr("renamed"),
		TaskDefinition: model.APIDefinition(clientTestDefinition),
	})
	s.Require().NoError(err)
	s.Equal("renamed", utility.FromStringPtr(updated.TaskName))

	run, err := s.member.CreateRun(s.ctx, "auth0|member", taskID)
	s.Require().NoError(err)
	runID := utility.FromStringPtr(run.Id)
	s.Equal([]string{runID}, s.sc.ScheduledRuns)

	runs, err := s.member.ListRuns(s.ctx, "auth0|member", taskID)
	s.Require().NoError(err)
	s.Len(runs, 1)

	run, err = s.member.UpdateRun(s.ctx, "auth0|member", taskID, runID, model.APITaskRun{Status: scrapedash.TaskStatusComplete})
	s.Require().NoError(err)
	s.Equal(scrapedash.TaskStatusComplete, run.Status)

	run, err = s.member.GetRun(s.ctx, "auth0|member", taskID, runID)
	s.Require().NoError(err)
	s.Equal(scrapedash.TaskStatusComplete, run.Status)

	artifact, err := s.member.CreateArtifact(s.ctx, "auth0|member", taskID, runID, model.APIArtifact{
		ArtifactId:   utility.ToStringPtr("a1"),
		ArtifactType: utility.ToStringPtr("json"),
	})
	s.Require().NoError(err)
	s.Equal(utility.FromStringPtr(run.InstanceId), utility.FromStringPtr(artifact.InstanceId))

	artifacts, err := s.member.ListArtifacts(s.ctx, "auth0|member", taskID, runID, 1, 10)
	s.Require().NoError(err)
	s.EqualValues(1, artifacts.Total)

	s.Require().NoError(s.member.DeleteTask(s.ctx, "auth0|member", taskID))
	_, err = s.member.GetTask(s.ctx, "auth0|member", taskID)
	s.True(IsNotFound(err))
}

func (s *ClientSuite) TestPreview() {
	resp, err := s.member.PreviewTask(s.ctx, "auth0|member", model.APIPreviewRequest{
		SourceURL:    "https://example.com",
		Keywords:     []string{"jobs"},
		OutputFormat: "JSON",
	})
	s.Require().NoError(err)
	s.Equal([]string{"jobs"}, resp.Keywords)
	s.Equal("JSON", resp.OutputFormat)

	_, err = s.member.PreviewTask(s.ctx, "auth0|member", model.APIPreviewRequest{})
	s.Error(err)
}

func TestRetryRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("ServerErrorsAreRetried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			assert.Equal(t, "/api/v1/healthz", r.URL.Path)
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "token")
		defer c.Close()
		c.SetMaxAttempts(3)
		c.SetTimeoutStart(time.Millisecond)
		c.SetTimeoutMax(2 * time.Millisecond)

		require.NoError(t, c.Health(ctx))
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})
	t.Run("ClientErrorsAreNotRetried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404,"error":"task 't' not found"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		defer c.Close()
		c.SetTimeoutStart(time.Millisecond)

		_, err := c.GetTask(ctx, "u", "t")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "task 't' not found")
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})
	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		defer c.Close()
		c.SetMaxAttempts(2)
		c.SetTimeoutStart(time.Millisecond)
		c.SetTimeoutMax(2 * time.Millisecond)

		err := c.Health(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	})
	t.Run("ClosedClient", func(t *testing.T) {
		c := NewClient("http://localhost:1", "")
		c.Close()
		assert.Error(t, c.Health(ctx))
	})
}
