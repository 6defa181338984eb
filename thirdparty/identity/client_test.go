package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/auth0/go-auth0/management"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type testIdentity struct {
	Connection string `json:"connection"`
}

type testUser struct {
	UserID       string         `json:"user_id"`
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	Identities   []testIdentity `json:"identities,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

type testRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fakeProvider serves the subset of the management API the client uses.
type fakeProvider struct {
	mu          sync.Mutex
	users       []testUser
	userRoles   map[string][]testRole
	roles       []testRole
	roleLookups int
	patches     []map[string]any
	assigned    map[string][]string
	removed     map[string][]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users: []testUser{
			{UserID: "auth0|1", Email: "one@example.com", Name: "One", Identities: []testIdentity{{Connection: "Username-Password-Authentication"}}},
			{UserID: "auth0|2", Email: "two@example.com", Name: "Two", UserMetadata: map[string]any{"location": "Berlin"}},
			{UserID: "auth0|3", Email: "three@example.com", Name: "Three"},
		},
		roles: []testRole{
			{ID: "rol_user", Name: "user"},
			{ID: "rol_member", Name: "member"},
			{ID: "rol_admin", Name: "admin"},
		},
		userRoles: map[string][]testRole{},
		assigned:  map[string][]string{},
		removed:   map[string][]string{},
	}
}

func writeJSON(rw http.ResponseWriter, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(body)
}

// pageBounds returns the slice bounds for a zero-indexed page.
func pageBounds(r *http.Request, n int) (int, int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage == 0 {
		perPage = 50
	}
	start := page * perPage
	if start > n {
		start = n
	}
	end := start + perPage
	if end > n {
		end = n
	}
	return start, end, perPage
}

func (f *fakeProvider) findUser(id string) *testUser {
	for i := range f.users {
		if f.users[i].UserID == id {
			return &f.users[i]
		}
	}
	return nil
}

func (f *fakeProvider) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v2")
	switch {
	case path == "/users" && r.Method == http.MethodGet:
		start, end, perPage := pageBounds(r, len(f.users))
		writeJSON(rw, http.StatusOK, map[string]any{
			"start":  start,
			"limit":  perPage,
			"length": end - start,
			"total":  len(f.users),
			"users":  f.users[start:end],
		})
	case path == "/roles":
		f.roleLookups++
		out := []testRole{}
		for _, role := range f.roles {
			if role.Name == r.URL.Query().Get("name_filter") {
				out = append(out, role)
			}
		}
		writeJSON(rw, http.StatusOK, map[string]any{"start": 0, "limit": 50, "length": len(out), "total": len(out), "roles": out})
	case strings.HasPrefix(path, "/users/"):
		rest := strings.TrimPrefix(path, "/users/")
		escapedID, suffix, _ := strings.Cut(rest, "/")
		id, _ := url.PathUnescape(escapedID)
		u := f.findUser(id)
		if u == nil {
			writeJSON(rw, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "message": "The user does not exist.", "errorCode": "inexistent_user"})
			return
		}
		f.serveUser(rw, r, u, suffix)
	default:
		writeJSON(rw, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "message": "no route"})
	}
}

func (f *fakeProvider) serveUser(rw http.ResponseWriter, r *http.Request, u *testUser, suffix string) {
	switch {
	case suffix == "" && r.Method == http.MethodGet:
		writeJSON(rw, http.StatusOK, u)
	case suffix == "" && r.Method == http.MethodPatch:
		patch := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.patches = append(f.patches, patch)
		if name, ok := patch["name"].(string); ok {
			u.Name = name
		}
		if email, ok := patch["email"].(string); ok {
			u.Email = email
		}
		if metadata, ok := patch["user_metadata"].(map[string]any); ok {
			u.UserMetadata = metadata
		}
		writeJSON(rw, http.StatusOK, u)
	case suffix == "" && r.Method == http.MethodDelete:
		rw.WriteHeader(http.StatusNoContent)
	case suffix == "roles" && r.Method == http.MethodGet:
		all := f.userRoles[u.UserID]
		start, end, perPage := pageBounds(r, len(all))
		writeJSON(rw, http.StatusOK, map[string]any{
			"start":  start,
			"limit":  perPage,
			"length": end - start,
			"total":  len(all),
			"roles":  all[start:end],
		})
	case suffix == "roles" && (r.Method == http.MethodPost || r.Method == http.MethodDelete):
		body := struct {
			Roles []string `json:"roles"`
		}{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.Method == http.MethodPost {
			f.assigned[u.UserID] = append(f.assigned[u.UserID], body.Roles...)
		} else {
			f.removed[u.UserID] = append(f.removed[u.UserID], body.Roles...)
		}
		rw.WriteHeader(http.StatusNoContent)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type ClientSuite struct {
	provider *fakeProvider
	server   *httptest.Server
	client   *Client
	ctx      context.Context
	cancel   context.CancelFunc
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.provider = newFakeProvider()
	s.server = httptest.NewServer(s.provider)

	var err error
	s.client, err = newClient(s.server.URL,
		management.WithInsecure(),
		management.WithClient(s.server.Client()),
		management.WithNoRetries(),
	)
	s.Require().NoError(err)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
}

func (s *ClientSuite) TestListUsersPage() {
	users, total, err := s.client.ListUsers(s.ctx, 1, 2)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(users, 1)
	s.Equal("auth0|3", users[0].Id)
}

func (s *ClientSuite) TestListAllUsersFollowsPages() {
	s.provider.users = nil
	for i := 0; i < scrapedash.DefaultIdentityRolePageSize+5; i++ {
		s.provider.users = append(s.provider.users, testUser{UserID: "auth0|u" + strconv.Itoa(i)})
	}
	users, err := s.client.ListAllUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, scrapedash.DefaultIdentityRolePageSize+5)
	s.Equal("auth0|u0", users[0].Id)
}

func (s *ClientSuite) TestGetUserMapsFields() {
	u, err := s.client.GetUser(s.ctx, "auth0|1")
	s.Require().NoError(err)
	s.Equal("one@example.com", u.Email)
	s.Equal("Username-Password-Authentication", u.Connection)

	u, err = s.client.GetUser(s.ctx, "auth0|2")
	s.Require().NoError(err)
	s.Equal("Berlin", u.Location)
}

func (s *ClientSuite) TestMissingUserIsNotFound() {
	_, err := s.client.GetUser(s.ctx, "auth0|missing")
	s.Require().Error(err)
	s.True(db.ResultsNotFound(err))
	s.True(IsNotFound(err))
	s.Contains(err.Error(), "The user does not exist.")

	err = s.client.DeleteUser(s.ctx, "auth0|missing")
	s.True(db.ResultsNotFound(err))
}

func (s *ClientSuite) TestUpdateUserSendsOnlyChangedFields() {
	name := "Uno"
	location := "Lisbon"
	u, err := s.client.UpdateUser(s.ctx, "auth0|1", user.Update{Name: &name, Location: &location})
	s.Require().NoError(err)
	s.Equal("Uno", u.Name)
	s.Equal("Lisbon", u.Location)

	s.Require().Len(s.provider.patches, 1)
	patch := s.provider.patches[0]
	s.Equal("Uno", patch["name"])
	s.NotContains(patch, "email")
	s.Equal(map[string]any{"location": "Lisbon"}, patch["user_metadata"])
}

func (s *ClientSuite) TestEmptyUpdateDoesNotPatch() {
	u, err := s.client.UpdateUser(s.ctx, "auth0|1", user.Update{})
	s.Require().NoError(err)
	s.Equal("One", u.Name)
	s.Empty(s.provider.patches)
}

func (s *ClientSuite) TestDeleteUser() {
	s.NoError(s.client.DeleteUser(s.ctx, "auth0|2"))
}

func (s *ClientSuite) TestListUserRolesPagesAndDropsUnknown() {
	var roles []testRole
	for i := 0; i < scrapedash.DefaultIdentityRolePageSize; i++ {
		roles = append(roles, testRole{ID: "rol_x" + strconv.Itoa(i), Name: "custom"})
	}
	roles = append(roles, testRole{ID: "rol_admin", Name: "admin"}, testRole{ID: "rol_member", Name: "member"})
	s.provider.userRoles["auth0|1"] = roles

	held, err := s.client.ListUserRoles(s.ctx, "auth0|1")
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleAdmin, scrapedash.UserRoleMember}, held)
}

func (s *ClientSuite) TestListUserRolesWithoutRoles() {
	held, err := s.client.ListUserRoles(s.ctx, "auth0|3")
	s.Require().NoError(err)
	s.NotNil(held)
	s.Empty(held)
}

func (s *ClientSuite) TestAssignAndRemoveRoleUseProviderIDs() {
	s.Require().NoError(s.client.AssignUserRole(s.ctx, "auth0|1", scrapedash.UserRoleAdmin))
	s.Require().NoError(s.client.RemoveUserRole(s.ctx, "auth0|1", scrapedash.UserRoleAdmin))

	s.Equal([]string{"rol_admin"}, s.provider.assigned["auth0|1"])
	s.Equal([]string{"rol_admin"}, s.provider.removed["auth0|1"])
	s.Equal(1, s.provider.roleLookups)
}

func (s *ClientSuite) TestRolesListedBeforeAssignmentSkipLookup() {
	s.provider.userRoles["auth0|1"] = []testRole{{ID: "rol_member", Name: "member"}}
	_, err := s.client.ListUserRoles(s.ctx, "auth0|1")
	s.Require().NoError(err)

	s.Require().NoError(s.client.AssignUserRole(s.ctx, "auth0|1", scrapedash.UserRoleMember))
	s.Equal([]string{"rol_member"}, s.provider.assigned["auth0|1"])
	s.Zero(s.provider.roleLookups)
}

func (s *ClientSuite) TestUndefinedProviderRole() {
	s.provider.roles = nil
	err := s.client.AssignUserRole(s.ctx, "auth0|1", scrapedash.UserRoleAdmin)
	s.Require().Error(err)
	s.Contains(err.Error(), "role 'admin' is not defined")
}

func (s *ClientSuite) TestInvalidRole() {
	err := s.client.AssignUserRole(s.ctx, "auth0|1", scrapedash.UserRole(9))
	s.Require().Error(err)
	s.Equal("invalid role 9", err.Error())

	err = s.client.RemoveUserRole(s.ctx, "auth0|1", scrapedash.UserRoleUnknown)
	s.Require().Error(err)
	s.Equal("invalid role 0", err.Error())
}

func TestNewManagerFallsBackToLocalDirectory(t *testing.T) {
	m, err := NewManager(context.Background(), scrapedash.IdentityConfig{})
	require.NoError(t, err)
	_, ok := m.(user.DBManager)
	assert.True(t, ok)

	conf := scrapedash.IdentityConfig{Domain: "tenant.example.com", ClientID: "id", ClientSecret: "secret"}
	require.NoError(t, conf.ValidateAndDefault())
	m, err = NewManager(context.Background(), conf)
	require.NoError(t, err)
	_, ok = m.(*Client)
	assert.True(t, ok)
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsNotFound(errors.Wrap(db.ErrNotFound, "user 'x'")))
}

func TestRoleNames(t *testing.T) {
	for _, role := range scrapedash.ValidUserRoles {
		name, ok := roleName(role)
		require.True(t, ok)
		assert.Equal(t, role, roleFromName(name))
	}
	_, ok := roleName(scrapedash.UserRoleUnknown)
	assert.False(t, ok)
	assert.Equal(t, scrapedash.UserRoleUnknown, roleFromName("owner"))
}
