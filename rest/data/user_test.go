package data

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/cache"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/stretchr/testify/suite"
)

type fakeManager struct {
	mu        sync.Mutex
	users     map[string]user.User
	roleCalls atomic.Int64
	err       error
}

func (m *fakeManager) ListUsers(_ context.Context, page, pageSize int) ([]user.User, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []user.User{}
	for i := page * pageSize; i < (page+1)*pageSize && i < len(m.users); i++ {
		id := fmt.Sprintf("user_%d", i)
		out = append(out, user.User{Id: id, Email: m.users[id].Email})
	}
	return out, len(m.users), nil
}

func (m *fakeManager) ListAllUsers(ctx context.Context) ([]user.User, error) {
	users, _, err := m.ListUsers(ctx, 0, len(m.users))
	return users, err
}

func (m *fakeManager) GetUser(_ context.Context, id string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errors.Wrap(db.ErrNotFound, "The user does not exist.")
	}
	return &u, nil
}

func (m *fakeManager) UpdateUser(ctx context.Context, id string, update user.Update) (*user.User, error) {
	m.mu.Lock()
	u, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.Wrapf(db.ErrNotFound, "user '%s'", id)
	}
	update.Apply(&u)
	m.users[id] = u
	m.mu.Unlock()
	return &u, nil
}

func (m *fakeManager) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *fakeManager) ListUserRoles(_ context.Context, id string) ([]scrapedash.UserRole, error) {
	m.roleCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scrapedash.UserRole{}, m.users[id].Roles...), nil
}

func (m *fakeManager) AssignUserRole(_ context.Context, id string, role scrapedash.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	m.users[id] = u
	return nil
}

func (m *fakeManager) RemoveUserRole(_ context.Context, id string, role scrapedash.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	roles := []scrapedash.UserRole{}
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
	m.users[id] = u
	return nil
}

type UserConnectorSuite struct {
	manager *fakeManager
	dc      *DBConnector
	ctx     context.Context
	suite.Suite
}

func TestUserConnectorSuite(t *testing.T) {
	suite.Run(t, new(UserConnectorSuite))
}

func (s *UserConnectorSuite) SetupTest() {
	s.ctx = context.Background()
	s.manager = &fakeManager{users: map[string]user.User{}}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("user_%d", i)
		roles := []scrapedash.UserRole{scrapedash.UserRoleUser}
		if i%5 == 0 {
			roles = append(roles, scrapedash.UserRoleAdmin)
		}
		s.manager.users[id] = user.User{Id: id, Email: id + "@example.com", Roles: roles}
	}
	s.dc = &DBConnector{Identity: s.manager, Caches: cache.New(), RoleFetchLimit: 4}
}

func (s *UserConnectorSuite) TestFindUsersAttachesRoles() {
	users, total, err := s.dc.FindUsers(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.Equal(25, total)
	s.Require().Len(users, 10)
	for i, u := range users {
		s.Equal(fmt.Sprintf("user_%d", i), u.Id)
		s.Contains(u.Roles, scrapedash.UserRoleUser)
	}
	s.Contains(users[0].Roles, scrapedash.UserRoleAdmin)
	s.NotContains(users[1].Roles, scrapedash.UserRoleAdmin)

	users, _, err = s.dc.FindUsers(s.ctx, 3, 10)
	s.Require().NoError(err)
	s.Len(users, 5)
	s.Equal("user_20", users[0].Id)
}

func (s *UserConnectorSuite) TestFindUsersReadsRolesThroughCache() {
	_, _, err := s.dc.FindUsers(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.EqualValues(10, s.manager.roleCalls.Load())

	_, _, err = s.dc.FindUsers(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.EqualValues(10, s.manager.roleCalls.Load())
}

func (s *UserConnectorSuite) TestFindUsersRejectsInvalidPages() {
	_, _, err := s.dc.FindUsers(s.ctx, 0, 10)
	s.Require().Error(err)
	resp, ok := err.(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *UserConnectorSuite) TestFindUsersReportsProviderFailure() {
	s.manager.err = errors.New("provider is down")
	_, _, err := s.dc.FindUsers(s.ctx, 1, 10)
	s.Require().Error(err)
	_, ok := err.(gimlet.ErrorResponse)
	s.False(ok)
	s.Contains(err.Error(), "provider is down")
}

func (s *UserConnectorSuite) TestFindAllUsersAttachesRoles() {
	users, err := s.dc.FindAllUsers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 25)
	for _, u := range users {
		s.Contains(u.Roles, scrapedash.UserRoleUser)
	}
	s.Contains(users[20].Roles, scrapedash.UserRoleAdmin)
	s.EqualValues(25, s.manager.roleCalls.Load())

	s.manager.err = errors.New("provider is down")
	_, err = s.dc.FindAllUsers(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "provider is down")
}

func (s *UserConnectorSuite) TestFindUserById() {
	u, err := s.dc.FindUserById(s.ctx, "user_5")
	s.Require().NoError(err)
	s.Equal("user_5@example.com", u.Email)
	s.ElementsMatch([]scrapedash.UserRole{scrapedash.UserRoleUser, scrapedash.UserRoleAdmin}, u.Roles)

	cached, ok := s.dc.Caches.GetUser("user_5")
	s.True(ok)
	s.Equal(u.Email, cached.Email)

	_, err = s.dc.FindUserById(s.ctx, "nobody")
	s.Require().Error(err)
	resp, ok := err.(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *UserConnectorSuite) TestRoleChangesInvalidateCaches() {
	roles, err := s.dc.UserRoles(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleUser}, roles)
	_, err = s.dc.FindUserById(s.ctx, "user_1")
	s.Require().NoError(err)

	s.Require().NoError(s.dc.AssignUserRole(s.ctx, "user_1", scrapedash.UserRoleMember))
	_, ok := s.dc.Caches.GetRoles("user_1")
	s.False(ok)
	_, ok = s.dc.Caches.GetUser("user_1")
	s.False(ok)

	roles, err = s.dc.UserRoles(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleUser, scrapedash.UserRoleMember}, roles)

	s.Require().NoError(s.dc.RemoveUserRole(s.ctx, "user_1", scrapedash.UserRoleUser))
	roles, err = s.dc.UserRoles(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal([]scrapedash.UserRole{scrapedash.UserRoleMember}, roles)
}

func (s *UserConnectorSuite) TestUnknownRoleIsBadRequest() {
	err := s.dc.AssignUserRole(s.ctx, "user_1", scrapedash.UserRole(9))
	s.Require().Error(err)
	resp, ok := err.(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(resp.Message, "invalid role 9")
}

func (s *UserConnectorSuite) TestUpdateAndDeleteUser() {
	_, err := s.dc.FindUserById(s.ctx, "user_2")
	s.Require().NoError(err)

	name := "Ada Lovelace"
	u, err := s.dc.UpdateUser(s.ctx, "user_2", user.Update{Name: &name})
	s.Require().NoError(err)
	s.Equal(name, u.Name)
	_, ok := s.dc.Caches.GetUser("user_2")
	s.False(ok)

	_, err = s.dc.UpdateUser(s.ctx, "nobody", user.Update{Name: &name})
	s.Require().Error(err)
	resp, ok := err.(gimlet.ErrorResponse)
	s.Require().True(ok)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	s.Require().NoError(s.dc.DeleteUser(s.ctx, "user_2"))
	_, err = s.dc.FindUserById(s.ctx, "user_2")
	s.Error(err)
}
