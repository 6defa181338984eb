package route

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/model"
	"github.com/scrapedash/scrapedash/util"
)

///////////////////////////////////////////////////////////////////////////////
//
// GET /user

type userListHandler struct {
	page     int
	pageSize int
	all      bool
	search   string
	sortKey  string
	desc     bool

	sc data.Connector
}

func makeFetchUsers(sc data.Connector) gimlet.RouteHandler {
	return &userListHandler{sc: sc}
}

func (h *userListHandler) Factory() gimlet.RouteHandler {
	return &userListHandler{sc: h.sc}
}

func (h *userListHandler) Parse(ctx context.Context, r *http.Request) error {
	vals := r.URL.Query()
	var err error
	if h.page, h.pageSize, err = parsePagination(vals); err != nil {
		return err
	}
	if all := vals.Get("all"); all != "" {
		if h.all, err = strconv.ParseBool(all); err != nil {
			return gimlet.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("invalid value '%s' for all", all),
			}
		}
	}
	h.search = strings.TrimSpace(vals.Get("search"))

	h.sortKey = vals.Get("sort")
	if strings.HasPrefix(h.sortKey, "-") {
		h.desc = true
		h.sortKey = h.sortKey[1:]
	}
	switch h.sortKey {
	case "", "email", "name", "last_login":
	default:
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("cannot sort users by '%s'", h.sortKey),
		}
	}
	return nil
}

// Run lists one page of users, or the whole directory when all is set.
// Search and sort apply to the users fetched.
func (h *userListHandler) Run(ctx context.Context) gimlet.Responder {
	var (
		users []user.User
		total int
		err   error
	)
	if h.all {
		users, err = h.sc.FindAllUsers(ctx)
		total = len(users)
	} else {
		users, total, err = h.sc.FindUsers(ctx, h.page, h.pageSize)
	}
	if err != nil {
		return errorResponder(err, "finding users")
	}

	apiUsers := make([]model.APIUser, 0, len(users))
	for _, u := range users {
		apiUser := model.APIUser{}
		apiUser.BuildFromService(u)
		if h.search != "" && !apiUser.MatchesSearch(h.search) {
			continue
		}
		apiUsers = append(apiUsers, apiUser)
	}
	sortUsers(apiUsers, h.sortKey, h.desc)

	return gimlet.NewJSONResponse(model.NewPaginated(total, apiUsers))
}

// sortUsers orders a page of users. Users missing the sort field go last.
func sortUsers(users []model.APIUser, key string, desc bool) {
	if key == "" {
		return
	}
	less := func(a, b model.APIUser) (bool, bool) {
		switch key {
		case "last_login":
			if a.LastLogin == nil || b.LastLogin == nil {
				return false, a.LastLogin == nil && b.LastLogin == nil
			}
			return a.LastLogin.Before(*b.LastLogin), a.LastLogin.Equal(*b.LastLogin)
		case "name":
			return compareFolded(a.Name, b.Name)
		default:
			return compareFolded(a.Email, b.Email)
		}
	}
	missing := func(u model.APIUser) bool {
		switch key {
		case "last_login":
			return u.LastLogin == nil
		case "name":
			return u.Name == nil
		default:
			return u.Email == nil
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		if missing(users[i]) != missing(users[j]) {
			return missing(users[j])
		}
		lt, eq := less(users[i], users[j])
		if eq {
			return false
		}
		if desc {
			return !lt
		}
		return lt
	})
}

func compareFolded(a, b *string) (bool, bool) {
	if a == nil || b == nil {
		return false, a == nil && b == nil
	}
	x, y := strings.ToLower(*a), strings.ToLower(*b)
	return x < y, x == y
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}

type userGetHandler struct {
	userID string

	sc data.Connector
}

func makeFetchUser(sc data.Connector) gimlet.RouteHandler {
	return &userGetHandler{sc: sc}
}

func (h *userGetHandler) Factory() gimlet.RouteHandler {
	return &userGetHandler{sc: h.sc}
}

func (h *userGetHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	return nil
}

func (h *userGetHandler) Run(ctx context.Context) gimlet.Responder {
	u, err := h.sc.FindUserById(ctx, h.userID)
	if err != nil {
		return errorResponder(err, "finding user '%s'", h.userID)
	}
	apiUser := model.APIUser{}
	apiUser.BuildFromService(*u)
	return gimlet.NewJSONResponse(apiUser)
}

///////////////////////////////////////////////////////////////////////////////
//
// PUT /user/{user_id}

type userUpdateHandler struct {
	userID string
	body   model.APIUser

	sc data.Connector
}

func makeUpdateUser(sc data.Connector) gimlet.RouteHandler {
	return &userUpdateHandler{sc: sc}
}

func (h *userUpdateHandler) Factory() gimlet.RouteHandler {
	return &userUpdateHandler{sc: h.sc}
}

func (h *userUpdateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading user update from JSON request body")
	}
	if err := h.body.ValidateUpdate(); err != nil {
		return badRequest(err)
	}
	return nil
}

func (h *userUpdateHandler) Run(ctx context.Context) gimlet.Responder {
	u, err := h.sc.UpdateUser(ctx, h.userID, h.body.ToUpdate())
	if err != nil {
		return errorResponder(err, "updating user '%s'", h.userID)
	}
	apiUser := model.APIUser{}
	apiUser.BuildFromService(*u)
	return gimlet.NewJSONResponse(apiUser)
}

///////////////////////////////////////////////////////////////////////////////
//
// DELETE /user/{user_id}

type userDeleteHandler struct {
	userID string

	sc data.Connector
}

func makeDeleteUser(sc data.Connector) gimlet.RouteHandler {
	return &userDeleteHandler{sc: sc}
}

func (h *userDeleteHandler) Factory() gimlet.RouteHandler {
	return &userDeleteHandler{sc: h.sc}
}

func (h *userDeleteHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	return nil
}

func (h *userDeleteHandler) Run(ctx context.Context) gimlet.Responder {
	if err := h.sc.DeleteUser(ctx, h.userID); err != nil {
		return errorResponder(err, "deleting user '%s'", h.userID)
	}
	return gimlet.NewJSONResponse(struct{}{})
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /user/{user_id}/roles

type userRolesGetHandler struct {
	userID string

	sc data.Connector
}

func makeFetchUserRoles(sc data.Connector) gimlet.RouteHandler {
	return &userRolesGetHandler{sc: sc}
}

func (h *userRolesGetHandler) Factory() gimlet.RouteHandler {
	return &userRolesGetHandler{sc: h.sc}
}

func (h *userRolesGetHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	return nil
}

func (h *userRolesGetHandler) Run(ctx context.Context) gimlet.Responder {
	// resolves 404s for users that don't exist
	if _, err := h.sc.FindUserById(ctx, h.userID); err != nil {
		return errorResponder(err, "finding user '%s'", h.userID)
	}
	return rolesResponse(ctx, h.sc, h.userID)
}

func rolesResponse(ctx context.Context, sc data.Connector, userID string) gimlet.Responder {
	roles, err := sc.UserRoles(ctx, userID)
	if err != nil {
		return errorResponder(err, "listing roles for user '%s'", userID)
	}
	out := model.APIUserRoles{}
	out.BuildFromService(userID, roles)
	return gimlet.NewJSONResponse(out)
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /user/{user_id}/roles
// DELETE /user/{user_id}/roles

type userRoleModifyHandler struct {
	userID string
	remove bool
	body   model.APIRoleRequest

	sc data.Connector
}

func makeAssignUserRole(sc data.Connector) gimlet.RouteHandler {
	return &userRoleModifyHandler{sc: sc}
}

func makeRemoveUserRole(sc data.Connector) gimlet.RouteHandler {
	return &userRoleModifyHandler{sc: sc, remove: true}
}

func (h *userRoleModifyHandler) Factory() gimlet.RouteHandler {
	return &userRoleModifyHandler{sc: h.sc, remove: h.remove}
}

func (h *userRoleModifyHandler) Parse(ctx context.Context, r *http.Request) error {
	h.userID = gimlet.GetVars(r)["user_id"]
	if err := util.ReadJSONInto(util.NewRequestReader(r), &h.body); err != nil {
		return errors.Wrap(err, "reading role from JSON request body")
	}
	if _, err := h.body.ToService(); err != nil {
		return badRequest(err)
	}
	return nil
}

func (h *userRoleModifyHandler) Run(ctx context.Context) gimlet.Responder {
	role, err := h.body.ToService()
	if err != nil {
		return gimlet.MakeJSONErrorResponder(badRequest(err))
	}
	if h.remove {
		err = h.sc.RemoveUserRole(ctx, h.userID, role)
	} else {
		err = h.sc.AssignUserRole(ctx, h.userID, role)
	}
	if err != nil {
		return errorResponder(err, "changing role '%s' for user '%s'", role.String(), h.userID)
	}
	return rolesResponse(ctx, h.sc, h.userID)
}
