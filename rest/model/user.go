package model

import (
	"strings"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/util"
)

// APIUser is the REST view of a user account.
type APIUser struct {
	Id         *string               `json:"user_id,omitempty"`
	Connection *string               `json:"connection,omitempty"`
	Email      *string               `json:"email,omitempty"`
	Name       *string               `json:"name,omitempty"`
	GivenName  *string               `json:"given_name,omitempty"`
	FamilyName *string               `json:"family_name,omitempty"`
	Username   *string               `json:"username,omitempty"`
	Nickname   *string               `json:"nickname,omitempty"`
	ScreenName *string               `json:"screen_name,omitempty"`
	Location   *string               `json:"location,omitempty"`
	LastLogin  *time.Time            `json:"last_login,omitempty"`
	Picture    *string               `json:"picture,omitempty"`
	Roles      []scrapedash.UserRole `json:"roles,omitempty"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return utility.ToStringPtr(s)
}

// BuildFromService converts a user into its REST view.
func (u *APIUser) BuildFromService(in user.User) {
	u.Id = utility.ToStringPtr(in.Id)
	u.Connection = optionalString(in.Connection)
	u.Email = optionalString(in.Email)
	u.Name = optionalString(in.Name)
	u.GivenName = optionalString(in.GivenName)
	u.FamilyName = optionalString(in.FamilyName)
	u.Username = optionalString(in.Username)
	u.Nickname = optionalString(in.Nickname)
	u.ScreenName = optionalString(in.ScreenName)
	u.Location = optionalString(in.Location)
	u.Picture = optionalString(in.Picture)
	if !in.LastLogin.IsZero() {
		u.LastLogin = utility.ToTimePtr(in.LastLogin)
	}
	u.Roles = in.Roles
}

// ToService converts the REST view back into a user.
func (u *APIUser) ToService() user.User {
	return user.User{
		Id:         utility.FromStringPtr(u.Id),
		Connection: utility.FromStringPtr(u.Connection),
		Email:      utility.FromStringPtr(u.Email),
		Name:       utility.FromStringPtr(u.Name),
		GivenName:  utility.FromStringPtr(u.GivenName),
		FamilyName: utility.FromStringPtr(u.FamilyName),
		Username:   utility.FromStringPtr(u.Username),
		Nickname:   utility.FromStringPtr(u.Nickname),
		ScreenName: utility.FromStringPtr(u.ScreenName),
		Location:   utility.FromStringPtr(u.Location),
		LastLogin:  fromTimePtr(u.LastLogin),
		Picture:    utility.FromStringPtr(u.Picture),
		Roles:      u.Roles,
	}
}

// ToUpdate returns the partial update described by the set fields. Roles and
// the login time can't be changed this way.
func (u *APIUser) ToUpdate() user.Update {
	return user.Update{
		Email:      u.Email,
		Name:       u.Name,
		GivenName:  u.GivenName,
		FamilyName: u.FamilyName,
		Username:   u.Username,
		Nickname:   u.Nickname,
		ScreenName: u.ScreenName,
		Location:   u.Location,
		Picture:    u.Picture,
	}
}

// ValidateUpdate checks the fields a user update may set.
func (u *APIUser) ValidateUpdate() error {
	catcher := grip.NewBasicCatcher()
	if u.Email != nil {
		catcher.ErrorfWhen(!util.IsValidEmail(*u.Email), "invalid email '%s'", *u.Email)
	}
	if u.Name != nil {
		catcher.ErrorfWhen(!util.IsValidName(*u.Name), "invalid name '%s'", *u.Name)
	}
	if u.Picture != nil && !util.IsBlank(*u.Picture) {
		catcher.Wrap(util.ValidateHTTPURL(*u.Picture), "invalid picture URL")
	}
	catcher.NewWhen(u.ToUpdate().IsEmpty(), "update must change at least one field")
	return catcher.Resolve()
}

// MatchesSearch returns true if the search term is a case-insensitive
// substring of the user's email, name or nickname.
func (u *APIUser) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []*string{u.Email, u.Name, u.Nickname} {
		if strings.Contains(strings.ToLower(utility.FromStringPtr(field)), term) {
			return true
		}
	}
	return false
}

// APIUserRoles lists the roles held by a user.
type APIUserRoles struct {
	UserId *string               `json:"user_id"`
	Roles  []scrapedash.UserRole `json:"roles"`
}

func (r *APIUserRoles) BuildFromService(userID string, roles []scrapedash.UserRole) {
	r.UserId = utility.ToStringPtr(userID)
	r.Roles = roles
	if r.Roles == nil {
		r.Roles = []scrapedash.UserRole{}
	}
}

// APIRoleRequest is the body of role assignment and removal.
type APIRoleRequest struct {
	Role scrapedash.UserRole `json:"role"`
}

func (r *APIRoleRequest) ToService() (scrapedash.UserRole, error) {
	if err := r.Role.Validate(); err != nil {
		return scrapedash.UserRoleUnknown, errors.WithStack(err)
	}
	return r.Role, nil
}

func fromTimePtr(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
