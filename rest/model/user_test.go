package model

import (
	"testing"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIUserBuildFromService(t *testing.T) {
	login := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	in := user.User{
		Id:        "auth0|1",
		Email:     "ada@example.com",
		Name:      "Ada",
		LastLogin: login,
		Roles:     []scrapedash.UserRole{scrapedash.UserRoleAdmin},
	}

	api := APIUser{}
	api.BuildFromService(in)
	assert.Equal(t, "auth0|1", utility.FromStringPtr(api.Id))
	assert.Equal(t, "ada@example.com", utility.FromStringPtr(api.Email))
	assert.Nil(t, api.Nickname)
	require.NotNil(t, api.LastLogin)
	assert.True(t, login.Equal(*api.LastLogin))

	out := api.ToService()
	assert.Equal(t, in.Id, out.Id)
	assert.Equal(t, in.Roles, out.Roles)
	assert.True(t, login.Equal(out.LastLogin))

	api = APIUser{}
	api.BuildFromService(user.User{Id: "auth0|2"})
	assert.Nil(t, api.LastLogin)
}

func TestAPIUserValidateUpdate(t *testing.T) {
	for name, test := range map[string]struct {
		update APIUser
		errMsg string
	}{
		"ValidNameAndEmail": {
			update: APIUser{Name: utility.ToStringPtr("Mary-Jane O'Neil"), Email: utility.ToStringPtr("mj@example.com")},
		},
		"InvalidEmail": {
			update: APIUser{Email: utility.ToStringPtr("not-an-email")},
			errMsg: "invalid email",
		},
		"NameTooShort": {
			update: APIUser{Name: utility.ToStringPtr("A")},
			errMsg: "invalid name",
		},
		"NameWithDigits": {
			update: APIUser{Name: utility.ToStringPtr("R2D2")},
			errMsg: "invalid name",
		},
		"BadPicture": {
			update: APIUser{Picture: utility.ToStringPtr("ftp://pics.example.com/a.png")},
			errMsg: "invalid picture URL",
		},
		"WhitespacePictureSkipsURLCheck": {
			update: APIUser{Picture: utility.ToStringPtr("  ")},
		},
		"Empty": {
			update: APIUser{Roles: []scrapedash.UserRole{scrapedash.UserRoleAdmin}},
			errMsg: "at least one field",
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := test.update.ValidateUpdate()
			if test.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.errMsg)
		})
	}
}

func TestAPIUserMatchesSearch(t *testing.T) {
	u := APIUser{
		Email:    utility.ToStringPtr("Carol@Example.com"),
		Name:     utility.ToStringPtr("Carol"),
		Nickname: utility.ToStringPtr("cc"),
	}
	assert.True(t, u.MatchesSearch(""))
	assert.True(t, u.MatchesSearch("EXAMPLE"))
	assert.True(t, u.MatchesSearch(" car "))
	assert.True(t, u.MatchesSearch("cc"))
	assert.False(t, u.MatchesSearch("dave"))
}

func TestAPIRoles(t *testing.T) {
	roles := APIUserRoles{}
	roles.BuildFromService("auth0|1", nil)
	assert.NotNil(t, roles.Roles)
	assert.Empty(t, roles.Roles)

	role, err := (&APIRoleRequest{Role: scrapedash.UserRoleMember}).ToService()
	require.NoError(t, err)
	assert.Equal(t, scrapedash.UserRoleMember, role)

	_, err = (&APIRoleRequest{Role: scrapedash.UserRole(9)}).ToService()
	assert.Error(t, err)
}
