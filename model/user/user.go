package user

import (
	"time"

	"github.com/scrapedash/scrapedash"
)

// User is an account in the local user directory. The identity provider
// keeps the same shape for its users.
type User struct {
	Id         string                `bson:"_id" json:"user_id"`
	Connection string                `bson:"connection,omitempty" json:"connection,omitempty"`
	Email      string                `bson:"email" json:"email"`
	Name       string                `bson:"name" json:"name"`
	GivenName  string                `bson:"given_name,omitempty" json:"given_name,omitempty"`
	FamilyName string                `bson:"family_name,omitempty" json:"family_name,omitempty"`
	Username   string                `bson:"username,omitempty" json:"username,omitempty"`
	Nickname   string                `bson:"nickname,omitempty" json:"nickname,omitempty"`
	ScreenName string                `bson:"screen_name,omitempty" json:"screen_name,omitempty"`
	Location   string                `bson:"location,omitempty" json:"location,omitempty"`
	LastLogin  time.Time             `bson:"last_login,omitempty" json:"last_login,omitempty"`
	Picture    string                `bson:"picture,omitempty" json:"picture,omitempty"`
	Roles      []scrapedash.UserRole `bson:"roles" json:"roles,omitempty"`
	CreatedAt  time.Time             `bson:"created_at" json:"created_at"`
}

// HasRole returns true if the user holds the given role.
func (u *User) HasRole(role scrapedash.UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Id
}

// Update holds a partial update to a user. Nil fields are left unchanged.
type Update struct {
	Email      *string
	Name       *string
	GivenName  *string
	FamilyName *string
	Username   *string
	Nickname   *string
	ScreenName *string
	Location   *string
	Picture    *string
}

// IsEmpty returns true if the update doesn't change any field.
func (u Update) IsEmpty() bool {
	return u.Email == nil && u.Name == nil && u.GivenName == nil && u.FamilyName == nil &&
		u.Username == nil && u.Nickname == nil && u.ScreenName == nil && u.Location == nil && u.Picture == nil
}

// Apply copies the set fields of the update onto the user.
func (u Update) Apply(usr *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&usr.Email, u.Email)
	set(&usr.Name, u.Name)
	set(&usr.GivenName, u.GivenName)
	set(&usr.FamilyName, u.FamilyName)
	set(&usr.Username, u.Username)
	set(&usr.Nickname, u.Nickname)
	set(&usr.ScreenName, u.ScreenName)
	set(&usr.Location, u.Location)
	set(&usr.Picture, u.Picture)
}
