// Package identity manages user accounts and role assignments, either in the
// external identity provider or in the local user directory.
package identity

import (
	"context"
	"net/http"

	"github.com/auth0/go-auth0/management"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/user"
)

// Manager is the user directory used by the REST API. Pages passed to
// ListUsers are zero-indexed.
type Manager interface {
	ListUsers(ctx context.Context, page, pageSize int) ([]user.User, int, error)
	ListAllUsers(ctx context.Context) ([]user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	UpdateUser(ctx context.Context, id string, update user.Update) (*user.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUserRoles(ctx context.Context, id string) ([]scrapedash.UserRole, error)
	AssignUserRole(ctx context.Context, id string, role scrapedash.UserRole) error
	RemoveUserRole(ctx context.Context, id string, role scrapedash.UserRole) error
}

var (
	_ Manager = user.DBManager{}
	_ Manager = &Client{}
)

// NewManager returns a client for the configured identity provider, or the
// local user directory when none is configured.
func NewManager(ctx context.Context, conf scrapedash.IdentityConfig) (Manager, error) {
	if !conf.Enabled() {
		return user.DBManager{}, nil
	}
	return NewClient(ctx, conf)
}

// IsNotFound returns true if the directory reported that the user or role
// does not exist.
func IsNotFound(err error) bool {
	if db.ResultsNotFound(err) {
		return true
	}
	var mErr management.Error
	return errors.As(err, &mErr) && mErr.Status() == http.StatusNotFound
}

const (
	providerUserRole   = "user"
	providerMemberRole = "member"
	providerAdminRole  = "admin"
)

func roleName(role scrapedash.UserRole) (string, bool) {
	switch role {
	case scrapedash.UserRoleUser:
		return providerUserRole, true
	case scrapedash.UserRoleMember:
		return providerMemberRole, true
	case scrapedash.UserRoleAdmin:
		return providerAdminRole, true
	default:
		return "", false
	}
}

func roleFromName(name string) scrapedash.UserRole {
	switch name {
	case providerUserRole:
		return scrapedash.UserRoleUser
	case providerMemberRole:
		return scrapedash.UserRoleMember
	case providerAdminRole:
		return scrapedash.UserRoleAdmin
	default:
		return scrapedash.UserRoleUnknown
	}
}
