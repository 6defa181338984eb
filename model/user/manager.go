package user

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
)

// DBManager serves the user directory from the local database. It is used
// when no external identity provider is configured.
type DBManager struct{}

func (DBManager) ListUsers(ctx context.Context, page, pageSize int) ([]User, int, error) {
	return Find(ctx, page, pageSize)
}

func (DBManager) ListAllUsers(ctx context.Context) ([]User, error) {
	return FindAll(ctx)
}

func (DBManager) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := FindOneById(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.Wrapf(db.ErrNotFound, "user '%s'", id)
	}
	return u, nil
}

func (m DBManager) UpdateUser(ctx context.Context, id string, update Update) (*User, error) {
	if err := UpdateOne(ctx, id, update); err != nil {
		return nil, err
	}
	return m.GetUser(ctx, id)
}

func (DBManager) DeleteUser(ctx context.Context, id string) error {
	return RemoveOne(ctx, id)
}

func (DBManager) ListUserRoles(ctx context.Context, id string) ([]scrapedash.UserRole, error) {
	return Roles(ctx, id)
}

func (DBManager) AssignUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	return AddRole(ctx, id, role)
}

func (DBManager) RemoveUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	return RemoveRole(ctx, id, role)
}
