package data

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/model/user"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FindUsers returns one page of users from the directory with their roles.
func (dc *DBConnector) FindUsers(ctx context.Context, page, pageSize int) ([]user.User, int, error) {
	ctx, span := tracer.Start(ctx, "FindUsers", trace.WithAttributes(
		attribute.Int(pageAttribute, page),
		attribute.Int(pageSizeAttribute, pageSize),
	))
	defer span.End()

	if page < 1 || pageSize < 1 {
		return nil, 0, badRequest(errors.Errorf("invalid page %d with size %d", page, pageSize))
	}

	users, total, err := dc.Identity.ListUsers(ctx, page-1, pageSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing users")
	}
	span.SetAttributes(attribute.Int(usersAttribute, len(users)))

	if err = dc.attachRoles(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// FindAllUsers returns every user in the directory with their roles.
func (dc *DBConnector) FindAllUsers(ctx context.Context) ([]user.User, error) {
	ctx, span := tracer.Start(ctx, "FindAllUsers")
	defer span.End()

	users, err := dc.Identity.ListAllUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing all users")
	}
	span.SetAttributes(attribute.Int(usersAttribute, len(users)))

	if err = dc.attachRoles(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// attachRoles fills in each user's roles, at most RoleFetchLimit lookups at
// a time.
func (dc *DBConnector) attachRoles(ctx context.Context, users []user.User) error {
	limit := dc.RoleFetchLimit
	if limit <= 0 {
		limit = defaultRoleFetchLimit
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range users {
		u := &users[i]
		g.Go(func() error {
			roles, err := dc.UserRoles(gctx, u.Id)
			if err != nil {
				return errors.Wrapf(err, "listing roles for user '%s'", u.Id)
			}
			u.Roles = roles
			return nil
		})
	}
	return g.Wait()
}

// FindUserById returns a user with its roles, reading through the user
// cache.
func (dc *DBConnector) FindUserById(ctx context.Context, id string) (*user.User, error) {
	ctx, span := tracer.Start(ctx, "FindUserById", trace.WithAttributes(attribute.String(userIDAttribute, id)))
	defer span.End()

	if u, ok := dc.Caches.GetUser(id); ok {
		return u, nil
	}

	u, err := dc.Identity.GetUser(ctx, id)
	if err != nil {
		return nil, identityError(err, "user '%s' not found", id)
	}
	if u == nil {
		return nil, notFound("user '%s' not found", id)
	}
	if u.Roles, err = dc.UserRoles(ctx, id); err != nil {
		return nil, identityError(err, "user '%s' not found", id)
	}

	dc.Caches.SetUser(u)
	return u, nil
}

// UserRoles returns the user's roles, reading through the role cache.
func (dc *DBConnector) UserRoles(ctx context.Context, id string) ([]scrapedash.UserRole, error) {
	if roles, ok := dc.Caches.GetRoles(id); ok {
		return roles, nil
	}

	roles, err := dc.Identity.ListUserRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	dc.Caches.SetRoles(id, roles)
	return roles, nil
}

func (dc *DBConnector) UpdateUser(ctx context.Context, id string, update user.Update) (*user.User, error) {
	defer dc.Caches.InvalidateUser(id)

	u, err := dc.Identity.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, identityError(err, "user '%s' not found", id)
	}
	grip.Info(message.Fields{
		"message": "updated user",
		"user":    id,
	})
	return u, nil
}

func (dc *DBConnector) DeleteUser(ctx context.Context, id string) error {
	defer dc.Caches.InvalidateUser(id)

	if err := dc.Identity.DeleteUser(ctx, id); err != nil {
		return identityError(err, "user '%s' not found", id)
	}
	grip.Info(message.Fields{
		"message": "deleted user",
		"user":    id,
	})
	return nil
}

func (dc *DBConnector) AssignUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return badRequest(err)
	}
	defer dc.Caches.InvalidateUser(id)

	if err := dc.Identity.AssignUserRole(ctx, id, role); err != nil {
		return identityError(err, "user '%s' not found", id)
	}
	grip.Info(message.Fields{
		"message": "assigned role",
		"user":    id,
		"role":    role.String(),
	})
	return nil
}

func (dc *DBConnector) RemoveUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	if err := role.Validate(); err != nil {
		return badRequest(err)
	}
	defer dc.Caches.InvalidateUser(id)

	if err := dc.Identity.RemoveUserRole(ctx, id, role); err != nil {
		return identityError(err, "user '%s' not found", id)
	}
	grip.Info(message.Fields{
		"message": "removed role",
		"user":    id,
		"role":    role.String(),
	})
	return nil
}
