package identity

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/db"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const requestTimeout = 30 * time.Second

// Client talks to an Auth0 management API. Requests are authorized with a
// client credentials token that the management SDK refreshes when it expires.
type Client struct {
	api *management.Management

	mu      sync.RWMutex
	roleIDs map[string]string
}

// NewClient builds a management API client for the configured domain.
// Retries follow the configured policy through the pooled retrying client.
func NewClient(ctx context.Context, conf scrapedash.IdentityConfig) (*Client, error) {
	retryConf := util.NewDefaultHTTPRetryConf()
	retryConf.MaxRetries = conf.MaxRetries

	httpClient := util.GetHTTPRetryableClient(retryConf)
	httpClient.Timeout = requestTimeout
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)

	return newClient(conf.Domain,
		management.WithClient(httpClient),
		management.WithNoRetries(),
		management.WithClientCredentials(tokenCtx, conf.ClientID, conf.ClientSecret),
	)
}

func newClient(domain string, opts ...management.Option) (*Client, error) {
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	api, err := management.New(domain, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating management client for '%s'", domain)
	}
	return &Client{
		api:     api,
		roleIDs: map[string]string{},
	}, nil
}

// traced runs op in a span. A 404 from the provider becomes a not-found
// error so callers can classify it with db.ResultsNotFound.
func (c *Client) traced(ctx context.Context, name string, op func(context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String(operationAttribute, name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "identity request failed")
		}
		span.End()
	}()

	err = op(ctx)
	var mErr management.Error
	if errors.As(err, &mErr) {
		span.SetAttributes(attribute.Int(statusAttribute, mErr.Status()))
		if mErr.Status() == http.StatusNotFound {
			return errors.Wrap(db.ErrNotFound, mErr.Error())
		}
	}
	return err
}

// ListUsers returns one zero-indexed page of users and the total user count.
func (c *Client) ListUsers(ctx context.Context, page, pageSize int) ([]user.User, int, error) {
	var res *management.UserList
	err := c.traced(ctx, "ListUsers", func(ctx context.Context) (err error) {
		res, err = c.api.User.List(ctx, management.Page(page), management.PerPage(pageSize), management.IncludeTotals(true))
		return err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing users")
	}

	users := make([]user.User, 0, len(res.Users))
	for _, u := range res.Users {
		users = append(users, toUser(u))
	}
	return users, res.Total, nil
}

// ListAllUsers pages through every user.
func (c *Client) ListAllUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	for page := 0; ; page++ {
		var res *management.UserList
		err := c.traced(ctx, "ListAllUsers", func(ctx context.Context) (err error) {
			res, err = c.api.User.List(ctx, management.Page(page), management.PerPage(scrapedash.DefaultIdentityRolePageSize), management.IncludeTotals(true))
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "listing users page %d", page)
		}
		for _, u := range res.Users {
			users = append(users, toUser(u))
		}
		if len(res.Users) == 0 || !res.HasNext() {
			return users, nil
		}
	}
}

func (c *Client) GetUser(ctx context.Context, id string) (*user.User, error) {
	var res *management.User
	err := c.traced(ctx, "GetUser", func(ctx context.Context) (err error) {
		res, err = c.api.User.Read(ctx, id)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting user '%s'", id)
	}
	u := toUser(res)
	return &u, nil
}

// UpdateUser patches the fields set in update and returns the updated user.
func (c *Client) UpdateUser(ctx context.Context, id string, update user.Update) (*user.User, error) {
	if update.IsEmpty() {
		return c.GetUser(ctx, id)
	}

	patch := fromUpdate(update)
	err := c.traced(ctx, "UpdateUser", func(ctx context.Context) error {
		return c.api.User.Update(ctx, id, patch)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "updating user '%s'", id)
	}
	u := toUser(patch)
	return &u, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	err := c.traced(ctx, "DeleteUser", func(ctx context.Context) error {
		return c.api.User.Delete(ctx, id)
	})
	return errors.Wrapf(err, "deleting user '%s'", id)
}

// ListUserRoles pages through the user's roles until they are exhausted.
// Roles the service does not know about are dropped.
func (c *Client) ListUserRoles(ctx context.Context, id string) ([]scrapedash.UserRole, error) {
	roles := []scrapedash.UserRole{}
	for page := 0; ; page++ {
		var res *management.RoleList
		err := c.traced(ctx, "ListUserRoles", func(ctx context.Context) (err error) {
			res, err = c.api.User.Roles(ctx, id, management.Page(page), management.PerPage(scrapedash.DefaultIdentityRolePageSize), management.IncludeTotals(true))
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "listing roles for user '%s'", id)
		}

		for _, r := range res.Roles {
			c.cacheRoleID(r)
			role := roleFromName(r.GetName())
			if role == scrapedash.UserRoleUnknown {
				grip.Debug(message.Fields{
					"message": "ignoring unknown provider role",
					"user":    id,
					"role":    r.GetName(),
				})
				continue
			}
			roles = append(roles, role)
		}

		if len(res.Roles) == 0 || !res.HasNext() {
			return roles, nil
		}
	}
}

func (c *Client) AssignUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	r, err := c.providerRole(ctx, role)
	if err != nil {
		return err
	}
	err = c.traced(ctx, "AssignUserRole", func(ctx context.Context) error {
		return c.api.User.AssignRoles(ctx, id, []*management.Role{r})
	})
	return errors.Wrapf(err, "assigning role %s to user '%s'", role, id)
}

func (c *Client) RemoveUserRole(ctx context.Context, id string, role scrapedash.UserRole) error {
	r, err := c.providerRole(ctx, role)
	if err != nil {
		return err
	}
	err = c.traced(ctx, "RemoveUserRole", func(ctx context.Context) error {
		return c.api.User.RemoveRoles(ctx, id, []*management.Role{r})
	})
	return errors.Wrapf(err, "removing role %s from user '%s'", role, id)
}

func (c *Client) cacheRoleID(r *management.Role) {
	if r.GetID() == "" || r.GetName() == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roleIDs[r.GetName()] = r.GetID()
}

// providerRole resolves the provider's role, whose id role assignment
// requires.
func (c *Client) providerRole(ctx context.Context, role scrapedash.UserRole) (*management.Role, error) {
	name, ok := roleName(role)
	if !ok {
		return nil, errors.Errorf("invalid role %d", role)
	}

	c.mu.RLock()
	id, ok := c.roleIDs[name]
	c.mu.RUnlock()
	if ok {
		return &management.Role{ID: auth0.String(id), Name: auth0.String(name)}, nil
	}

	var res *management.RoleList
	err := c.traced(ctx, "LookupRole", func(ctx context.Context) (err error) {
		res, err = c.api.Role.List(ctx, management.Parameter("name_filter", name))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "looking up role '%s'", name)
	}
	for _, r := range res.Roles {
		c.cacheRoleID(r)
		if r.GetName() == name {
			return r, nil
		}
	}

	return nil, errors.Errorf("role '%s' is not defined by the identity provider", name)
}

func toUser(u *management.User) user.User {
	out := user.User{
		Id:         u.GetID(),
		Connection: u.GetConnection(),
		Email:      u.GetEmail(),
		Name:       u.GetName(),
		GivenName:  u.GetGivenName(),
		FamilyName: u.GetFamilyName(),
		Username:   u.GetUsername(),
		Nickname:   u.GetNickname(),
		ScreenName: u.GetScreenName(),
		Location:   u.GetLocation(),
		Picture:    u.GetPicture(),
		LastLogin:  u.GetLastLogin(),
		CreatedAt:  u.GetCreatedAt(),
	}
	if out.Connection == "" && len(u.Identities) > 0 {
		out.Connection = u.Identities[0].GetConnection()
	}
	if u.UserMetadata != nil {
		metadata := *u.UserMetadata
		if v, ok := metadata["screen_name"].(string); ok && out.ScreenName == "" {
			out.ScreenName = v
		}
		if v, ok := metadata["location"].(string); ok && out.Location == "" {
			out.Location = v
		}
	}

	return out
}

// fromUpdate builds a patch holding only the fields that change. The
// provider has no writable screen name or location, so those live in the
// user metadata.
func fromUpdate(update user.Update) *management.User {
	patch := &management.User{
		Email:      update.Email,
		Name:       update.Name,
		GivenName:  update.GivenName,
		FamilyName: update.FamilyName,
		Username:   update.Username,
		Nickname:   update.Nickname,
		Picture:    update.Picture,
	}

	metadata := map[string]interface{}{}
	if update.ScreenName != nil {
		metadata["screen_name"] = *update.ScreenName
	}
	if update.Location != nil {
		metadata["location"] = *update.Location
	}
	if len(metadata) > 0 {
		patch.UserMetadata = &metadata
	}

	return patch
}
