package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/scrapedash/scrapedash"
)

const invalidTokenMessage = "JWT is invalid."

// RoleResolver looks up the current roles of a user.
type RoleResolver interface {
	UserRoles(ctx context.Context, userID string) ([]scrapedash.UserRole, error)
}

type rolesContextKey struct{}

// ResolveRoles returns the requester's roles, preferring the resolver over
// the roles carried in the token.
func ResolveRoles(ctx context.Context, resolver RoleResolver, claims *Claims) []scrapedash.UserRole {
	if roles, ok := ctx.Value(rolesContextKey{}).([]scrapedash.UserRole); ok {
		return roles
	}
	if resolver == nil {
		return claims.Roles
	}
	roles, err := resolver.UserRoles(ctx, claims.Subject)
	if err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"message": "could not resolve user roles, falling back to token claims",
			"user":    claims.Subject,
		}))
		return claims.Roles
	}
	return roles
}

func withRoles(r *http.Request, roles []scrapedash.UserRole) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), rolesContextKey{}, roles))
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

type authenticationMiddleware struct {
	validator TokenValidator
}

// NewAuthenticationMiddleware rejects requests without a valid bearer token
// and attaches the token's claims to the request context.
func NewAuthenticationMiddleware(v TokenValidator) gimlet.Middleware {
	return &authenticationMiddleware{validator: v}
}

func (m *authenticationMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	ctx := r.Context()
	claims, err := m.validator.Validate(ctx, bearerToken(r))
	if err != nil {
		grip.Info(message.WrapError(err, message.Fields{
			"message": "rejecting request with invalid bearer token",
			"path":    r.URL.Path,
			"method":  r.Method,
		}))
		gimlet.WriteJSONResponse(rw, http.StatusUnauthorized, gimlet.ErrorResponse{
			StatusCode: http.StatusUnauthorized,
			Message:    invalidTokenMessage,
		})
		return
	}

	next(rw, r.WithContext(WithClaims(ctx, claims)))
}

type requireRoleMiddleware struct {
	resolver RoleResolver
	roles    []scrapedash.UserRole
}

// NewRequireRoleMiddleware rejects requesters that hold none of the roles.
func NewRequireRoleMiddleware(resolver RoleResolver, roles ...scrapedash.UserRole) gimlet.Middleware {
	return &requireRoleMiddleware{resolver: resolver, roles: roles}
}

func (m *requireRoleMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeUnauthorized(rw)
		return
	}
	held := ResolveRoles(r.Context(), m.resolver, claims)
	if !HasAnyRole(held, m.roles...) {
		gimlet.WriteJSONResponse(rw, http.StatusForbidden, gimlet.ErrorResponse{
			StatusCode: http.StatusForbidden,
			Message:    "insufficient permissions",
		})
		return
	}

	next(rw, withRoles(r, held))
}

type selfOrAdminMiddleware struct {
	resolver RoleResolver
}

// NewSelfOrAdminMiddleware only lets requesters act on their own user_id,
// unless they are admins.
func NewSelfOrAdminMiddleware(resolver RoleResolver) gimlet.Middleware {
	return &selfOrAdminMiddleware{resolver: resolver}
}

func (m *selfOrAdminMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeUnauthorized(rw)
		return
	}
	target := gimlet.GetVars(r)["user_id"]
	held := ResolveRoles(r.Context(), m.resolver, claims)
	if !CanAccessUser(claims.Subject, held, target) {
		gimlet.WriteJSONResponse(rw, http.StatusForbidden, gimlet.ErrorResponse{
			StatusCode: http.StatusForbidden,
			Message:    "cannot access another user's resources",
		})
		return
	}

	next(rw, withRoles(r, held))
}

func writeUnauthorized(rw http.ResponseWriter) {
	gimlet.WriteJSONResponse(rw, http.StatusUnauthorized, gimlet.ErrorResponse{
		StatusCode: http.StatusUnauthorized,
		Message:    invalidTokenMessage,
	})
}
