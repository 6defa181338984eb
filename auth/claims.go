package auth

import (
	"context"

	"github.com/golang-jwt/jwt"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
)

// Claims are the parts of a bearer token the service acts on.
type Claims struct {
	Subject      string                `mapstructure:"sub"`
	Name         string                `mapstructure:"name"`
	Username     string                `mapstructure:"username"`
	Roles        []scrapedash.UserRole `mapstructure:"roles"`
	ShouldReject bool                  `mapstructure:"shouldReject"`
}

// Validate rejects tokens the identity provider marked for rejection.
func (c *Claims) Validate() error {
	if c.Subject == "" {
		return errors.New("token has no subject")
	}
	if c.ShouldReject {
		return errors.New("should reject was set to true")
	}
	return nil
}

func decodeClaims(raw jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           claims,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building claims decoder")
	}
	if err = decoder.Decode(map[string]any(raw)); err != nil {
		return nil, errors.Wrap(err, "decoding claims")
	}
	return claims, nil
}

type claimsContextKey struct{}

// WithClaims attaches the authenticated claims to the context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// GetClaims returns the authenticated claims from the context, or nil.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return c
}
