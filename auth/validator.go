package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// Validator verifies RS256 tokens against the issuer's published keys and,
// when a signing secret is configured, HS256 tokens signed with the secret.
type Validator struct {
	conf scrapedash.AuthConfig
	keys *keySet
}

// NewValidator returns a validator for the settings. The client fetches the
// issuer's key set.
func NewValidator(conf scrapedash.AuthConfig, client *http.Client) *Validator {
	v := &Validator{conf: conf}
	if conf.Issuer != "" {
		if client == nil {
			client = http.DefaultClient
		}
		v.keys = newKeySet(conf.Issuer, time.Duration(conf.JWKSCacheMinutes)*time.Minute, client)
	}
	return v
}

func (v *Validator) methods() []string {
	methods := []string{}
	if v.keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if v.conf.SigningSecret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	return methods
}

func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	parser := &jwt.Parser{ValidMethods: v.methods(), SkipClaimsValidation: true}
	raw := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenString, raw, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return []byte(v.conf.SigningSecret), nil
		case *jwt.SigningMethodRSA:
			kid, _ := t.Header["kid"].(string)
			return v.keys.publicKey(ctx, kid)
		default:
			return nil, errors.Errorf("unexpected signing method '%s'", t.Method.Alg())
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}

	if err = v.verifyRegistered(raw, time.Now()); err != nil {
		return nil, err
	}

	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, err
	}
	if err = claims.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating claims")
	}

	return claims, nil
}

func (v *Validator) verifyRegistered(raw jwt.MapClaims, now time.Time) error {
	skew := int64(v.conf.ClockSkewSeconds)
	ts := now.Unix()

	if !raw.VerifyExpiresAt(ts-skew, true) {
		return errors.New("token is expired")
	}
	if !raw.VerifyNotBefore(ts+skew, false) {
		return errors.New("token is not valid yet")
	}
	if !raw.VerifyIssuedAt(ts+skew, false) {
		return errors.New("token was issued in the future")
	}
	if v.conf.Issuer != "" && !raw.VerifyIssuer(v.conf.Issuer, true) {
		return errors.New("token has the wrong issuer")
	}
	if v.conf.Audience != "" && !raw.VerifyAudience(v.conf.Audience, true) {
		return errors.New("token has the wrong audience")
	}
	return nil
}
