package scrapedash

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// AuthConfig configures bearer token validation for the REST API.
type AuthConfig struct {
	// Issuer is the token issuer. When set, signing keys are fetched from
	// the issuer's JWKS document.
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	// SigningSecret enables HS256 tokens, for local deployments without
	// an identity provider.
	SigningSecret    string `yaml:"signing_secret"`
	JWKSCacheMinutes int    `yaml:"jwks_cache_minutes"`
	ClockSkewSeconds int    `yaml:"clock_skew_seconds"`
}

func (c *AuthConfig) SectionId() string { return "auth" }

func (c *AuthConfig) ValidateAndDefault() error {
	if c.Issuer == "" && c.SigningSecret == "" {
		return errors.New("either an issuer or a signing secret must be configured")
	}
	if c.Issuer != "" {
		if _, err := url.ParseRequestURI(c.Issuer); err != nil {
			return errors.Wrapf(err, "parsing issuer '%s'", c.Issuer)
		}
		if !strings.HasSuffix(c.Issuer, "/") {
			c.Issuer += "/"
		}
	}
	if c.JWKSCacheMinutes <= 0 {
		c.JWKSCacheMinutes = DefaultJWKSCacheMinutes
	}
	if c.ClockSkewSeconds <= 0 {
		c.ClockSkewSeconds = DefaultClockSkewSeconds
	}
	return nil
}

// IdentityConfig configures the identity provider's management API. When the
// domain is empty, users and roles are kept in the local database.
type IdentityConfig struct {
	Domain       string `yaml:"domain"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	MaxRetries   int    `yaml:"max_retries"`
}

func (c *IdentityConfig) SectionId() string { return "identity" }

func (c *IdentityConfig) ValidateAndDefault() error {
	if c.Domain == "" {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("identity provider requires a client ID and secret")
	}
	if !strings.HasPrefix(c.Domain, "http://") && !strings.HasPrefix(c.Domain, "https://") {
		c.Domain = "https://" + c.Domain
	}
	c.Domain = strings.TrimSuffix(c.Domain, "/")
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return nil
}

// Enabled returns true when an external identity provider is configured.
func (c *IdentityConfig) Enabled() bool { return c.Domain != "" }
