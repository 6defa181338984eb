package util

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nameRegex  = regexp.MustCompile(`^[a-zA-Z-' ]{2,30}$`)
)

func IsValidEmail(email string) bool { return emailRegex.MatchString(email) }

// IsValidName checks first, last and display names.
func IsValidName(name string) bool { return nameRegex.MatchString(name) }

// IsBlank is true for empty and whitespace-only strings.
func IsBlank(s string) bool { return strings.TrimSpace(s) == "" }

// ValidateHTTPURL returns an error unless raw is an absolute http or https
// URL with a host.
func ValidateHTTPURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return errors.Wrapf(err, "parsing URL '%s'", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("URL '%s' must use http or https", raw)
	}
	if u.Host == "" {
		return errors.Errorf("URL '%s' has no host", raw)
	}

	return nil
}
