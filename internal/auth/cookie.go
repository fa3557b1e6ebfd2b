package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig describes the token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	TTL      time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Issue builds the cookie carrying token, expiring TTL after now.
func (c CookieConfig) Issue(token string, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.path(),
		Expires:  now.Add(c.TTL),
		MaxAge:   int(c.TTL / time.Second),
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

// Expired builds an empty cookie dated one hour in the past.
func (c CookieConfig) Expired(now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.path(),
		Expires:  now.Add(-time.Hour),
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// ParseSameSite maps a configuration value to http.SameSite. Unknown values
// fall back to Lax.
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
