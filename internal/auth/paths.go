package auth

import "strings"

// Paths computes admin URLs relative to the application base path, with an
// optional locale segment between the base and the admin mount.
type Paths struct {
	BasePath  string
	AdminPath string
}

// NewPaths normalises base ("/", "" or "/cms/") and admin ("admin", "/admin/").
func NewPaths(basePath, adminPath string) Paths {
	base := strings.Trim(basePath, "/")
	if base != "" {
		base = "/" + base
	}
	admin := strings.Trim(adminPath, "/")
	if admin == "" {
		admin = "admin"
	}
	return Paths{BasePath: base, AdminPath: admin}
}

// Prefix returns base[/locale].
func (p Paths) Prefix(locale string) string {
	if locale == "" {
		return p.BasePath
	}
	return p.BasePath + "/" + locale
}

// Admin returns base[/locale]/admin, the post-login redirect target.
func (p Paths) Admin(locale string) string {
	return p.Prefix(locale) + "/" + p.AdminPath
}

// Login returns the login page URL.
func (p Paths) Login(locale string) string {
	return p.Admin(locale) + "/login"
}

// IsPublic reports whether path is reachable without authentication: the
// login page and everything under /auth.
func (p Paths) IsPublic(path, locale string) bool {
	admin := p.Admin(locale)
	for _, prefix := range []string{admin + "/login", admin + "/auth"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
