package auth

import (
	"encoding/json"
	"strconv"
)

// SessionStore is the request scoped key/value store holding login state.
// *shared.Session satisfies it.
type SessionStore interface {
	Has(key string) bool
	Get(key string) string
	Set(key, value string)
	Delete(key string)
	Destroy()
}

// Session keys written by the verifier, the restorer and logout.
const (
	KeyLogin       = "admin.login"
	KeyID          = "admin.id"
	KeyULID        = "admin.ulid"
	KeyUser        = "admin.user"
	KeyPermissions = "admin.permissions"
)

var stateKeys = []string{KeyLogin, KeyID, KeyULID, KeyUser, KeyPermissions}

// SessionState is the typed view of the admin.* keys.
type SessionState struct {
	ID          int64
	ULID        string
	User        string
	Permissions []string
	// PermissionsValid is false when the stored list could not be decoded.
	PermissionsValid bool
}

// Has reports whether slug is granted. Exact match only.
func (s SessionState) Has(slug string) bool {
	for _, p := range s.Permissions {
		if p == slug {
			return true
		}
	}
	return false
}

// ApplyState writes the full login state for p in one call.
func ApplyState(sess SessionStore, p *Principal) {
	perms, _ := json.Marshal(p.PermissionSlugs())
	sess.Set(KeyID, strconv.FormatInt(p.ID, 10))
	sess.Set(KeyULID, p.ULID)
	sess.Set(KeyUser, p.LoginName)
	sess.Set(KeyPermissions, string(perms))
	sess.Set(KeyLogin, "true")
}

// IsAuthenticated reports whether the session carries login=true.
func IsAuthenticated(sess SessionStore) bool {
	return sess != nil && sess.Get(KeyLogin) == "true"
}

// LoadState decodes the admin.* keys. ok is false when not logged in.
func LoadState(sess SessionStore) (SessionState, bool) {
	if !IsAuthenticated(sess) {
		return SessionState{}, false
	}
	st := SessionState{
		ULID: sess.Get(KeyULID),
		User: sess.Get(KeyUser),
	}
	st.ID, _ = strconv.ParseInt(sess.Get(KeyID), 10, 64)
	if raw := sess.Get(KeyPermissions); raw != "" {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err == nil {
			st.Permissions = perms
			st.PermissionsValid = true
		}
	}
	return st, true
}

// ClearState deletes every admin.* key individually.
func ClearState(sess SessionStore) {
	for _, key := range stateKeys {
		sess.Delete(key)
	}
}
