package auth

// Status is the enabled flag stored on an admin row.
type Status int

const (
	StatusDisabled Status = 0
	StatusEnabled  Status = 1
)

// PermissionRef is one permission granted through the principal's role.
type PermissionRef struct {
	ID   int64
	Slug string
}

// Principal is an administrative identity together with the flattened
// permission set of its role, ordered by permission id.
type Principal struct {
	ID           int64
	ULID         string
	LoginName    string
	Email        string
	Status       Status
	RoleID       int64
	PasswordHash string
	Permissions  []PermissionRef
}

// PermissionSlugs returns the slugs in store order. Never nil.
func (p *Principal) PermissionSlugs() []string {
	slugs := make([]string, 0, len(p.Permissions))
	for _, perm := range p.Permissions {
		slugs = append(slugs, perm.Slug)
	}
	return slugs
}

// Result codes and messages returned by the login endpoint.
const (
	CodeOK                 = "0"
	CodeMissingParameters  = "001"
	CodeInvalidCredentials = "004"
	CodeStoreFailure       = "500"

	MessageOK                 = "OK"
	MessageMissingParameters  = "MISSING_PARAMETERS"
	MessageInvalidCredentials = "USR_PASS_ERR"
	MessageStoreFailure       = "INTERNAL_ERROR"
)

// Result is the outcome of a credential verification.
type Result struct {
	Success   bool
	Principal *Principal
	Code      string
	Message   string
	Err       error
}

func failure(code, message string, err error) Result {
	return Result{Code: code, Message: message, Err: err}
}
