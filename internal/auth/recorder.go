package auth

// Recorder receives authentication outcomes for metrics.
type Recorder interface {
	LoginAttempt(outcome string)
	TokenCheck(outcome string)
}

// Token check outcomes reported by the restorer.
const (
	TokenRestored = "restored"
	TokenAbsent   = "absent"
	TokenExpired  = "expired"
	TokenInvalid  = "invalid"
	TokenUnknown  = "unknown_principal"
	TokenError    = "store_error"
)

// Login outcomes reported by the handler.
const (
	LoginSuccess = "success"
	LoginMissing = "missing_parameters"
	LoginInvalid = "invalid_credentials"
	LoginError   = "error"
)

type nopRecorder struct{}

func (nopRecorder) LoginAttempt(string) {}
func (nopRecorder) TokenCheck(string)   {}
