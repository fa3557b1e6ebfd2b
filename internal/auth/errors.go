package auth

import "errors"

var (
	// ErrMissingParameters occurs when the login key or password is blank.
	ErrMissingParameters = errors.New("missing parameters")
	// ErrInvalidCredentials covers both an unknown login key and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid indicates a bad signature, malformed token or wrong algorithm.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a structurally valid token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrPrincipalNotFound is returned by repositories when no enabled admin matches.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrStoreFailure wraps credential store errors surfaced to callers.
	ErrStoreFailure = errors.New("credential store failure")
	// ErrTokenConfig reports an unusable signing configuration.
	ErrTokenConfig = errors.New("invalid token configuration")
)
