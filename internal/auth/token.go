package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is used when no TTL is configured.
	DefaultTokenTTL = 86400 * time.Second
	// DefaultAlgorithm is the signing algorithm used when none is configured.
	DefaultAlgorithm = "HS256"
	// MinSecretLength is the minimum accepted length of a configured secret.
	MinSecretLength = 32
)

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenConfig configures the TokenService.
type TokenConfig struct {
	Secret    string
	TTL       time.Duration
	Algorithm string
}

// Claims is the token payload. Permissions is a snapshot taken at issue
// time; restoration re-reads permissions from the store and ignores it.
type Claims struct {
	ULID        string   `json:"ulid"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService issues and validates signed session tokens. It is immutable
// after construction and safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenService validates cfg and builds a TokenService. An empty secret
// yields a random per-process secret.
func NewTokenService(cfg TokenConfig, logger *slog.Logger, opts ...TokenOption) (*TokenService, error) {
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := signingMethods[alg]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrTokenConfig, cfg.Algorithm)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	ttl = ttl.Truncate(time.Second)
	if ttl < time.Second {
		return nil, fmt.Errorf("%w: ttl must be at least 1s", ErrTokenConfig)
	}

	secret := []byte(cfg.Secret)
	switch {
	case len(secret) == 0:
		secret = make([]byte, MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("%w: generate secret: %v", ErrTokenConfig, err)
		}
		if logger != nil {
			logger.Warn("JWT_SECRET not set, using a random per-process secret; tokens will not survive a restart")
		}
	case len(secret) < MinSecretLength:
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrTokenConfig, MinSecretLength)
	}

	s := &TokenService{
		secret: secret,
		ttl:    ttl,
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// exp is encoded in whole seconds; the one second leeway keeps a token
	// valid for the whole of its final second.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Second),
	)
	return s, nil
}

// TTL returns the token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for ulid carrying the permission snapshot.
func (s *TokenService) Issue(ulid string, permissions []string) (string, error) {
	now := s.now()
	claims := Claims{
		ULID:        ulid,
		Permissions: append([]string{}, permissions...),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

// Validate verifies signature, algorithm and time claims. Expired tokens
// return ErrTokenExpired; every other failure returns ErrTokenInvalid.
func (s *TokenService) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExtractFromRequest returns the raw token stored in the named cookie.
func (s *TokenService) ExtractFromRequest(r *http.Request, cookieName string) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
