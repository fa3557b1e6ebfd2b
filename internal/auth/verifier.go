package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	LoginKey string `validate:"required"`
	Password string `validate:"required"`
}

// Verifier checks a login key and password against the credential store and
// populates the session on success.
type Verifier struct {
	repo      Repository
	logger    *slog.Logger
	validator *validator.Validate

	dummyOnce sync.Once
	dummyHash []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(repo Repository, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{repo: repo, logger: logger, validator: validator.New()}
}

// Verify authenticates loginKey/password. The session is written only on
// success. Unknown keys and wrong passwords yield the same result.
func (v *Verifier) Verify(ctx context.Context, sess SessionStore, loginKey, password string) Result {
	loginKey = strings.TrimSpace(loginKey)
	password = strings.TrimSpace(password)
	form := credentials{LoginKey: loginKey, Password: password}
	if err := v.validator.Struct(form); err != nil {
		return failure(CodeMissingParameters, MessageMissingParameters, ErrMissingParameters)
	}

	principal, err := v.repo.FindByLoginKey(ctx, loginKey)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// Match the latency of the wrong-password path.
			_ = bcrypt.CompareHashAndPassword(v.dummy(), []byte(password))
			return failure(CodeInvalidCredentials, MessageInvalidCredentials, ErrInvalidCredentials)
		}
		v.logger.ErrorContext(ctx, "credential lookup failed", slog.Any("error", err))
		return failure(CodeStoreFailure, MessageStoreFailure, errors.Join(ErrStoreFailure, err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			v.logger.WarnContext(ctx, "stored password hash unusable", slog.Int64("admin_id", principal.ID), slog.Any("error", err))
		}
		return failure(CodeInvalidCredentials, MessageInvalidCredentials, ErrInvalidCredentials)
	}

	if sess != nil {
		ApplyState(sess, principal)
	}
	return Result{Success: true, Principal: principal, Code: CodeOK, Message: MessageOK}
}

func (v *Verifier) dummy() []byte {
	v.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("perseo-timing-placeholder"), PasswordCost)
		if err != nil {
			v.logger.Error("generate placeholder hash", slog.Any("error", err))
			return
		}
		v.dummyHash = hash
	})
	return v.dummyHash
}
