package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/perseo-cms/perseo/internal/ids"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

// Restorer rebuilds login state from the token cookie when the session has
// none. Restoration re-reads the principal from the store; the permission
// snapshot inside the token is not trusted.
type Restorer struct {
	tokens     *TokenService
	repo       Repository
	paths      Paths
	cookieName string
	logger     *slog.Logger
	recorder   Recorder
}

// NewRestorer constructs a Restorer. recorder may be nil.
func NewRestorer(tokens *TokenService, repo Repository, paths Paths, cookieName string, logger *slog.Logger, recorder Recorder) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Restorer{
		tokens:     tokens,
		repo:       repo,
		paths:      paths,
		cookieName: cookieName,
		logger:     logger,
		recorder:   recorder,
	}
}

// Restore makes sure sess is authenticated if the request carries a usable
// token. It is idempotent and reports whether sess ends up authenticated.
func (rs *Restorer) Restore(r *http.Request, sess SessionStore) bool {
	if sess == nil {
		return false
	}
	if IsAuthenticated(sess) {
		return true
	}

	raw, ok := rs.tokens.ExtractFromRequest(r, rs.cookieName)
	if !ok {
		rs.recorder.TokenCheck(TokenAbsent)
		return false
	}

	ctx := r.Context()
	claims, err := rs.tokens.Validate(raw)
	if err != nil {
		outcome := TokenInvalid
		if errors.Is(err, ErrTokenExpired) {
			outcome = TokenExpired
		}
		rs.recorder.TokenCheck(outcome)
		rs.logger.DebugContext(ctx, "token rejected", slog.String("outcome", outcome), slog.String("request_id", middleware.GetReqID(ctx)))
		return false
	}
	if !ids.Valid(claims.ULID) {
		rs.recorder.TokenCheck(TokenInvalid)
		return false
	}

	principal, err := rs.lookup(ctx, claims.ULID)
	if err != nil {
		return false
	}
	ApplyState(sess, principal)
	rs.recorder.TokenCheck(TokenRestored)
	rs.logger.InfoContext(ctx, "session restored from token",
		slog.Int64("admin_id", principal.ID),
		slog.String("request_id", middleware.GetReqID(ctx)))
	return true
}

func (rs *Restorer) lookup(ctx context.Context, ulid string) (*Principal, error) {
	principal, err := rs.repo.FindByULID(ctx, ulid)
	if err == nil {
		return principal, nil
	}
	if errors.Is(err, ErrPrincipalNotFound) {
		rs.recorder.TokenCheck(TokenUnknown)
		rs.logger.DebugContext(ctx, "token references unknown or disabled admin", slog.String("ulid", ulid))
	} else {
		rs.recorder.TokenCheck(TokenError)
		rs.logger.ErrorContext(ctx, "restore lookup failed", slog.Any("error", err))
	}
	return nil, err
}

type unauthorizedResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// Middleware enforces authentication on every non-public path below it.
func (rs *Restorer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := shared.LocaleFromContext(r.Context())
		if rs.paths.IsPublic(r.URL.Path, locale) {
			next.ServeHTTP(w, r)
			return
		}

		var sess SessionStore
		if s := shared.SessionFromContext(r.Context()); s != nil {
			sess = s
		}
		if rs.Restore(r, sess) {
			next.ServeHTTP(w, r)
			return
		}

		loginURL := rs.paths.Login(locale)
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusUnauthorized, unauthorizedResponse{
				Success:  false,
				Message:  "Unauthorized",
				Redirect: loginURL,
			})
			return
		}
		http.Redirect(w, r, loginURL, http.StatusFound)
	})
}
