package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
	"github.com/perseo-cms/perseo/internal/view"
)

// HandlerDeps groups the collaborators of Handler.
type HandlerDeps struct {
	Logger    *slog.Logger
	Verifier  *Verifier
	Tokens    *TokenService
	Cookie    CookieConfig
	Paths     Paths
	Sessions  *shared.SessionManager
	Templates *view.Engine
	Recorder  Recorder
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	verifier  *Verifier
	tokens    *TokenService
	cookie    CookieConfig
	paths     Paths
	sessions  *shared.SessionManager
	templates *view.Engine
	recorder  Recorder
	now       func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		logger:    deps.Logger,
		verifier:  deps.Verifier,
		tokens:    deps.Tokens,
		cookie:    deps.Cookie,
		paths:     deps.Paths,
		sessions:  deps.Sessions,
		templates: deps.Templates,
		recorder:  deps.Recorder,
		now:       time.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.recorder == nil {
		h.recorder = nopRecorder{}
	}
	return h
}

// MountPublic registers the routes reachable without a session. loginLimits
// wrap the credential submission only.
func (h *Handler) MountPublic(r chi.Router, loginLimits ...func(http.Handler) http.Handler) {
	r.Get("/login", h.showLogin)
	r.With(loginLimits...).Post("/auth/login", h.handleLogin)
	r.Get("/auth/check", h.handleCheck)
}

// MountProtected registers routes that require an authenticated session.
func (h *Handler) MountProtected(r chi.Router) {
	r.Get("/logout", h.handleLogout)
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Error    bool   `json:"error"`
	Code     string `json:"code"`
	Msg      string `json:"msg"`
	Redirect string `json:"redirect,omitempty"`
}

type loginPageData struct {
	Action   string
	Redirect string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	locale := shared.LocaleFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && IsAuthenticated(sess) {
		http.Redirect(w, r, h.paths.Admin(locale)+"/dashboard", http.StatusFound)
		return
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CurrentPath: r.URL.Path,
		Locale:      locale,
		AdminURL:    h.paths.Admin(locale),
		Data: loginPageData{
			Action:   h.paths.Admin(locale) + "/auth/login",
			Redirect: h.paths.Admin(locale),
		},
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		h.logger.ErrorContext(ctx, "session missing during login", slog.String("request_id", reqID))
		h.recorder.LoginAttempt(LoginError)
		httpx.JSON(w, http.StatusOK, loginResponse{Error: true, Code: CodeStoreFailure, Msg: MessageStoreFailure})
		return
	}

	// A malformed body leaves both fields empty and fails as missing parameters.
	_ = r.ParseForm()
	username := r.PostFormValue("username")

	result := h.verifier.Verify(ctx, sess, username, r.PostFormValue("password"))
	if !result.Success {
		h.recorder.LoginAttempt(loginOutcome(result.Code))
		h.logger.InfoContext(ctx, "login failed",
			slog.String("code", result.Code),
			slog.String("request_id", reqID))
		httpx.JSON(w, http.StatusOK, loginResponse{Error: true, Code: result.Code, Msg: result.Message})
		return
	}

	principal := result.Principal
	token, err := h.tokens.Issue(principal.ULID, principal.PermissionSlugs())
	if err != nil {
		ClearState(sess)
		h.recorder.LoginAttempt(LoginError)
		h.logger.ErrorContext(ctx, "issue token", slog.Any("error", err), slog.String("request_id", reqID))
		httpx.JSON(w, http.StatusOK, loginResponse{Error: true, Code: CodeStoreFailure, Msg: MessageStoreFailure})
		return
	}

	sess.Renew(h.sessions.NewID())
	http.SetCookie(w, h.cookie.Issue(token, h.now()))
	h.recorder.LoginAttempt(LoginSuccess)
	h.logger.InfoContext(ctx, "login succeeded",
		slog.Int64("admin_id", principal.ID),
		slog.String("request_id", reqID))

	httpx.JSON(w, http.StatusOK, loginResponse{
		Success:  true,
		Code:     CodeOK,
		Msg:      MessageOK,
		Redirect: h.paths.Admin(shared.LocaleFromContext(ctx)),
	})
}

func loginOutcome(code string) string {
	switch code {
	case CodeMissingParameters:
		return LoginMissing
	case CodeInvalidCredentials:
		return LoginInvalid
	default:
		return LoginError
	}
}

type checkUser struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	ULID        string   `json:"ulid"`
	Permissions []string `json:"permissions"`
}

type checkResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *checkUser `json:"user"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.JSON(w, http.StatusOK, checkResponse{})
		return
	}
	state, ok := LoadState(sess)
	if !ok {
		httpx.JSON(w, http.StatusOK, checkResponse{})
		return
	}
	perms := state.Permissions
	if perms == nil {
		perms = []string{}
	}
	httpx.JSON(w, http.StatusOK, checkResponse{
		Authenticated: true,
		User: &checkUser{
			ID:          state.ID,
			Username:    state.User,
			ULID:        state.ULID,
			Permissions: perms,
		},
	})
}

// handleLogout removes the session and the token cookie. Tokens copied
// elsewhere stay valid until exp; there is no revocation list.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess := shared.SessionFromContext(ctx); sess != nil {
		if state, ok := LoadState(sess); ok {
			h.logger.InfoContext(ctx, "logout",
				slog.Int64("admin_id", state.ID),
				slog.String("request_id", middleware.GetReqID(ctx)))
		}
		ClearState(sess)
		sess.Destroy()
	}
	http.SetCookie(w, h.cookie.Expired(h.now()))
	http.Redirect(w, r, h.paths.Login(shared.LocaleFromContext(ctx)), http.StatusFound)
}
