package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/perseo-cms/perseo/internal/auth"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

// DenialRecorder receives gate rejections for metrics.
type DenialRecorder interface {
	GateDenied(permission, reason string)
}

// Denial reasons.
const (
	ReasonUnauthenticated   = "unauthenticated"
	ReasonNoPermissions     = "no_permissions"
	ReasonMissingPermission = "missing_permission"
)

// Gate response messages.
const (
	MessageUnauthorized      = "Unauthorized"
	MessageNoPermissions     = "Forbidden: No permissions assigned"
	MessageMissingPermission = "Forbidden: You do not have permission to access this resource"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. It trusts
// the session only and never queries the database.
type Middleware struct {
	Logger   *slog.Logger
	Recorder DenialRecorder
}

type gateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Require builds a gate admitting sessions that hold slug (exact match).
func (m Middleware) Require(slug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess auth.SessionStore
			if s := shared.SessionFromContext(r.Context()); s != nil {
				sess = s
			}
			state, ok := auth.LoadState(sess)
			if !ok {
				m.deny(w, r, slug, http.StatusUnauthorized, ReasonUnauthenticated, MessageUnauthorized)
				return
			}
			if !state.PermissionsValid || len(state.Permissions) == 0 {
				m.deny(w, r, slug, http.StatusForbidden, ReasonNoPermissions, MessageNoPermissions)
				return
			}
			if !state.Has(slug) {
				m.deny(w, r, slug, http.StatusForbidden, ReasonMissingPermission, MessageMissingPermission)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, slug string, status int, reason, message string) {
	if m.Recorder != nil {
		m.Recorder.GateDenied(slug, reason)
	}
	if m.Logger != nil {
		m.Logger.InfoContext(r.Context(), "permission denied",
			slog.String("permission", slug),
			slog.String("reason", reason),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	}
	httpx.JSON(w, status, gateResponse{Success: false, Message: message})
}
