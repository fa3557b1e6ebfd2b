package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/perseo-cms/perseo/internal/auth"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/rbac"
	"github.com/perseo-cms/perseo/internal/shared"
)

// Handler serves the admin account API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermManageUsers))
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Get("/users/{id}", h.getUser)
		r.Post("/users/save/{id}", h.updateUser)
		r.Put("/users/{id}", h.updateUser)
		r.Delete("/users/{id}", h.deleteUser)
	})
}

// adminRequest is the body accepted by create and update. Status defaults
// to enabled when omitted.
type adminRequest struct {
	LoginName string `json:"login_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	RoleID    int64  `json:"role_id"`
	Status    *int   `json:"status"`
}

type listResponse struct {
	Success    bool              `json:"success"`
	Data       []Admin           `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

type itemResponse struct {
	Success bool   `json:"success"`
	Data    *Admin `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r, 20)
	admins, pagination, err := h.service.ListAdmins(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, r, "list users failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: admins, Pagination: pagination})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	admin, err := h.service.GetAdmin(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: &admin})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, err := h.service.Create(r.Context(), NewAdmin{
		LoginName: req.LoginName,
		Email:     req.Email,
		Password:  req.Password,
		RoleID:    req.RoleID,
	})
	if err != nil {
		h.fail(w, r, "create user failed", err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin created", slog.Int64("admin_id", admin.ID), slog.String("ulid", admin.ULID))
	httpx.JSON(w, http.StatusCreated, itemResponse{Success: true, Data: &admin, Message: "User created successfully"})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req adminRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := int(auth.StatusEnabled)
	if req.Status != nil {
		status = *req.Status
	}
	admin, err := h.service.UpdateAdmin(r.Context(), id, AdminUpdate{
		LoginName: req.LoginName,
		Email:     req.Email,
		Password:  req.Password,
		RoleID:    req.RoleID,
		Status:    status,
	})
	if err != nil {
		h.fail(w, r, "update user failed", err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin updated", slog.Int64("admin_id", id), slog.Bool("password_changed", req.Password != ""))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: &admin, Message: "User updated successfully"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var actorID int64
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if state, ok := auth.LoadState(sess); ok {
			actorID = state.ID
		}
	}
	if err := h.service.DeleteAdmin(r.Context(), actorID, id); err != nil {
		h.fail(w, r, "delete user failed", err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin deleted", slog.Int64("admin_id", id), slog.Int64("actor_id", actorID))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Message: "User deleted successfully"})
}

// fail answers 404 for unknown admins and logs only unexpected errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, itemResponse{Message: "User not found"})
		return
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrForbidden):
		h.logger.WarnContext(r.Context(), msg, slog.Any("error", err))
	default:
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
