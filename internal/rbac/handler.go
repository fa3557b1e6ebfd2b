package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

// Handler exposes the role and permission management APIs.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /roles and /permissions under r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermManageRoles))
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Get("/roles/{id}", h.getRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermManagePermissions))
		r.Get("/permissions", h.listPermissions)
		r.Post("/permissions", h.createPermission)
		r.Get("/permissions/{id}", h.getPermission)
		r.Put("/permissions/{id}", h.updatePermission)
		r.Delete("/permissions/{id}", h.deletePermission)
	})
}

type listResponse struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

type itemResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r, 10)
	roles, total, err := h.service.ListRoles(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, r, "list roles", "", err)
		return
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: roles, Pagination: &p})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get role", roleNotFound, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: role})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, "list permissions", "", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: perms})
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get permission", permissionNotFound, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: perm})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create role", roleNotFound, err)
		return
	}
	h.audit(r, "role created", slog.Int64("role_id", role.ID), slog.String("slug", role.Slug), slog.Any("permissions", role.Permissions))
	httpx.JSON(w, http.StatusCreated, itemResponse{Success: true, Data: role, Message: "Role created successfully"})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in RoleInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update role", roleNotFound, err)
		return
	}
	h.audit(r, "role updated", slog.Int64("role_id", id), slog.String("slug", role.Slug), slog.Any("permissions", role.Permissions))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: role, Message: "Role updated successfully"})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, r, "delete role", roleNotFound, err)
		return
	}
	h.audit(r, "role deleted", slog.Int64("role_id", id))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Message: "Role deleted successfully"})
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create permission", permissionNotFound, err)
		return
	}
	h.audit(r, "permission created", slog.Int64("permission_id", perm.ID), slog.String("slug", perm.Slug))
	httpx.JSON(w, http.StatusCreated, itemResponse{Success: true, Data: perm, Message: "Permission created successfully"})
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in PermissionInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update permission", permissionNotFound, err)
		return
	}
	h.audit(r, "permission updated", slog.Int64("permission_id", id), slog.String("slug", perm.Slug))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Data: perm, Message: "Permission updated successfully"})
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, r, "delete permission", permissionNotFound, err)
		return
	}
	h.audit(r, "permission deleted", slog.Int64("permission_id", id))
	httpx.JSON(w, http.StatusOK, itemResponse{Success: true, Message: "Permission deleted successfully"})
}

const (
	roleNotFound       = "Role not found"
	permissionNotFound = "Permission not found"
)

// fail answers ErrNotFound with the resource message and maps everything
// else through httpx.RespondError. Client errors log at warn.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op, notFound string, err error) {
	if notFound != "" && errors.Is(err, ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, itemResponse{Message: notFound})
		return
	}
	if h.logger != nil {
		if errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrForbidden) {
			h.logger.WarnContext(r.Context(), op, slog.Any("error", err))
		} else {
			h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

func (h *Handler) audit(r *http.Request, msg string, attrs ...any) {
	if h.logger != nil {
		h.logger.InfoContext(r.Context(), msg, attrs...)
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
