package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/perseo-cms/perseo/internal/ids"
	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicateSlug is returned when another role or permission owns the slug.
	ErrDuplicateSlug = fmt.Errorf("%w: slug already exists", httpx.ErrValidation)
	// ErrProtectedRole guards the administrator role against deletion.
	ErrProtectedRole = fmt.Errorf("%w: cannot delete the administrator role", httpx.ErrForbidden)
	// ErrRoleInUse is returned when deleting a role that admins still hold.
	ErrRoleInUse = fmt.Errorf("%w: role has assigned admins", httpx.ErrForbidden)
	// ErrPermissionInUse is returned when deleting a permission granted to a role.
	ErrPermissionInUse = fmt.Errorf("%w: permission is assigned to roles", httpx.ErrForbidden)
)

// Service manages roles and permissions and seeds the builtin catalog.
type Service struct {
	pool     *sql.DB
	dialect  db.Dialect
	validate *validator.Validate
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *sql.DB, dialect db.Dialect) *Service {
	return &Service{pool: pool, dialect: dialect, validate: validator.New()}
}

// ListRoles returns one page of roles ordered by id, each with its
// permission slugs, plus the total number of roles.
func (s *Service) ListRoles(ctx context.Context, page, perPage int) ([]Role, int, error) {
	var total int
	if err := s.pool.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("rbac: count roles: %w", err)
	}
	p := shared.NewPagination(page, perPage, total)

	rows, err := s.pool.QueryContext(ctx, s.dialect.Rebind(
		"SELECT id, ulid, slug, description FROM roles ORDER BY id LIMIT ? OFFSET ?"),
		p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]Role, 0, p.PerPage)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.ULID, &role.Slug, &role.Description); err != nil {
			return nil, 0, fmt.Errorf("rbac: scan role: %w", err)
		}
		role.Permissions = []string{}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachPermissions(ctx, roles); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// GetRole fetches a role with its permission slugs.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.pool.QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT id, ulid, slug, description FROM roles WHERE id = ?"), id).
		Scan(&role.ID, &role.ULID, &role.Slug, &role.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	role.Permissions = []string{}
	roles := []Role{role}
	if err := s.attachPermissions(ctx, roles); err != nil {
		return Role{}, err
	}
	return roles[0], nil
}

func (s *Service) attachPermissions(ctx context.Context, roles []Role) error {
	if len(roles) == 0 {
		return nil
	}
	index := make(map[int64]int, len(roles))
	args := make([]any, 0, len(roles))
	for i, role := range roles {
		index[role.ID] = i
		args = append(args, role.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")
	rows, err := s.pool.QueryContext(ctx, s.dialect.Rebind(
		"SELECT rp.role_id, p.slug FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id IN ("+placeholders+") ORDER BY rp.role_id, p.id"),
		args...)
	if err != nil {
		return fmt.Errorf("rbac: list role permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID int64
			slug   string
		)
		if err := rows.Scan(&roleID, &slug); err != nil {
			return fmt.Errorf("rbac: scan role permission: %w", err)
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, slug)
		}
	}
	return rows.Err()
}

// ListPermissions returns all permissions ordered by id.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.QueryContext(ctx, "SELECT id, slug, description FROM permissions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Slug, &perm.Description); err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GetPermission fetches a permission by id.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var perm Permission
	err := s.pool.QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT id, slug, description FROM permissions WHERE id = ?"), id).
		Scan(&perm.ID, &perm.Slug, &perm.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return perm, nil
}

// SeedCatalog installs the builtin permissions and the administrator and
// editor roles. Existing rows are reused, so it is safe to run repeatedly.
// It returns role ids keyed by slug.
func SeedCatalog(ctx context.Context, q db.Querier, dialect db.Dialect) (map[string]int64, error) {
	permIDs := make(map[string]int64)
	for _, def := range shared.CoreScopes() {
		id, err := ensureRow(ctx, q, dialect,
			"SELECT id FROM permissions WHERE slug = ?",
			"INSERT INTO permissions (slug, description) VALUES (?, ?)",
			def.Slug, def.Slug, def.Description)
		if err != nil {
			return nil, fmt.Errorf("rbac: seed permission %s: %w", def.Slug, err)
		}
		permIDs[def.Slug] = id
	}

	allSlugs := make([]string, 0, len(permIDs))
	for _, def := range shared.CoreScopes() {
		allSlugs = append(allSlugs, def.Slug)
	}
	roles := []struct {
		slug, description string
		perms             []string
	}{
		{shared.RoleAdministrator, "Full system access", allSlugs},
		{shared.RoleEditor, "Can create and edit content", shared.EditorScopes()},
	}

	roleIDs := make(map[string]int64, len(roles))
	for _, role := range roles {
		id, err := ensureRow(ctx, q, dialect,
			"SELECT id FROM roles WHERE slug = ?",
			"INSERT INTO roles (ulid, slug, description) VALUES (?, ?, ?)",
			role.slug, ids.New(), role.slug, role.description)
		if err != nil {
			return nil, fmt.Errorf("rbac: seed role %s: %w", role.slug, err)
		}
		roleIDs[role.slug] = id
		for _, slug := range role.perms {
			if err := grant(ctx, q, dialect, id, permIDs[slug]); err != nil {
				return nil, fmt.Errorf("rbac: grant %s to %s: %w", slug, role.slug, err)
			}
		}
	}
	return roleIDs, nil
}

func ensureRow(ctx context.Context, q db.Querier, dialect db.Dialect, selectQuery, insertQuery, key string, insertArgs ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, dialect.Rebind(selectQuery), key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return dialect.InsertID(ctx, q, insertQuery, insertArgs...)
}

func grant(ctx context.Context, q db.Querier, dialect db.Dialect, roleID, permissionID int64) error {
	var n int
	if err := q.QueryRowContext(ctx, dialect.Rebind(
		"SELECT COUNT(*) FROM role_permissions WHERE role_id = ? AND permission_id = ?"),
		roleID, permissionID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, dialect.Rebind(
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)"), roleID, permissionID)
	return err
}
