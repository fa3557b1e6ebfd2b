package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/perseo-cms/perseo/internal/ids"
	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

// CreateRole inserts a role and grants it the listed permissions.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in, err := s.normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	role := Role{ULID: ids.New(), Slug: in.Slug, Description: in.Description}
	err = db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		if err := slugFree(ctx, tx, s.dialect, "roles", in.Slug, 0); err != nil {
			return err
		}
		role.ID, err = s.dialect.InsertID(ctx, tx,
			"INSERT INTO roles (ulid, slug, description) VALUES (?, ?, ?)", role.ULID, role.Slug, role.Description)
		if err != nil {
			return fmt.Errorf("rbac: insert role: %w", err)
		}
		role.Permissions, err = syncPermissions(ctx, tx, s.dialect, role.ID, in.Permissions)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole rewrites slug and description of role id and replaces its
// permission set. An empty Permissions list revokes everything.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in, err := s.normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	role := Role{ID: id, Slug: in.Slug, Description: in.Description}
	err = db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.dialect.Rebind("SELECT ulid FROM roles WHERE id = ?"), id).Scan(&role.ULID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("rbac: find role: %w", err)
		}
		if err := slugFree(ctx, tx, s.dialect, "roles", in.Slug, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
			"UPDATE roles SET slug = ?, description = ? WHERE id = ?"), in.Slug, in.Description, id); err != nil {
			return fmt.Errorf("rbac: update role: %w", err)
		}
		role.Permissions, err = syncPermissions(ctx, tx, s.dialect, id, in.Permissions)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes role id and its grants. The administrator role and
// roles still assigned to admins are refused.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		var slug string
		err := tx.QueryRowContext(ctx, s.dialect.Rebind("SELECT slug FROM roles WHERE id = ?"), id).Scan(&slug)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("rbac: find role: %w", err)
		}
		if slug == shared.RoleAdministrator {
			return ErrProtectedRole
		}
		var admins int
		if err := tx.QueryRowContext(ctx, s.dialect.Rebind(
			"SELECT COUNT(*) FROM admins WHERE role_id = ?"), id).Scan(&admins); err != nil {
			return fmt.Errorf("rbac: count role admins: %w", err)
		}
		if admins > 0 {
			return fmt.Errorf("%w (%d assigned)", ErrRoleInUse, admins)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM role_permissions WHERE role_id = ?"), id); err != nil {
			return fmt.Errorf("rbac: revoke role permissions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM roles WHERE id = ?"), id); err != nil {
			return fmt.Errorf("rbac: delete role: %w", err)
		}
		return nil
	})
}

// CreatePermission inserts a permission.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in, err := s.normalizePermission(in)
	if err != nil {
		return Permission{}, err
	}
	perm := Permission{Slug: in.Slug, Description: in.Description}
	err = db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		if err := slugFree(ctx, tx, s.dialect, "permissions", in.Slug, 0); err != nil {
			return err
		}
		perm.ID, err = s.dialect.InsertID(ctx, tx,
			"INSERT INTO permissions (slug, description) VALUES (?, ?)", perm.Slug, perm.Description)
		if err != nil {
			return fmt.Errorf("rbac: insert permission: %w", err)
		}
		return nil
	})
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// UpdatePermission rewrites slug and description of permission id. Roles
// holding it see the new slug on their next restore.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	in, err := s.normalizePermission(in)
	if err != nil {
		return Permission{}, err
	}
	err = db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		if err := permissionExists(ctx, tx, s.dialect, id); err != nil {
			return err
		}
		if err := slugFree(ctx, tx, s.dialect, "permissions", in.Slug, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(
			"UPDATE permissions SET slug = ?, description = ? WHERE id = ?"), in.Slug, in.Description, id); err != nil {
			return fmt.Errorf("rbac: update permission: %w", err)
		}
		return nil
	})
	if err != nil {
		return Permission{}, err
	}
	return Permission{ID: id, Slug: in.Slug, Description: in.Description}, nil
}

// DeletePermission removes permission id unless a role still holds it.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.pool, func(tx *sql.Tx) error {
		if err := permissionExists(ctx, tx, s.dialect, id); err != nil {
			return err
		}
		var roles int
		if err := tx.QueryRowContext(ctx, s.dialect.Rebind(
			"SELECT COUNT(*) FROM role_permissions WHERE permission_id = ?"), id).Scan(&roles); err != nil {
			return fmt.Errorf("rbac: count permission roles: %w", err)
		}
		if roles > 0 {
			return fmt.Errorf("%w (%d roles)", ErrPermissionInUse, roles)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM permissions WHERE id = ?"), id); err != nil {
			return fmt.Errorf("rbac: delete permission: %w", err)
		}
		return nil
	})
}

func (s *Service) normalizeRole(in RoleInput) (RoleInput, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Description = strings.TrimSpace(in.Description)
	seen := make(map[string]struct{}, len(in.Permissions))
	perms := make([]string, 0, len(in.Permissions))
	for _, slug := range in.Permissions {
		slug = strings.TrimSpace(slug)
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		perms = append(perms, slug)
	}
	in.Permissions = perms
	if err := s.validate.Struct(in); err != nil {
		return RoleInput{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return in, nil
}

func (s *Service) normalizePermission(in PermissionInput) (PermissionInput, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return PermissionInput{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return in, nil
}

// slugFree fails with ErrDuplicateSlug when a row other than exceptID in
// table already uses slug. table is always a package constant.
func slugFree(ctx context.Context, q db.Querier, dialect db.Dialect, table, slug string, exceptID int64) error {
	var n int
	if err := q.QueryRowContext(ctx, dialect.Rebind(
		"SELECT COUNT(*) FROM "+table+" WHERE slug = ? AND id <> ?"), slug, exceptID).Scan(&n); err != nil {
		return fmt.Errorf("rbac: check %s slug: %w", table, err)
	}
	if n > 0 {
		return ErrDuplicateSlug
	}
	return nil
}

func permissionExists(ctx context.Context, q db.Querier, dialect db.Dialect, id int64) error {
	var n int
	if err := q.QueryRowContext(ctx, dialect.Rebind("SELECT COUNT(*) FROM permissions WHERE id = ?"), id).Scan(&n); err != nil {
		return fmt.Errorf("rbac: find permission: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// syncPermissions replaces the grants of roleID with the permissions named
// by slugs and returns the granted slugs ordered by permission id.
func syncPermissions(ctx context.Context, q db.Querier, dialect db.Dialect, roleID int64, slugs []string) ([]string, error) {
	type grantRow struct {
		id   int64
		slug string
	}
	resolved := make([]grantRow, 0, len(slugs))
	if len(slugs) > 0 {
		args := make([]any, 0, len(slugs))
		for _, slug := range slugs {
			args = append(args, slug)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(slugs)), ", ")
		rows, err := q.QueryContext(ctx, dialect.Rebind(
			"SELECT id, slug FROM permissions WHERE slug IN ("+placeholders+") ORDER BY id"), args...)
		if err != nil {
			return nil, fmt.Errorf("rbac: resolve permissions: %w", err)
		}
		known := make(map[string]struct{}, len(slugs))
		for rows.Next() {
			var g grantRow
			if err := rows.Scan(&g.id, &g.slug); err != nil {
				rows.Close()
				return nil, fmt.Errorf("rbac: scan permission: %w", err)
			}
			known[g.slug] = struct{}{}
			resolved = append(resolved, g)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rbac: resolve permissions: %w", err)
		}
		for _, slug := range slugs {
			if _, ok := known[slug]; !ok {
				return nil, fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, slug)
			}
		}
	}

	if _, err := q.ExecContext(ctx, dialect.Rebind("DELETE FROM role_permissions WHERE role_id = ?"), roleID); err != nil {
		return nil, fmt.Errorf("rbac: revoke role permissions: %w", err)
	}
	granted := make([]string, 0, len(resolved))
	for _, g := range resolved {
		if _, err := q.ExecContext(ctx, dialect.Rebind(
			"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)"), roleID, g.id); err != nil {
			return nil, fmt.Errorf("rbac: grant %s: %w", g.slug, err)
		}
		granted = append(granted, g.slug)
	}
	return granted, nil
}
