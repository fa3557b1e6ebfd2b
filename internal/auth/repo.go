package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/perseo-cms/perseo/internal/platform/db"
)

// Repository is the credential store consumed by the verifier and the restorer.
type Repository interface {
	// FindByLoginKey returns the enabled admin whose login name or email equals key.
	FindByLoginKey(ctx context.Context, key string) (*Principal, error)
	// FindByULID returns the enabled admin with the given ULID.
	FindByULID(ctx context.Context, ulid string) (*Principal, error)
}

// SQLRepository implements Repository over database/sql.
type SQLRepository struct {
	pool    *sql.DB
	dialect db.Dialect
}

// NewRepository constructs a SQL backed repository.
func NewRepository(pool *sql.DB, dialect db.Dialect) *SQLRepository {
	return &SQLRepository{pool: pool, dialect: dialect}
}

// The LEFT JOINs keep admins whose role has no permissions; the gate rejects
// them later with "no permissions assigned".
const principalSelect = `SELECT a.id, a.ulid, a.login_name, a.password_hash, a.email, a.status, a.role_id, p.id, p.slug
FROM admins a
LEFT JOIN role_permissions rp ON rp.role_id = a.role_id
LEFT JOIN permissions p ON p.id = rp.permission_id
`

const (
	findByLoginKeyQuery = principalSelect + `WHERE (a.login_name = ? OR a.email = ?) AND a.status = 1
ORDER BY a.id, p.id`
	findByULIDQuery = principalSelect + `WHERE a.ulid = ? AND a.status = 1
ORDER BY a.id, p.id`
)

// FindByLoginKey fetches an enabled admin by login name or email.
func (r *SQLRepository) FindByLoginKey(ctx context.Context, key string) (*Principal, error) {
	return r.findOne(ctx, findByLoginKeyQuery, key, key)
}

// FindByULID fetches an enabled admin by ULID.
func (r *SQLRepository) FindByULID(ctx context.Context, ulid string) (*Principal, error) {
	return r.findOne(ctx, findByULIDQuery, ulid)
}

// findOne folds the one-row-per-permission result into a Principal. When a
// key matches several admins the lowest id wins.
func (r *SQLRepository) findOne(ctx context.Context, query string, args ...any) (*Principal, error) {
	rows, err := r.pool.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("auth: query principal: %w", err)
	}
	defer rows.Close()

	var principal *Principal
	for rows.Next() {
		var (
			p      Principal
			status int
			permID sql.NullInt64
			slug   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ULID, &p.LoginName, &p.PasswordHash, &p.Email, &status, &p.RoleID, &permID, &slug); err != nil {
			return nil, fmt.Errorf("auth: scan principal: %w", err)
		}
		if principal == nil {
			p.Status = Status(status)
			principal = &p
		} else if p.ID != principal.ID {
			break
		}
		if permID.Valid && slug.Valid {
			principal.Permissions = append(principal.Permissions, PermissionRef{ID: permID.Int64, Slug: slug.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate principal: %w", err)
	}
	if principal == nil {
		return nil, ErrPrincipalNotFound
	}
	return principal, nil
}

var _ Repository = (*SQLRepository)(nil)
