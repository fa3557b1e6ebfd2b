package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/shared"
)

// Repository reads and writes the admins table.
type Repository struct {
	pool    *sql.DB
	dialect db.Dialect
}

// NewRepository constructs a Repository.
func NewRepository(pool *sql.DB, dialect db.Dialect) *Repository {
	return &Repository{pool: pool, dialect: dialect}
}

const adminColumns = `a.id, a.ulid, a.login_name, a.email, a.status, a.role_id, COALESCE(r.slug, '')`

// ListAdmins returns one page of admins ordered by id and the total count.
func (r *Repository) ListAdmins(ctx context.Context, limit, offset int) ([]Admin, int, error) {
	var total int
	if err := r.pool.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count admins: %w", err)
	}
	rows, err := r.pool.QueryContext(ctx, r.dialect.Rebind(
		"SELECT "+adminColumns+" FROM admins a LEFT JOIN roles r ON r.id = a.role_id ORDER BY a.id LIMIT ? OFFSET ?"),
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]Admin, 0, limit)
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.ID, &a.ULID, &a.LoginName, &a.Email, &a.Status, &a.RoleID, &a.RoleSlug); err != nil {
			return nil, 0, fmt.Errorf("users: scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, total, rows.Err()
}

// GetAdmin fetches one admin by id.
func (r *Repository) GetAdmin(ctx context.Context, id int64) (Admin, error) {
	var a Admin
	err := r.pool.QueryRowContext(ctx, r.dialect.Rebind(
		"SELECT "+adminColumns+" FROM admins a LEFT JOIN roles r ON r.id = a.role_id WHERE a.id = ?"), id).
		Scan(&a.ID, &a.ULID, &a.LoginName, &a.Email, &a.Status, &a.RoleID, &a.RoleSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Admin{}, shared.ErrNotFound
		}
		return Admin{}, fmt.Errorf("users: get admin: %w", err)
	}
	return a, nil
}

// InsertAdmin writes a new enabled admin using q, which may be a transaction.
func InsertAdmin(ctx context.Context, q db.Querier, dialect db.Dialect, a Admin, passwordHash string) (int64, error) {
	id, err := dialect.InsertID(ctx, q,
		"INSERT INTO admins (ulid, login_name, password_hash, email, status, role_id) VALUES (?, ?, ?, ?, ?, ?)",
		a.ULID, a.LoginName, passwordHash, a.Email, a.Status, a.RoleID)
	if err != nil {
		return 0, fmt.Errorf("users: insert admin: %w", err)
	}
	return id, nil
}

// ExistsByLoginKey reports whether login name or email is already taken.
func ExistsByLoginKey(ctx context.Context, q db.Querier, dialect db.Dialect, loginName, email string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, dialect.Rebind(
		"SELECT COUNT(*) FROM admins WHERE login_name = ? OR email = ?"), loginName, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("users: check admin: %w", err)
	}
	return n > 0, nil
}

// LoginKeyTakenByOther reports whether another admin than id already uses
// the login name or email.
func LoginKeyTakenByOther(ctx context.Context, q db.Querier, dialect db.Dialect, id int64, loginName, email string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, dialect.Rebind(
		"SELECT COUNT(*) FROM admins WHERE id <> ? AND (login_name = ? OR email = ?)"), id, loginName, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("users: check admin: %w", err)
	}
	return n > 0, nil
}

// InTx runs fn inside a transaction on the repository pool.
func (r *Repository) InTx(ctx context.Context, fn func(q db.Querier, dialect db.Dialect) error) error {
	return db.WithTx(ctx, r.pool, func(tx *sql.Tx) error {
		return fn(tx, r.dialect)
	})
}

// UpdateAdmin rewrites the editable columns of admin a.ID. An empty
// passwordHash leaves the stored hash untouched.
func UpdateAdmin(ctx context.Context, q db.Querier, dialect db.Dialect, a Admin, passwordHash string) error {
	query := "UPDATE admins SET login_name = ?, email = ?, role_id = ?, status = ? WHERE id = ?"
	args := []any{a.LoginName, a.Email, a.RoleID, a.Status, a.ID}
	if passwordHash != "" {
		query = "UPDATE admins SET login_name = ?, email = ?, role_id = ?, status = ?, password_hash = ? WHERE id = ?"
		args = []any{a.LoginName, a.Email, a.RoleID, a.Status, passwordHash, a.ID}
	}
	if _, err := q.ExecContext(ctx, dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("users: update admin: %w", err)
	}
	return nil
}

// AdminExists reports whether admin id exists. MySQL reports zero affected
// rows for an UPDATE that changes nothing, so updates check first.
func AdminExists(ctx context.Context, q db.Querier, dialect db.Dialect, id int64) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, dialect.Rebind("SELECT COUNT(*) FROM admins WHERE id = ?"), id).Scan(&n); err != nil {
		return false, fmt.Errorf("users: find admin: %w", err)
	}
	return n > 0, nil
}

// DeleteAdmin removes admin id.
func (r *Repository) DeleteAdmin(ctx context.Context, id int64) error {
	res, err := r.pool.ExecContext(ctx, r.dialect.Rebind("DELETE FROM admins WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("users: delete admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users: rows affected: %w", err)
	}
	if n == 0 {
		return shared.ErrNotFound
	}
	return nil
}
