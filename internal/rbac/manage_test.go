package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

type roleEnvelope struct {
	Success bool   `json:"success"`
	Data    Role   `json:"data"`
	Message string `json:"message"`
}

func send(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateRoleGrantsPermissions(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM roles WHERE slug = \$1 AND id <> \$2`).
		WithArgs("author", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO roles \(ulid, slug, description\) VALUES \(\$1, \$2, \$3\) RETURNING id`).
		WithArgs(sqlmock.AnyArg(), "author", "Writes posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`SELECT id, slug FROM permissions WHERE slug IN \(\$1, \$2\) ORDER BY id`).
		WithArgs("edit_content", "manage_posts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).
			AddRow(5, "manage_posts").
			AddRow(8, "edit_content"))
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO role_permissions \(role_id, permission_id\) VALUES \(\$1, \$2\)`).
		WithArgs(int64(7), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO role_permissions \(role_id, permission_id\) VALUES \(\$1, \$2\)`).
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rr := send(router, http.MethodPost, "/roles",
		`{"slug":" author ","description":"Writes posts","permissions":["edit_content","manage_posts","edit_content"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body roleEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(7), body.Data.ID)
	assert.Len(t, body.Data.ULID, 26)
	assert.Equal(t, []string{"manage_posts", "edit_content"}, body.Data.Permissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM roles WHERE slug = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO roles`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`FROM permissions WHERE slug IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(8, "edit_content"))
	mock.ExpectRollback()

	rr := send(router, http.MethodPost, "/roles", `{"slug":"author","permissions":["edit_content","fly"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `unknown permission \"fly\"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleRejectsDuplicateAndInvalidSlug(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))

	rr := send(router, http.MethodPost, "/roles", `{"slug":"a"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = send(router, http.MethodPost, "/roles", `{"slug":"`+strings.Repeat("r", 51)+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM roles WHERE slug = \$1`).
		WithArgs("editor", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	rr = send(router, http.MethodPost, "/roles", `{"slug":"editor"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "slug already exists")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleReplacesPermissionSet(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ulid FROM roles WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"ulid"}).AddRow("01J0000000000000000000000B"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM roles WHERE slug = \$1 AND id <> \$2`).
		WithArgs("editor", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE roles SET slug = \$1, description = \$2 WHERE id = \$3`).
		WithArgs("editor", "Content only", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, slug FROM permissions WHERE slug IN \(\$1\)`).
		WithArgs("edit_content").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(8, "edit_content"))
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \$1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`INSERT INTO role_permissions`).
		WithArgs(int64(2), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rr := send(router, http.MethodPut, "/roles/2", `{"slug":"editor","description":"Content only","permissions":["edit_content"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body roleEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "01J0000000000000000000000B", body.Data.ULID)
	assert.Equal(t, []string{"edit_content"}, body.Data.Permissions)
	assert.Equal(t, "Role updated successfully", body.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleWithoutPermissionsRevokesAll(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ulid FROM roles WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"ulid"}).AddRow("01J0000000000000000000000B"))
	mock.ExpectQuery(`FROM roles WHERE slug = \? AND id <> \?`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE roles SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \?`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	role, err := NewService(pool, db.MySQL).UpdateRole(context.Background(), 2, RoleInput{Slug: "editor"})
	require.NoError(t, err)
	assert.Empty(t, role.Permissions)
	assert.NotNil(t, role.Permissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleNotFound(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ulid FROM roles WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"ulid"}))
	mock.ExpectRollback()

	rr := send(router, http.MethodPut, "/roles/42", `{"slug":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Role not found"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoleGuards(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT slug FROM roles WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow(shared.RoleAdministrator))
	mock.ExpectRollback()
	rr := send(router, http.MethodDelete, "/roles/1", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "administrator role")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT slug FROM roles WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow(shared.RoleEditor))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admins WHERE role_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectRollback()
	rr = send(router, http.MethodDelete, "/roles/2", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "3 assigned")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT slug FROM roles WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}))
	mock.ExpectRollback()
	rr = send(router, http.MethodDelete, "/roles/9", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRole(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT slug FROM roles WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("author"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admins WHERE role_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM roles WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rr := send(router, http.MethodDelete, "/roles/7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Role deleted successfully"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleWritesRequireManageRoles(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManagePermissions))

	assert.Equal(t, http.StatusForbidden, send(router, http.MethodPost, "/roles", `{"slug":"x1"}`).Code)
	assert.Equal(t, http.StatusForbidden, send(router, http.MethodPut, "/roles/2", `{"slug":"x1"}`).Code)
	assert.Equal(t, http.StatusForbidden, send(router, http.MethodDelete, "/roles/2", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePermission(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManagePermissions))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE slug = \$1 AND id <> \$2`).
		WithArgs("manage_media", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO permissions \(slug, description\) VALUES \(\$1, \$2\) RETURNING id`).
		WithArgs("manage_media", "Upload and delete media").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectCommit()

	rr := send(router, http.MethodPost, "/permissions", `{"slug":"manage_media","description":"Upload and delete media"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body struct {
		Success bool       `json:"success"`
		Data    Permission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, Permission{ID: 12, Slug: "manage_media", Description: "Upload and delete media"}, body.Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePermission(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManagePermissions))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM permissions WHERE slug = \$1 AND id <> \$2`).
		WithArgs("manage_files", int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE permissions SET slug = \$1, description = \$2 WHERE id = \$3`).
		WithArgs("manage_files", "", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	rr := send(router, http.MethodPut, "/permissions/12", `{"slug":"manage_files"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM permissions WHERE slug = \$1 AND id <> \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()
	rr = send(router, http.MethodPut, "/permissions/12", `{"slug":"manage_users"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectRollback()
	rr = send(router, http.MethodPut, "/permissions/99", `{"slug":"manage_files"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Permission not found"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePermission(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManagePermissions))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM role_permissions WHERE permission_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectRollback()
	rr := send(router, http.MethodDelete, "/permissions/3", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "2 roles")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM role_permissions WHERE permission_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM permissions WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	rr = send(router, http.MethodDelete, "/permissions/12", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Permission deleted successfully"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionInputValidation(t *testing.T) {
	svc := NewService(nil, db.Postgres)

	_, err := svc.CreatePermission(context.Background(), PermissionInput{Slug: " x "})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreatePermission(context.Background(), PermissionInput{Slug: strings.Repeat("p", 101)})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateRole(context.Background(), RoleInput{Slug: "author", Permissions: []string{" "}})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
