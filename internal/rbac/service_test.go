package rbac

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/shared"
)

func TestListRolesAttachesPermissions(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT id, ulid, slug, description FROM roles ORDER BY id LIMIT \\$1 OFFSET \\$2").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ulid", "slug", "description"}).
			AddRow(1, "01J0000000000000000000000A", "administrator", "Full system access").
			AddRow(2, "01J0000000000000000000000B", "editor", "Can create and edit content"))
	mock.ExpectQuery("WHERE rp.role_id IN \\(\\$1, \\$2\\) ORDER BY rp.role_id, p.id").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "slug"}).
			AddRow(1, "manage_users").
			AddRow(1, "manage_roles").
			AddRow(2, "edit_content"))

	svc := NewService(pool, db.Postgres)
	roles, total, err := svc.ListRoles(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, roles, 2)
	assert.Equal(t, []string{"manage_users", "manage_roles"}, roles[0].Permissions)
	assert.Equal(t, []string{"edit_content"}, roles[1].Permissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoleNotFound(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectQuery("FROM roles WHERE id = \\?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ulid", "slug", "description"}))

	_, err = NewService(pool, db.MySQL).GetRole(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPermissions(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectQuery("SELECT id, slug, description FROM permissions ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "description"}).
			AddRow(1, "manage_users", "Create, edit, delete users"))

	perms, err := NewService(pool, db.Postgres).ListPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Permission{{ID: 1, Slug: "manage_users", Description: "Create, edit, delete users"}}, perms)
}

func TestSeedCatalogReusesExistingRows(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	catalog := shared.CoreScopes()
	for i, def := range catalog {
		mock.ExpectQuery("SELECT id FROM permissions WHERE slug = \\?").
			WithArgs(def.Slug).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(i + 1))
	}
	// administrator exists with every grant, editor is new.
	mock.ExpectQuery("SELECT id FROM roles WHERE slug = \\?").
		WithArgs(shared.RoleAdministrator).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	for range catalog {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM role_permissions").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	}
	mock.ExpectQuery("SELECT id FROM roles WHERE slug = \\?").
		WithArgs(shared.RoleEditor).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO roles \\(ulid, slug, description\\)").
		WithArgs(sqlmock.AnyArg(), shared.RoleEditor, "Can create and edit content").
		WillReturnResult(sqlmock.NewResult(2, 1))
	for range shared.EditorScopes() {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM role_permissions").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectExec("INSERT INTO role_permissions").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	roleIDs, err := SeedCatalog(context.Background(), pool, db.MySQL)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{shared.RoleAdministrator: 1, shared.RoleEditor: 2}, roleIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}
