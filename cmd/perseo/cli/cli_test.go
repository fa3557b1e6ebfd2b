package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/shared"
)

func TestHashPasswordFromFlag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, HashPassword("s3cret-pass", nil, &out))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
}

func TestHashPasswordFromStdin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, HashPassword("", strings.NewReader("from-stdin\nignored\n"), &out))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out.String())), []byte("from-stdin")))

	err := HashPassword("", strings.NewReader(""), &out)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

// expectCatalog registers the queries of a catalog seed where every row and
// grant already exists.
func expectCatalog(mock sqlmock.Sqlmock) {
	catalog := shared.CoreScopes()
	for i, def := range catalog {
		mock.ExpectQuery(`SELECT id FROM permissions WHERE slug = \$1`).
			WithArgs(def.Slug).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(i + 1))
	}
	mock.ExpectQuery(`SELECT id FROM roles WHERE slug = \$1`).
		WithArgs(shared.RoleAdministrator).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	for range catalog {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM role_permissions`).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	}
	mock.ExpectQuery(`SELECT id FROM roles WHERE slug = \$1`).
		WithArgs(shared.RoleEditor).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	for range shared.EditorScopes() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM role_permissions`).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	}
}

func TestSeedCatalogOnly(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectCommit()

	result, err := Seed(context.Background(), pool, db.Postgres, SeedOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"administrator": 1, "editor": 2}, result.RoleIDs)
	assert.Nil(t, result.Admin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCreatesAdmin(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admins WHERE login_name = \$1 OR email = \$2`).
		WithArgs("root", "root@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO admins .* RETURNING id`).
		WithArgs(sqlmock.AnyArg(), "root", sqlmock.AnyArg(), "root@example.com", 1, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	result, err := Seed(context.Background(), pool, db.Postgres, SeedOptions{
		LoginName: "root",
		Email:     "root@example.com",
		Password:  "correct-horse",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Admin)
	assert.Equal(t, int64(42), result.Admin.ID)
	assert.Equal(t, "root", result.Admin.LoginName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRollsBackOnDuplicate(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admins`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err = Seed(context.Background(), pool, db.Postgres, SeedOptions{
		LoginName: "root",
		Email:     "root@example.com",
		Password:  "correct-horse",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRejectsUnknownRole(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()

	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectRollback()

	_, err = Seed(context.Background(), pool, db.Postgres, SeedOptions{LoginName: "root", Role: "superuser"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
