package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/shared"
)

func newTestRouter(t *testing.T, sess *shared.Session) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	h := NewHandler(nil, NewService(pool, db.Postgres), Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	h.MountRoutes(r)
	return r, mock
}

func TestPermissionsEndpointRequiresManagePermissions(t *testing.T) {
	router, _ := newTestRouter(t, loggedIn(shared.PermManageRoles))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGetPermission(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManagePermissions))
	mock.ExpectQuery("FROM permissions WHERE id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "description"}).AddRow(3, "manage_permissions", "x"))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/3", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success bool       `json:"success"`
		Data    Permission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "manage_permissions", body.Data.Slug)
}

func TestGetRoleBadID(t *testing.T) {
	router, _ := newTestRouter(t, loggedIn(shared.PermManageRoles))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/roles/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListRolesStoreErrorHidesDetail(t *testing.T) {
	router, mock := newTestRouter(t, loggedIn(shared.PermManageRoles))
	mock.ExpectQuery("SELECT COUNT").WillReturnError(assert.AnError)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
}
