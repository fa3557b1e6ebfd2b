package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine("/static")
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

type dashboardUser struct {
	User        string
	ULID        string
	Permissions []string
}

func TestRenderDashboard(t *testing.T) {
	engine, err := NewEngine("/static")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/dashboard.html", TemplateData{
		Title:    "Dashboard",
		AdminURL: "/admin",
		User:     dashboardUser{User: "admin", ULID: "01HZX", Permissions: []string{"manage_users"}},
	})
	require.NoError(t, err)
	body := rr.Body.String()
	assert.Contains(t, body, "manage_users")
	assert.Contains(t, body, "/admin/logout")
	assert.Contains(t, body, "/static/css/admin.css")
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestRenderLoginForm(t *testing.T) {
	engine, err := NewEngine("/static")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/login.html", TemplateData{
		Title: "Sign in",
		Data:  struct{ Action, Redirect string }{"/admin/auth/login", "/admin"},
	})
	require.NoError(t, err)
	assert.Contains(t, rr.Body.String(), `action="/admin/auth/login"`)
	assert.Contains(t, rr.Body.String(), `name="username"`)
}

func TestRenderNilEngine(t *testing.T) {
	var e *Engine
	assert.Error(t, e.Render(httptest.NewRecorder(), "pages/login.html", TemplateData{}))
}
