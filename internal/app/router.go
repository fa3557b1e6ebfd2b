package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/perseo-cms/perseo/internal/auth"
	"github.com/perseo-cms/perseo/internal/observability"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/rbac"
	"github.com/perseo-cms/perseo/internal/shared"
	"github.com/perseo-cms/perseo/internal/users"
	"github.com/perseo-cms/perseo/internal/view"
	"github.com/perseo-cms/perseo/web"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	Restorer       *auth.Restorer
	RBACHandler    *rbac.Handler
	UsersHandler   *users.Handler
	Locales        *LocaleResolver
	Metrics        *observability.Metrics
	HealthChecks   map[string]HealthCheck
}

// NewRouter constructs the chi.Router with Perseo defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", healthHandler(params))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	paths := params.Config.Paths()
	mount := func(r chi.Router) {
		r.Route("/"+paths.AdminPath, func(r chi.Router) {
			mountAdmin(r, params)
		})
	}

	site := func(r chi.Router) {
		if params.Config.LocaleEnabled && params.Locales != nil {
			r.Get("/"+paths.AdminPath, func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, paths.Admin(params.Locales.Preferred(req)), http.StatusFound)
			})
			r.Route("/{locale}", func(r chi.Router) {
				r.Use(params.Locales.Middleware)
				mount(r)
			})
		} else {
			mount(r)
		}

		staticFS, err := fs.Sub(web.Static, "static")
		if err != nil {
			params.Logger.Error("create static sub filesystem", slog.Any("error", err))
			return
		}
		fileServer := http.StripPrefix(paths.BasePath+"/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}
	if paths.BasePath == "" {
		site(r)
	} else {
		r.Route(paths.BasePath, site)
	}

	return r
}

// mountAdmin wires the admin subtree: public auth routes first, then the
// restorer guarding everything else.
func mountAdmin(r chi.Router, params RouterParams) {
	r.Group(func(r chi.Router) {
		params.AuthHandler.MountPublic(r, LoginRateLimit(params.Config))
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Restorer.Middleware)
		params.AuthHandler.MountProtected(r)
		r.Get("/", dashboardHandler(params))
		r.Get("/dashboard", dashboardHandler(params))
		r.Route("/api", func(r chi.Router) {
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.RBACHandler != nil {
				params.RBACHandler.MountRoutes(r)
			}
		})
	})
}

func dashboardHandler(params RouterParams) http.HandlerFunc {
	paths := params.Config.Paths()
	return func(w http.ResponseWriter, r *http.Request) {
		var user any
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			if state, ok := auth.LoadState(sess); ok {
				user = state
			}
		}
		locale := shared.LocaleFromContext(r.Context())
		data := view.TemplateData{
			Title:       "Dashboard",
			CurrentPath: r.URL.Path,
			Locale:      locale,
			AdminURL:    paths.Admin(locale),
			StaticURL:   paths.BasePath + "/static",
			User:        user,
		}
		if err := params.Templates.Render(w, "pages/dashboard.html", data); err != nil {
			params.Logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func healthHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range params.HealthChecks {
			if err := check(r); err != nil {
				params.Logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "down"
				continue
			}
			body[name] = "up"
		}
		httpx.JSON(w, status, body)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
