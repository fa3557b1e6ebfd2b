package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/perseo-cms/perseo/internal/auth"
	"github.com/perseo-cms/perseo/internal/observability"
	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/rbac"
	"github.com/perseo-cms/perseo/internal/shared"
	"github.com/perseo-cms/perseo/internal/users"
	"github.com/perseo-cms/perseo/internal/view"
)

// Deps are the process level resources the HTTP application is built from.
type Deps struct {
	Config       *Config
	Logger       *slog.Logger
	DB           *sql.DB
	Dialect      db.Dialect
	Redis        redis.UniversalClient
	Metrics      *observability.Metrics
	TokenOptions []auth.TokenOption
}

// Build constructs every component and returns the root handler. It fails
// when the signing configuration is unusable.
func Build(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger
	paths := cfg.Paths()

	tokens, err := auth.NewTokenService(cfg.TokenConfig(), logger, deps.TokenOptions...)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	templates, err := view.NewEngine(paths.BasePath + "/static")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	sessionManager := shared.NewSessionManager(deps.Redis, cfg.SessionSecret, shared.SessionOptions{
		CookieName: "perseo_session",
		Path:       cfg.CookiePath,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.CookieSecure || cfg.IsProduction(),
	})

	authRepo := auth.NewRepository(deps.DB, deps.Dialect)
	verifier := auth.NewVerifier(authRepo, logger)
	cookie := cfg.CookieConfig()

	var recorder auth.Recorder
	var denials rbac.DenialRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
		denials = deps.Metrics
	}

	authHandler := auth.NewHandler(auth.HandlerDeps{
		Logger:    logger,
		Verifier:  verifier,
		Tokens:    tokens,
		Cookie:    cookie,
		Paths:     paths,
		Sessions:  sessionManager,
		Templates: templates,
		Recorder:  recorder,
	})
	restorer := auth.NewRestorer(tokens, authRepo, paths, cookie.Name, logger, recorder)

	gate := rbac.Middleware{Logger: logger, Recorder: denials}
	rbacHandler := rbac.NewHandler(logger, rbac.NewService(deps.DB, deps.Dialect), gate)
	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(deps.DB, deps.Dialect)), gate)

	var locales *LocaleResolver
	if cfg.LocaleEnabled {
		locales = NewLocaleResolver(cfg.Locales)
	}

	checks := map[string]HealthCheck{
		"database": func(r *http.Request) error { return deps.DB.PingContext(r.Context()) },
	}
	if deps.Redis != nil {
		checks["redis"] = func(r *http.Request) error { return deps.Redis.Ping(r.Context()).Err() }
	}

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		Restorer:       restorer,
		RBACHandler:    rbacHandler,
		UsersHandler:   usersHandler,
		Locales:        locales,
		Metrics:        deps.Metrics,
		HealthChecks:   checks,
	}), nil
}
