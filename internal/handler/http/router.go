package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/service"
	"github.com/prostokit/excursions/pkg/health"
	"github.com/prostokit/excursions/pkg/middleware"
)

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	Sessions       *service.SessionService
	Health         *health.Handler
	Logger         *slog.Logger
	ServiceName    string
	AllowedOrigins []string
}

// NewRouter builds the HTTP routing table. Session endpoints are public;
// everything under /users requires a valid access token, and user lookup by
// id additionally requires the admin role.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(cfg.Sessions, cfg.Logger)
	userHandler := NewUserHandler(cfg.Sessions, cfg.Logger)

	resolve := principalResolver(cfg.Sessions)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Auth(resolve))

			r.Get("/me", userHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin.String()))
				r.Get("/{id}", userHandler.GetByID)
			})
		})
	})

	return r
}

// principalResolver adapts the session service to the auth middleware. Every
// request re-resolves the token subject against storage, so revoked accounts
// and stale roles never pass.
func principalResolver(sessions *service.SessionService) middleware.PrincipalResolver {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		user, err := sessions.ResolvePrincipal(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role.String(),
		}, nil
	}
}
