package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waterdash/internal/config"
	"waterdash/internal/handler"
	"waterdash/internal/middleware"
	"waterdash/internal/service"
)

func New(
	cfg *config.Config,
	registry *prometheus.Registry,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	dataHandler *handler.DataHandler,
	auditHandler *handler.AuditHandler,
	healthHandler *handler.HealthHandler,
	docsHandler *handler.DocsHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	metricsMiddleware := middleware.NewMetrics(registry)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metricsMiddleware.Handler)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", docsHandler.OpenAPI)
	r.Get("/swagger", docsHandler.SwaggerUI)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", authHandler.Login)
			auth.Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		api.Route("/data", func(data chi.Router) {
			// Download authenticates by export token, not session, so a
			// plain browser link works.
			data.Get("/download", dataHandler.Download)

			data.Group(func(authed chi.Router) {
				authed.Use(authMiddleware.RequireAuth)
				authed.Get("/countries", dataHandler.Countries)
				authed.Get("/kpis", dataHandler.ListKPIs)
				authed.Get("/kpis/{name}", dataHandler.GetKPI)
				authed.With(authMiddleware.RequirePermission(service.PermExportData)).
					Post("/kpis/{name}/export", dataHandler.IssueExport)
			})
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuth)
			users.With(authMiddleware.RequirePermission(service.PermManageUsers)).Get("/", userHandler.List)
			users.With(authMiddleware.RequirePermission(service.PermManageUsers)).Post("/", userHandler.Create)
			// Password changes are open to every account for the self case;
			// the service enforces manage rights for anyone else.
			users.Put("/{userID}/password", userHandler.SetPassword)
			users.With(authMiddleware.RequirePermission(service.PermManageUsers)).
				Delete("/{userID}", userHandler.Deactivate)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(service.PermViewAuditLog)).
			Get("/audit", auditHandler.List)
	})

	return r
}
