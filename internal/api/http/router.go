package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Rows           *handlers.RowsHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth/v1", cfg.AuthMiddleware.Handle)
	authGroup.Post("/signup", cfg.Auth.SignUp)
	authGroup.Post("/token", cfg.Auth.Token)

	protected := authGroup.Group("", auth.RequireUser())
	protected.Get("/user", cfg.Auth.User)
	protected.Put("/user", cfg.Auth.UpdateUser)
	protected.Post("/logout", cfg.Auth.Logout)

	rest := app.Group("/rest/v1", cfg.AuthMiddleware.Handle)
	rest.Get("/:table", cfg.Rows.Select)
	rest.Post("/:table", cfg.Rows.Insert)
	rest.Patch("/:table", cfg.Rows.Update)
	rest.Delete("/:table", cfg.Rows.Delete)
}
