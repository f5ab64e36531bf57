package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/mapper"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

// ServerDependencies bundles what the dev backend serves and reports to.
// Pingers are extra readiness checks; the store is always checked.
type ServerDependencies struct {
	Config   config.Config
	Store    repository.RowStore
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Pingers  map[string]handlers.Pinger
}

// NewServer builds the dev backend: a stand-in for the hosted REST and auth
// API, serving rows and accounts out of deps.Store.
func NewServer(deps ServerDependencies) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("devserver")

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, deps.Metrics, cfg.DevServer.RequestTimeout())

	pingers := map[string]handlers.Pinger{"store": deps.Store}
	for name, p := range deps.Pingers {
		pingers[name] = p
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Rows:           handlers.NewRowsHandler(deps.Store),
		Auth:           handlers.NewAuthHandler(deps.Store, tokens, cfg.Auth.BcryptCost, cfg.DevServer.AutoConfirm),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, cfg.DevServer.AnonKey),
		Gatherer:       deps.Gatherer,
	})
	return app
}

// DefineTables declares the dev backend tables on mem, with the tickets table
// laid out in scheme. The event log always uses scheme A.
func DefineTables(mem *repository.MemoryRowStore, tickets, events string, scheme mapper.Scheme) {
	mem.DefineTable(tickets, mapper.TicketColumns(scheme)...)
	mem.DefineTable(events, mapper.EventColumns(mapper.SchemeA)...)
	mem.DefineTable("technicians", "name", "email")
	mem.DefineTable(handlers.AccountsTable, handlers.AccountColumns()...)
}

// SchemeFromConfig maps DEVSERVER_TICKETS_SCHEME to a mapper scheme.
func SchemeFromConfig(cfg config.DevServerConfig) mapper.Scheme {
	if cfg.TicketsScheme == "B" {
		return mapper.SchemeB
	}
	return mapper.SchemeA
}
