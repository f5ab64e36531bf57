package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketdesk/internal/api/http"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/gateway"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/worker"
)

const activityBufferSize = 50

// app is the wired ticket layer for one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	gateway  *gateway.TicketGateway
	tickets  *service.TicketService
	session  *service.SessionService
	activity *service.ActivityService

	closers []func()
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, logger := opts.cfg, opts.logger
	a := &app{cfg: cfg, logger: logger}

	prefs := repository.NewMemoryPreferenceRepository()
	if cfg.Redis.Enabled {
		r := persistence.NewRedis(ctx, cfg.Redis, logger)
		a.closers = append(a.closers, r.Close)
		prefs = r.Preferences()
	}

	var (
		store    repository.RowStore
		provider auth.Provider
	)
	switch cfg.Backend.Kind {
	case config.BackendREST:
		client := persistence.NewRestClient(cfg.Rest, logger)
		store = repository.NewRestRowStore(client, cfg.Rest.AnonKey, cfg.Backend.TicketsTable, func() string {
			return a.session.AccessToken()
		})
		provider = auth.NewRestProvider(client, cfg.Rest.AnonKey)
	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if _, err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				a.Close()
				return nil, err
			}
		}
		store = pg.RowStore()
		provider = auth.NewLocalProvider()
	default:
		mem := repository.NewMemoryRowStore()
		httptransport.DefineTables(mem, cfg.Backend.TicketsTable, cfg.Backend.EventsTable, httptransport.SchemeFromConfig(cfg.DevServer))
		store = mem
		provider = auth.NewLocalProvider()
		logger.Debug("no remote backend configured; tickets live in this process only")
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	dispatcher := events.NewInMemoryDispatcher()
	a.activity = service.NewActivityService(dispatcher, logger, activityBufferSize)
	worker.StartActivityWorker(a.activity)

	a.gateway = gateway.New(gateway.Dependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Tables: gateway.Tables{
			Tickets:           cfg.Backend.TicketsTable,
			Events:            cfg.Backend.EventsTable,
			TechnicianSources: cfg.Backend.TechnicianSources,
		},
	})
	a.tickets = service.NewTicketService(service.TicketDependencies{
		Gateway:     a.gateway,
		Preferences: prefs,
		Logger:      logger,
		Metrics:     metrics,
		PageSize:    cfg.Backend.PageSize,
	})
	a.session = service.NewSessionService(service.SessionDependencies{
		Provider:    provider,
		Preferences: prefs,
		Logger:      logger,
	})
	return a, nil
}

// Close waits for outstanding event writes, then releases connections.
func (a *app) Close() {
	if a.gateway != nil {
		a.gateway.Flush()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// runWithApp wires the ticket layer, restores the saved session so its token
// reaches the store, and hands both to fn.
func runWithApp(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, opts)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Resume(ctx); err != nil {
			a.logger.Warn("saved session not restored", zap.Error(err))
		}
		return fn(ctx, cmd, a, args)
	}
}
