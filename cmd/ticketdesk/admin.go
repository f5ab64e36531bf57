package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketdesk/internal/api/http"
	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

const shutdownTimeout = 5 * time.Second

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ticket tables in POSTGRES_DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pg, err := persistence.NewPostgres(ctx, opts.cfg.Postgres, opts.logger)
			if err != nil {
				return err
			}
			defer pg.Close()

			applied, err := persistence.RunMigrations(ctx, pg.Pool, opts.logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"applied": applied})
		},
	}
}

func newDevServerCmd(opts *rootOptions) *cobra.Command {
	var (
		scheme      string
		technicians []string
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve a local stand-in for the hosted REST and auth API",
		Long: `devserver serves /rest/v1 and /auth/v1 out of memory so the rest backend
can run without a hosted project. --scheme B lays the tickets table out with
the legacy Spanish columns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := *opts.cfg
			if scheme != "" {
				cfg.DevServer.TicketsScheme = strings.ToUpper(scheme)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger := opts.logger

			mem := repository.NewMemoryRowStore()
			httptransport.DefineTables(mem, cfg.Backend.TicketsTable, cfg.Backend.EventsTable, httptransport.SchemeFromConfig(cfg.DevServer))
			for _, name := range technicians {
				if _, err := mem.Insert(ctx, "technicians", repository.Row{"name": name}); err != nil {
					return fmt.Errorf("seed technician %q: %w", name, err)
				}
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			pingers := map[string]handlers.Pinger{}
			if cfg.Redis.Enabled {
				r := persistence.NewRedis(ctx, cfg.Redis, logger)
				defer r.Close()
				pingers["redis"] = r
			}

			app := httptransport.NewServer(httptransport.ServerDependencies{
				Config:   cfg,
				Store:    mem,
				Logger:   logger,
				Metrics:  observability.NewMetrics(registry),
				Gatherer: registry,
				Pingers:  pingers,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Listen(cfg.DevServer.Addr())
			}()
			logger.Info("dev backend listening",
				zap.String("addr", cfg.DevServer.Addr()),
				zap.String("tickets_scheme", cfg.DevServer.TicketsScheme),
			)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down dev backend")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "", "Tickets table layout, A or B (default $DEVSERVER_TICKETS_SCHEME)")
	cmd.Flags().StringSliceVar(&technicians, "technician", nil, "Seed a technician name (repeatable)")
	return cmd
}
