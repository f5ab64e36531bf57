package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/validation"
)

type listOutput struct {
	Tickets  []domain.Ticket  `json:"tickets"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Filters  domain.FilterSet `json:"filters"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		page int
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of tickets, newest first",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if err := loadPage(ctx, a, page); err != nil {
				return err
			}
			st := a.tickets.Snapshot()
			items := a.tickets.FilteredTickets()
			if all {
				items = st.Tickets
			}
			return printJSON(cmd.OutOrStdout(), listOutput{
				Tickets:  items,
				Total:    st.Total,
				Page:     st.Page,
				PageSize: st.PageSize,
				Filters:  st.Filters,
			})
		}),
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page to load")
	cmd.Flags().BoolVar(&all, "all", false, "Ignore the saved filters")
	return cmd
}

func loadPage(ctx context.Context, a *app, page int) error {
	if page <= 1 {
		return a.tickets.Bootstrap(ctx)
	}
	if err := a.tickets.RestoreFilters(ctx); err != nil {
		a.logger.Warn("saved filters not restored", zap.Error(err))
	}
	return a.tickets.SetPage(ctx, page)
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		in       validation.CreateTicketInput
		priority string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new ticket; it starts as ABIERTO",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			in.Priority = domain.TicketPriority(strings.ToUpper(priority))
			created, err := a.tickets.AddTicket(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		}),
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Ticket title")
	cmd.Flags().StringVar(&in.Description, "description", "", "What is going on")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "ALTA, MEDIA or BAJA")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a ticket to ABIERTO, EN_PROGRESO or CERRADO",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			update, err := validation.ValidateStatusUpdate(args[0], domain.TicketStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			updated, err := a.tickets.SetStatus(ctx, update.ID, update.Status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		}),
	}
}

func newAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID [TECHNICIAN]",
		Short: "Assign a ticket, or clear its assignee when TECHNICIAN is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			technician := ""
			if len(args) == 2 {
				technician = args[1]
			}
			updated, err := a.tickets.Assign(ctx, args[0], technician)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		}),
	}
}

func newRespondCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "respond ID MESSAGE...",
		Short: "Record a reply on a ticket",
		Args:  cobra.MinimumNArgs(2),
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			ev, err := a.tickets.Respond(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ev)
		}),
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a ticket",
		Args:    cobra.ExactArgs(1),
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := a.tickets.RemoveTicket(ctx, args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
		}),
	}
}

func newTechniciansCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "technicians",
		Short: "List candidate assignees",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.tickets.Technicians(ctx))
		}),
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var (
		page     int
		filtered bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count tickets by status and priority on one page",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if err := loadPage(ctx, a, page); err != nil {
				return err
			}
			summary := a.tickets.Summary()
			if filtered {
				summary = service.ComputeSummary(a.tickets.FilteredTickets())
			}
			return printJSON(cmd.OutOrStdout(), summary)
		}),
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page to summarize")
	cmd.Flags().BoolVar(&filtered, "filtered", false, "Summarize only tickets matching the saved filters")
	return cmd
}

func newFilterCmd(opts *rootOptions) *cobra.Command {
	var (
		search, status, priority, technician string
		unassigned, reset                    bool
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change the saved ticket filters",
		Long: `filter prints the saved filters. Any flag changes them first; an empty
value clears that filter. Filters persist only when Redis is enabled.`,
		Args: cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if err := a.tickets.RestoreFilters(ctx); err != nil {
				a.logger.Warn("saved filters not restored", zap.Error(err))
			}
			flags := cmd.Flags()
			if reset {
				a.tickets.ClearFilters(ctx)
			}
			if flags.Changed("search") {
				a.tickets.SetSearch(ctx, search)
			}
			if flags.Changed("status") {
				a.tickets.SetStatusFilter(ctx, strings.ToUpper(status))
			}
			if flags.Changed("priority") {
				a.tickets.SetPriorityFilter(ctx, strings.ToUpper(priority))
			}
			switch {
			case unassigned:
				a.tickets.SetTechnicianFilter(ctx, domain.UnassignedFilter)
			case flags.Changed("technician"):
				a.tickets.SetTechnicianFilter(ctx, technician)
			}
			return printJSON(cmd.OutOrStdout(), a.tickets.Filters())
		}),
	}
	cmd.Flags().StringVar(&search, "search", "", "Match title or description")
	cmd.Flags().StringVar(&status, "status", "", "Match status")
	cmd.Flags().StringVar(&priority, "priority", "", "Match priority")
	cmd.Flags().StringVar(&technician, "technician", "", "Match assignee by substring")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "Match tickets without an assignee")
	cmd.Flags().BoolVar(&reset, "clear", false, "Clear every filter first")
	return cmd
}
