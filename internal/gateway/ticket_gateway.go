// Package gateway is the only code that talks to the ticket store. It
// validates input, probes connectivity before writes, writes in the current
// column layout with a fallback to the legacy one, and records audit events
// without making callers wait for them.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/mapper"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/validation"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

const defaultPageSize = 20

// Tables names the store tables the gateway reads and writes.
type Tables struct {
	Tickets           string
	Events            string
	TechnicianSources []string
}

// DefaultTables matches the hosted project layout.
func DefaultTables() Tables {
	return Tables{
		Tickets:           "tickets",
		Events:            "ticket_events",
		TechnicianSources: []string{"technicians", "users", "profiles"},
	}
}

// Dependencies bundles collaborators for the gateway.
type Dependencies struct {
	Store      repository.RowStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Tables     Tables
	Now        func() time.Time
}

// TicketGateway performs remote ticket operations.
type TicketGateway struct {
	store      repository.RowStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	tables     Tables
	now        func() time.Time

	pending sync.WaitGroup
}

// New constructs the gateway.
func New(deps Dependencies) *TicketGateway {
	tables := deps.Tables
	defaults := DefaultTables()
	if tables.Tickets == "" {
		tables.Tickets = defaults.Tickets
	}
	if tables.Events == "" {
		tables.Events = defaults.Events
	}
	if tables.TechnicianSources == nil {
		tables.TechnicianSources = defaults.TechnicianSources
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TicketGateway{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("gateway"),
		metrics:    deps.Metrics,
		tables:     tables,
		now:        now,
	}
}

// Ping probes the store. Failure is reported as DB_CONNECTION.
func (g *TicketGateway) Ping(ctx context.Context) error {
	if err := g.store.Ping(ctx); err != nil {
		return apperrors.NewConnectionError(err)
	}
	return nil
}

// ListPaged returns one page of tickets, newest first, with the exact total.
func (g *TicketGateway) ListPaged(ctx context.Context, page, pageSize int) (domain.PagedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	rows, total, err := g.store.Select(ctx, g.tables.Tickets, repository.SelectQuery{
		OrderBy:    "created_at",
		Descending: true,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
		WithCount:  true,
	})
	if err != nil {
		return domain.PagedResult{}, g.fail("list", err)
	}

	items := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		if t := mapper.ToDomain(row); t != nil {
			items = append(items, *t)
		}
	}
	if total < len(items) {
		total = len(items)
	}
	return domain.PagedResult{Items: items, Total: total}, nil
}

// Create validates and inserts a ticket.
func (g *TicketGateway) Create(ctx context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
	valid, err := validation.ValidateCreate(in)
	if err != nil {
		return nil, g.fail("create", err)
	}
	if err := g.Ping(ctx); err != nil {
		return nil, g.fail("create", err)
	}

	ticket := domain.Ticket{
		Title:       valid.Title,
		Description: valid.Description,
		Priority:    valid.Priority,
		Status:      valid.Status,
		CreatedAt:   g.now(),
	}
	row, err := g.writeDual(ctx, "create", func(scheme mapper.Scheme) (repository.Row, error) {
		return g.store.Insert(ctx, g.tables.Tickets, mapper.ToStorage(ticket, scheme))
	})
	if err != nil {
		return nil, g.fail("create", err)
	}
	created := mapper.ToDomain(row)
	if created == nil {
		return nil, g.fail("create", apperrors.NewUnknownError("store returned no ticket", nil))
	}

	g.recordEvent(ctx, domain.TicketEvent{
		TicketID: created.ID,
		Type:     domain.EventCreated,
		Details: map[string]any{
			"title":    created.Title,
			"priority": string(created.Priority),
		},
	})
	return created, nil
}

// UpdateStatus changes a ticket's status.
func (g *TicketGateway) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := g.guardTemporary("update_status", id); err != nil {
		return nil, err
	}
	valid, err := validation.ValidateStatusUpdate(id, status)
	if err != nil {
		return nil, g.fail("update_status", err)
	}

	updated, err := g.patchTicket(ctx, "update_status", valid.ID, func(scheme mapper.Scheme) repository.Row {
		return mapper.StatusPatch(valid.Status, scheme)
	})
	if err != nil {
		return nil, err
	}

	g.recordEvent(ctx, domain.TicketEvent{
		TicketID: updated.ID,
		Type:     domain.EventStatusUpdated,
		Details:  map[string]any{"status": string(valid.Status)},
	})
	return updated, nil
}

// Assign sets the ticket's technician. An empty technician clears it.
func (g *TicketGateway) Assign(ctx context.Context, id, technician string) (*domain.Ticket, error) {
	if err := g.guardTemporary("assign", id); err != nil {
		return nil, err
	}
	technician, err := validation.ValidateAssignment(id, technician)
	if err != nil {
		return nil, g.fail("assign", err)
	}

	updated, err := g.patchTicket(ctx, "assign", id, func(scheme mapper.Scheme) repository.Row {
		return mapper.AssignmentPatch(technician, scheme)
	})
	if err != nil {
		return nil, err
	}

	details := map[string]any{"technician": nil}
	if technician != "" {
		details["technician"] = technician
	}
	g.recordEvent(ctx, domain.TicketEvent{
		TicketID: updated.ID,
		Type:     domain.EventAssigned,
		Details:  details,
	})
	return updated, nil
}

// Respond records a technician reply. Unlike other audit events the reply is
// the result of the call, so it is written synchronously.
func (g *TicketGateway) Respond(ctx context.Context, id, message string) (*domain.TicketEvent, error) {
	if err := g.guardTemporary("respond", id); err != nil {
		return nil, err
	}
	message, err := validation.ValidateResponse(id, message)
	if err != nil {
		return nil, g.fail("respond", err)
	}
	if err := g.Ping(ctx); err != nil {
		return nil, g.fail("respond", err)
	}

	ev := domain.TicketEvent{
		TicketID:  id,
		Type:      domain.EventResponse,
		Details:   map[string]any{"message": message},
		CreatedAt: g.now(),
	}
	row, err := g.appendEvent(ctx, ev)
	if err != nil {
		classified := Classify(err)
		if classified.Code != apperrors.CodeNetwork && classified.Code != apperrors.CodeDBConnection {
			classified = apperrors.NewSchemaError("response could not be recorded", err)
		}
		return nil, g.fail("respond", classified)
	}

	if stored := mapper.EventToDomain(row); stored != nil && stored.ID != "" {
		ev.ID = stored.ID
	}
	g.publish(ctx, ev, nil)
	return &ev, nil
}

// Delete removes a ticket. Temporary ids never reached the store, so they
// succeed without a remote call.
func (g *TicketGateway) Delete(ctx context.Context, id string) error {
	if domain.IsTemporaryID(id) {
		return nil
	}
	if id == "" {
		return g.fail("delete", apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "id", Message: "ticket id is required"},
		}))
	}
	if err := g.Ping(ctx); err != nil {
		return g.fail("delete", err)
	}
	if err := g.store.Delete(ctx, g.tables.Tickets, id); err != nil {
		return g.fail("delete", err)
	}
	g.recordEvent(ctx, domain.TicketEvent{TicketID: id, Type: domain.EventDeleted})
	return nil
}

// Flush blocks until every in-flight audit event has been written or dropped.
func (g *TicketGateway) Flush() {
	g.pending.Wait()
}

func (g *TicketGateway) patchTicket(ctx context.Context, op, id string, patch func(mapper.Scheme) repository.Row) (*domain.Ticket, error) {
	if err := g.Ping(ctx); err != nil {
		return nil, g.fail(op, err)
	}
	row, err := g.writeDual(ctx, op, func(scheme mapper.Scheme) (repository.Row, error) {
		return g.store.Update(ctx, g.tables.Tickets, id, patch(scheme))
	})
	if err != nil {
		return nil, g.fail(op, err)
	}
	updated := mapper.ToDomain(row)
	if updated == nil {
		return nil, g.fail(op, apperrors.NewUnknownError(fmt.Sprintf("ticket %s not found", id), nil))
	}
	return updated, nil
}

// writeDual attempts the write with each scheme in mapper.Schemes order and
// stops at the first success. The error of the last attempt is the one
// returned.
func (g *TicketGateway) writeDual(ctx context.Context, op string, write func(mapper.Scheme) (repository.Row, error)) (repository.Row, error) {
	var err error
	for _, scheme := range mapper.Schemes() {
		var row repository.Row
		if row, err = write(scheme); err == nil {
			return row, nil
		}
		g.logger.Debug("ticket write failed",
			zap.String("operation", op), zap.String("scheme", scheme.String()), zap.Error(err))
	}
	return nil, err
}

func (g *TicketGateway) appendEvent(ctx context.Context, ev domain.TicketEvent) (repository.Row, error) {
	return g.writeDual(ctx, "event", func(scheme mapper.Scheme) (repository.Row, error) {
		return g.store.Insert(ctx, g.tables.Events, mapper.EventToStorage(ev, scheme))
	})
}

func (g *TicketGateway) guardTemporary(op, id string) error {
	if !domain.IsTemporaryID(id) {
		return nil
	}
	return g.fail(op, apperrors.NewUnknownError(fmt.Sprintf("ticket %s has not been saved yet", id), nil))
}

func (g *TicketGateway) fail(op string, err error) error {
	classified := Classify(err)
	g.metrics.RecordGatewayError(op, classified.Code)
	if classified.Code == apperrors.CodeValidation {
		g.logger.Debug("rejected invalid input", zap.String("operation", op), zap.Error(classified))
	} else {
		g.logger.Warn("gateway operation failed",
			zap.String("operation", op), zap.String("code", classified.Code), zap.Error(err))
	}
	return classified
}
