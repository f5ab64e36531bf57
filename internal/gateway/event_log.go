package gateway

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/mapper"
)

// recordEvent appends an audit event in the background. The outcome goes to
// the log, metrics and the dispatcher, never to the caller of the mutation.
func (g *TicketGateway) recordEvent(ctx context.Context, ev domain.TicketEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = g.now()
	}
	ctx = context.WithoutCancel(ctx)

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()

		row, err := g.appendEvent(ctx, ev)
		if err != nil {
			g.metrics.RecordEventFailure(string(ev.Type))
			g.logger.Warn("ticket event not recorded",
				zap.String("ticket_id", ev.TicketID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		} else if stored := mapper.EventToDomain(row); stored != nil && stored.ID != "" {
			ev.ID = stored.ID
		}
		g.publish(ctx, ev, err)
	}()
}

func (g *TicketGateway) publish(ctx context.Context, ev domain.TicketEvent, cause error) {
	if g.dispatcher == nil {
		return
	}
	err := g.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.TypeOf(ev.Type),
		TicketID:  ev.TicketID,
		Timestamp: g.now(),
		Record:    ev,
		Err:       cause,
	})
	if err != nil {
		g.logger.Debug("event subscriber failed", zap.String("ticket_id", ev.TicketID), zap.Error(err))
	}
}
