package service

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/events"
)

const defaultActivitySize = 50

// ActivityService follows the audit trail written by the gateway. It logs
// every settled event and keeps the most recent ones in memory.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu     sync.Mutex
	recent *circularbuffer.Queue
}

// NewActivityService creates the service. size bounds the recent-event buffer.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, size int) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultActivitySize
	}
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("activity"),
		recent:     circularbuffer.New(size),
	}
}

// RegisterHandlers subscribes to every ticket event.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	events.SubscribeAll(a.dispatcher, a.handle)
}

func (a *ActivityService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
	}
	if event.Failed() {
		a.logger.Warn("ticket event lost", append(fields, zap.Error(event.Err))...)
	} else {
		a.logger.Info("ticket event recorded", append(fields, zap.Any("details", event.Record.Details))...)
	}

	a.mu.Lock()
	a.recent.Enqueue(event)
	a.mu.Unlock()
	return nil
}

// Recent returns the buffered events, newest first.
func (a *ActivityService) Recent() []events.Event {
	a.mu.Lock()
	values := a.recent.Values()
	a.mu.Unlock()

	out := make([]events.Event, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		out = append(out, values[i].(events.Event))
	}
	return out
}
