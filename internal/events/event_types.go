package events

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketResponded     EventType = "ticket_responded"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketDeleted       EventType = "ticket_deleted"
)

var byRecordType = map[domain.TicketEventType]EventType{
	domain.EventCreated:       EventTicketCreated,
	domain.EventAssigned:      EventTicketAssigned,
	domain.EventResponse:      EventTicketResponded,
	domain.EventStatusUpdated: EventTicketStatusChanged,
	domain.EventDeleted:       EventTicketDeleted,
}

// AllTypes lists every event type.
func AllTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketAssigned,
		EventTicketResponded,
		EventTicketStatusChanged,
		EventTicketDeleted,
	}
}

// TypeOf maps an audit record type to its bus event type.
func TypeOf(t domain.TicketEventType) EventType {
	if et, ok := byRecordType[t]; ok {
		return et
	}
	return EventType("ticket_" + string(t))
}

// Event is published once an audit record has been written, or has failed to
// be. Err is nil on success.
type Event struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	TicketID  string             `json:"ticket_id"`
	Timestamp time.Time          `json:"timestamp"`
	Record    domain.TicketEvent `json:"record"`
	Err       error              `json:"-"`
}

// Failed reports whether the audit record was lost.
func (e Event) Failed() bool {
	return e.Err != nil
}
