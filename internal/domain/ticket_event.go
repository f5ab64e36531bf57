package domain

import "time"

// TicketEventType captures what happened to a ticket.
type TicketEventType string

const (
	EventCreated       TicketEventType = "created"
	EventAssigned      TicketEventType = "assigned"
	EventResponse      TicketEventType = "response"
	EventStatusUpdated TicketEventType = "status_updated"
	EventDeleted       TicketEventType = "deleted"
)

// TicketEvent is an append-only audit entry.
type TicketEvent struct {
	ID        string          `json:"id"`
	TicketID  string          `json:"ticket_id"`
	Type      TicketEventType `json:"type"`
	Details   map[string]any  `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
