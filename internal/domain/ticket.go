package domain

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "ABIERTO"
	StatusInProgress TicketStatus = "EN_PROGRESO"
	StatusClosed     TicketStatus = "CERRADO"
)

// Valid reports whether s is one of the known states.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	PriorityHigh   TicketPriority = "ALTA"
	PriorityMedium TicketPriority = "MEDIA"
	PriorityLow    TicketPriority = "BAJA"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Statuses lists every status in display order.
func Statuses() []TicketStatus {
	return []TicketStatus{StatusOpen, StatusInProgress, StatusClosed}
}

// Priorities lists every priority from most to least urgent.
func Priorities() []TicketPriority {
	return []TicketPriority{PriorityHigh, PriorityMedium, PriorityLow}
}

// TempIDPrefix marks tickets that exist only locally.
const TempIDPrefix = "temp-"

var tempIDSeq atomic.Uint64

// NewTemporaryID mints a process-unique id for a ticket that has not been
// saved yet.
func NewTemporaryID() string {
	return TempIDPrefix + strconv.FormatUint(tempIDSeq.Add(1), 10)
}

// IsTemporaryID reports whether id was minted locally for an optimistic insert.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Ticket is a support request as seen by the desk.
type Ticket struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	AssignedTo  *string        `json:"assigned_to,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
}

// IsTemporary reports whether the ticket is an unconfirmed local insert.
func (t Ticket) IsTemporary() bool {
	return IsTemporaryID(t.ID)
}

// Clone returns a deep copy.
func (t Ticket) Clone() Ticket {
	out := t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		out.AssignedTo = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		out.ClosedAt = &v
	}
	return out
}

// PagedResult is one page of tickets plus the total across all pages.
type PagedResult struct {
	Items []Ticket `json:"items"`
	Total int      `json:"total"`
}
