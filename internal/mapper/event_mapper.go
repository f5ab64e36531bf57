package mapper

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

type eventColumns struct {
	eventType, details string
}

var eventCols = map[Scheme]eventColumns{
	SchemeA: {eventType: "type", details: "details"},
	SchemeB: {eventType: "tipo", details: "detalles"},
}

// EventColumns lists every event column of scheme besides id and created_at.
func EventColumns(scheme Scheme) []string {
	cols := eventCols[scheme]
	return []string{"ticket_id", cols.eventType, cols.details}
}

// EventToStorage converts an audit event into a row for the given scheme.
func EventToStorage(ev domain.TicketEvent, scheme Scheme) repository.Row {
	cols := eventCols[scheme]
	row := repository.Row{
		"ticket_id":    ev.TicketID,
		cols.eventType: string(ev.Type),
	}
	if ev.Details != nil {
		row[cols.details] = ev.Details
	}
	if !ev.CreatedAt.IsZero() {
		row["created_at"] = ev.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

// EventToDomain converts a stored event row, either scheme, into a TicketEvent.
func EventToDomain(row repository.Row) *domain.TicketEvent {
	if row == nil {
		return nil
	}
	a, b := eventCols[SchemeA], eventCols[SchemeB]
	ev := &domain.TicketEvent{
		ID:       IDString(row["id"]),
		TicketID: IDString(row["ticket_id"]),
		Type:     domain.TicketEventType(firstString(row, a.eventType, b.eventType)),
	}
	if d := detailsValue(row[a.details]); d != nil {
		ev.Details = d
	} else {
		ev.Details = detailsValue(row[b.details])
	}
	if ts, ok := TimeValue(row["created_at"]); ok {
		ev.CreatedAt = ts
	}
	return ev
}

// detailsValue accepts decoded JSON objects and raw JSON text.
func detailsValue(v any) map[string]any {
	switch d := v.(type) {
	case map[string]any:
		return d
	case string:
		var out map[string]any
		if json.Unmarshal([]byte(d), &out) == nil {
			return out
		}
	case []byte:
		var out map[string]any
		if json.Unmarshal(d, &out) == nil {
			return out
		}
	}
	return nil
}
