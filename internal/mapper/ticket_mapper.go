// Package mapper translates between stored rows and domain values. Two column
// layouts coexist in deployed databases: Scheme A uses English column names
// and lowercase storage values, Scheme B uses Spanish column names holding
// domain values directly.
package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

// Scheme selects a column layout.
type Scheme int

const (
	SchemeA Scheme = iota
	SchemeB
)

func (s Scheme) String() string {
	if s == SchemeB {
		return "B"
	}
	return "A"
}

// Schemes in write-attempt order.
func Schemes() []Scheme {
	return []Scheme{SchemeA, SchemeB}
}

type ticketColumns struct {
	title, description, status, priority, assignedTo string
}

var columns = map[Scheme]ticketColumns{
	SchemeA: {title: "title", description: "description", status: "status", priority: "priority", assignedTo: "assigned_to"},
	SchemeB: {title: "titulo", description: "descripcion", status: "estado", priority: "prioridad", assignedTo: "asignado_a"},
}

var (
	statusFromStorage = map[string]domain.TicketStatus{
		"open":        domain.StatusOpen,
		"in_progress": domain.StatusInProgress,
		"closed":      domain.StatusClosed,
	}
	priorityFromStorage = map[string]domain.TicketPriority{
		"high":   domain.PriorityHigh,
		"medium": domain.PriorityMedium,
		"low":    domain.PriorityLow,
	}
	statusToStorage   = invert(statusFromStorage)
	priorityToStorage = invert(priorityFromStorage)
)

func invert[V ~string](m map[string]V) map[V]string {
	out := make(map[V]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// StatusFromStorage maps a Scheme A status value to the domain vocabulary.
// Unknown values pass through unchanged.
func StatusFromStorage(v string) domain.TicketStatus {
	if s, ok := statusFromStorage[v]; ok {
		return s
	}
	return domain.TicketStatus(v)
}

// PriorityFromStorage maps a Scheme A priority value to the domain
// vocabulary. Unknown values pass through unchanged.
func PriorityFromStorage(v string) domain.TicketPriority {
	if p, ok := priorityFromStorage[v]; ok {
		return p
	}
	return domain.TicketPriority(v)
}

// StatusToStorage maps a domain status to its Scheme A value.
func StatusToStorage(s domain.TicketStatus) string {
	if v, ok := statusToStorage[s]; ok {
		return v
	}
	return string(s)
}

// PriorityToStorage maps a domain priority to its Scheme A value.
func PriorityToStorage(p domain.TicketPriority) string {
	if v, ok := priorityToStorage[p]; ok {
		return v
	}
	return string(p)
}

// ToDomain converts a stored row into a Ticket, preferring Scheme A columns
// and falling back to Scheme B per field. A nil row yields nil.
func ToDomain(row repository.Row) *domain.Ticket {
	if row == nil {
		return nil
	}
	a, b := columns[SchemeA], columns[SchemeB]

	t := &domain.Ticket{
		ID:          IDString(row["id"]),
		Title:       firstString(row, a.title, b.title),
		Description: firstString(row, a.description, b.description),
	}

	if v, ok := stringValue(row[a.status]); ok {
		t.Status = StatusFromStorage(v)
	} else if v, ok := stringValue(row[b.status]); ok {
		t.Status = domain.TicketStatus(v)
	}
	if v, ok := stringValue(row[a.priority]); ok {
		t.Priority = PriorityFromStorage(v)
	} else if v, ok := stringValue(row[b.priority]); ok {
		t.Priority = domain.TicketPriority(v)
	}

	if v, ok := stringValue(row[a.assignedTo]); ok && v != "" {
		t.AssignedTo = &v
	} else if v, ok := stringValue(row[b.assignedTo]); ok && v != "" {
		t.AssignedTo = &v
	}

	if ts, ok := TimeValue(row["created_at"]); ok {
		t.CreatedAt = ts
	}
	if ts, ok := TimeValue(row["closed_at"]); ok {
		t.ClosedAt = &ts
	}
	return t
}

// ToStorage converts a Ticket into a row for the given scheme. The id is left
// out so the store assigns it.
func ToStorage(t domain.Ticket, scheme Scheme) repository.Row {
	cols := columns[scheme]
	row := repository.Row{
		cols.title:       t.Title,
		cols.description: t.Description,
	}
	if scheme == SchemeA {
		row[cols.status] = StatusToStorage(t.Status)
		row[cols.priority] = PriorityToStorage(t.Priority)
	} else {
		row[cols.status] = string(t.Status)
		row[cols.priority] = string(t.Priority)
	}
	if !t.CreatedAt.IsZero() {
		row["created_at"] = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if t.AssignedTo != nil {
		row[cols.assignedTo] = *t.AssignedTo
	}
	return row
}

// StatusPatch is the single-column update setting status in the given scheme.
func StatusPatch(status domain.TicketStatus, scheme Scheme) repository.Row {
	cols := columns[scheme]
	if scheme == SchemeA {
		return repository.Row{cols.status: StatusToStorage(status)}
	}
	return repository.Row{cols.status: string(status)}
}

// AssignmentPatch sets or, for an empty technician, clears the assignee.
func AssignmentPatch(technician string, scheme Scheme) repository.Row {
	cols := columns[scheme]
	if technician == "" {
		return repository.Row{cols.assignedTo: nil}
	}
	return repository.Row{cols.assignedTo: technician}
}

// TicketColumns lists every ticket column of scheme besides id and created_at.
func TicketColumns(scheme Scheme) []string {
	cols := columns[scheme]
	out := []string{cols.title, cols.description, cols.status, cols.priority, cols.assignedTo}
	if scheme == SchemeA {
		out = append(out, "closed_at")
	}
	return out
}

// AssignmentColumns lists the assignee column of every scheme.
func AssignmentColumns() []string {
	return []string{columns[SchemeA].assignedTo, columns[SchemeB].assignedTo}
}

// IDString renders the id types stores hand back (text, integers, JSON
// numbers, UUID bytes) as a string.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case [16]byte:
		return uuid.UUID(id).String()
	case uuid.UUID:
		return id.String()
	case fmt.Stringer:
		return id.String()
	}
	return fmt.Sprint(v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimeValue parses the timestamp shapes stores return.
func TimeValue(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, !ts.IsZero()
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return *ts, !ts.IsZero()
	case string:
		ts = strings.TrimSpace(ts)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func firstString(row repository.Row, keys ...string) string {
	for _, k := range keys {
		if v, ok := stringValue(row[k]); ok {
			return v
		}
	}
	return ""
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	}
	return "", false
}
