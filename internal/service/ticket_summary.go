package service

import (
	"math"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// ComputeSummary counts tickets by status and priority and averages the
// resolution time of closed tickets, in hours rounded to one decimal.
func ComputeSummary(tickets []domain.Ticket) domain.Summary {
	summary := domain.Summary{
		Total:      len(tickets),
		ByPriority: make(map[domain.TicketPriority]int, 3),
	}
	for _, p := range domain.Priorities() {
		summary.ByPriority[p] = 0
	}

	var hours float64
	var resolved int
	for _, t := range tickets {
		switch t.Status {
		case domain.StatusOpen:
			summary.Open++
		case domain.StatusInProgress:
			summary.InProgress++
		case domain.StatusClosed:
			summary.Closed++
			if t.ClosedAt != nil && !t.CreatedAt.IsZero() {
				if d := t.ClosedAt.Sub(t.CreatedAt); d >= 0 {
					hours += d.Hours()
					resolved++
				}
			}
		}
		if t.Priority.Valid() {
			summary.ByPriority[t.Priority]++
		}
	}
	summary.Active = summary.Open + summary.InProgress

	if resolved > 0 {
		avg := math.Round(hours/float64(resolved)*10) / 10
		summary.AvgResolutionHours = &avg
	}
	return summary
}
