package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// SetSearch narrows the page to tickets whose title or description contains q.
func (s *TicketService) SetSearch(ctx context.Context, q string) {
	s.updateFilters(ctx, func(f *domain.FilterSet) { f.Search = q })
}

// SetStatusFilter keeps only tickets in status; "" clears the filter.
func (s *TicketService) SetStatusFilter(ctx context.Context, status string) {
	s.updateFilters(ctx, func(f *domain.FilterSet) { f.Status = status })
}

func (s *TicketService) SetPriorityFilter(ctx context.Context, priority string) {
	s.updateFilters(ctx, func(f *domain.FilterSet) { f.Priority = priority })
}

// SetTechnicianFilter matches assignees by substring, or unassigned tickets
// for domain.UnassignedFilter.
func (s *TicketService) SetTechnicianFilter(ctx context.Context, technician string) {
	s.updateFilters(ctx, func(f *domain.FilterSet) { f.Technician = technician })
}

func (s *TicketService) ClearFilters(ctx context.Context) {
	s.updateFilters(ctx, func(f *domain.FilterSet) { *f = domain.FilterSet{} })
}

// Filters returns the active filter set.
func (s *TicketService) Filters() domain.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// FilteredTickets applies the active filters to the loaded page.
func (s *TicketService) FilteredTickets() []domain.Ticket {
	s.mu.Lock()
	items, filters := cloneTickets(s.items), s.filters
	s.mu.Unlock()
	return ApplyFilters(items, filters)
}

// RestoreFilters loads the last persisted filter set.
func (s *TicketService) RestoreFilters(ctx context.Context) error {
	if s.prefs == nil {
		return nil
	}
	filters, err := s.prefs.LoadFilters(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	return nil
}

func (s *TicketService) updateFilters(ctx context.Context, fn func(*domain.FilterSet)) {
	s.mu.Lock()
	fn(&s.filters)
	filters := s.filters
	s.mu.Unlock()

	if s.prefs == nil {
		return
	}
	if err := s.prefs.SaveFilters(ctx, filters); err != nil {
		s.logger.Warn("filters not persisted", zap.Error(err))
	}
}

// ApplyFilters returns the tickets matching every active filter.
func ApplyFilters(tickets []domain.Ticket, f domain.FilterSet) []domain.Ticket {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	technician := strings.ToLower(strings.TrimSpace(f.Technician))

	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		if f.Priority != "" && string(t.Priority) != f.Priority {
			continue
		}
		if !matchesTechnician(t, f.Technician, technician) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesTechnician(t domain.Ticket, raw, lowered string) bool {
	assigned := ""
	if t.AssignedTo != nil {
		assigned = strings.TrimSpace(*t.AssignedTo)
	}
	switch {
	case raw == domain.UnassignedFilter:
		return assigned == ""
	case lowered == "":
		return true
	}
	return strings.Contains(strings.ToLower(assigned), lowered)
}
