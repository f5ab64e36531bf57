package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func withAssignee(t domain.Ticket, name string) domain.Ticket {
	t.AssignedTo = &name
	return t
}

func TestApplyFilters(t *testing.T) {
	t.Parallel()

	login := ticket("1", domain.StatusOpen)
	login.Title = "Bug en login"
	login.Priority = domain.PriorityHigh
	printer := withAssignee(ticket("2", domain.StatusInProgress), "Ana Pérez")
	printer.Description = "La impresora no imprime"
	closed := withAssignee(ticket("3", domain.StatusClosed), "Luis")
	blank := withAssignee(ticket("4", domain.StatusOpen), "   ")
	all := []domain.Ticket{login, printer, closed, blank}

	tests := []struct {
		name   string
		filter domain.FilterSet
		want   []string
	}{
		{name: "no filters", filter: domain.FilterSet{}, want: []string{"1", "2", "3", "4"}},
		{name: "search title case-insensitively", filter: domain.FilterSet{Search: "LOGIN"}, want: []string{"1"}},
		{name: "search description", filter: domain.FilterSet{Search: "impresora"}, want: []string{"2"}},
		{name: "status", filter: domain.FilterSet{Status: string(domain.StatusOpen)}, want: []string{"1", "4"}},
		{name: "priority", filter: domain.FilterSet{Priority: string(domain.PriorityHigh)}, want: []string{"1"}},
		{name: "technician substring", filter: domain.FilterSet{Technician: "ana"}, want: []string{"2"}},
		{name: "unassigned includes blank assignee", filter: domain.FilterSet{Technician: domain.UnassignedFilter}, want: []string{"1", "4"}},
		{name: "filters combine", filter: domain.FilterSet{Status: string(domain.StatusOpen), Search: "login", Technician: domain.UnassignedFilter}, want: []string{"1"}},
		{name: "nothing matches", filter: domain.FilterSet{Search: "zzz"}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ids(ApplyFilters(all, tt.filter)))
		})
	}
}

func TestComputeSummary(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	closedA := created.Add(2 * time.Hour)
	closedB := created.Add(5 * time.Hour)

	a := ticket("1", domain.StatusClosed)
	a.CreatedAt, a.ClosedAt, a.Priority = created, &closedA, domain.PriorityHigh
	b := ticket("2", domain.StatusClosed)
	b.CreatedAt, b.ClosedAt, b.Priority = created, &closedB, domain.PriorityHigh
	c := ticket("3", domain.StatusClosed)
	c.ClosedAt = nil
	d := ticket("4", domain.StatusOpen)
	e := ticket("5", domain.StatusInProgress)
	e.Priority = domain.PriorityLow

	got := ComputeSummary([]domain.Ticket{a, b, c, d, e})

	assert.Equal(t, 5, got.Total)
	assert.Equal(t, 1, got.Open)
	assert.Equal(t, 1, got.InProgress)
	assert.Equal(t, 3, got.Closed)
	assert.Equal(t, 2, got.Active)
	assert.Equal(t, map[domain.TicketPriority]int{
		domain.PriorityHigh:   2,
		domain.PriorityMedium: 2,
		domain.PriorityLow:    1,
	}, got.ByPriority)
	require.NotNil(t, got.AvgResolutionHours)
	assert.InDelta(t, 3.5, *got.AvgResolutionHours, 0.001)
}

func TestComputeSummary_Empty(t *testing.T) {
	t.Parallel()

	got := ComputeSummary(nil)
	assert.Zero(t, got.Total)
	assert.Nil(t, got.AvgResolutionHours)
	assert.Len(t, got.ByPriority, 3)
}
