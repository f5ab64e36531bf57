package gateway

import (
	"context"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/mapper"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

const assigneeScanLimit = 1000

var (
	nameColumns = []string{"name", "nombre", "full_name", "display_name", "email"}
	roleColumns = []string{"role", "rol"}
)

// ListTechnicians returns candidate assignees. Configured sources are tried
// in order and the first one yielding technicians wins; when none does, the
// distinct assignees already present on tickets are used. It never fails.
func (g *TicketGateway) ListTechnicians(ctx context.Context) []domain.Technician {
	for _, table := range g.tables.TechnicianSources {
		rows, _, err := g.store.Select(ctx, table, repository.SelectQuery{})
		if err != nil {
			g.logger.Debug("technician source unavailable", zap.String("table", table), zap.Error(err))
			continue
		}
		if techs := techniciansFromRows(rows); len(techs) > 0 {
			return techs
		}
	}
	return g.assigneesFromTickets(ctx)
}

func techniciansFromRows(rows []repository.Row) []domain.Technician {
	out := make([]domain.Technician, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if !isTechnicianRow(row) {
			continue
		}
		name := firstNonEmpty(row, nameColumns)
		if name == "" {
			continue
		}
		id := mapper.IDString(row["id"])
		if id == "" {
			id = name
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.Technician{ID: id, Name: name})
	}
	return out
}

// isTechnicianRow keeps rows of a user directory whose role marks them as
// technicians. Rows without a role column are roster entries and always kept.
func isTechnicianRow(row repository.Row) bool {
	for _, col := range roleColumns {
		raw, present := row[col]
		if !present {
			continue
		}
		role, _ := raw.(string)
		switch strings.ToUpper(strings.TrimSpace(role)) {
		case string(domain.RoleTechnician), "TECHNICIAN", "TECH":
			return true
		}
		return false
	}
	return true
}

func (g *TicketGateway) assigneesFromTickets(ctx context.Context) []domain.Technician {
	rows, _, err := g.store.Select(ctx, g.tables.Tickets, repository.SelectQuery{Limit: assigneeScanLimit})
	if err != nil {
		g.logger.Debug("assignee scan failed", zap.Error(err))
		return []domain.Technician{}
	}

	names := treeset.NewWithStringComparator()
	for _, row := range rows {
		for _, col := range mapper.AssignmentColumns() {
			if v, ok := row[col].(string); ok && strings.TrimSpace(v) != "" {
				names.Add(strings.TrimSpace(v))
			}
		}
	}

	out := make([]domain.Technician, 0, names.Size())
	for _, v := range names.Values() {
		name := v.(string)
		out = append(out, domain.Technician{ID: name, Name: name})
	}
	return out
}

func firstNonEmpty(row repository.Row, cols []string) string {
	for _, c := range cols {
		if v, ok := row[c].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
