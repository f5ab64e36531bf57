package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/validation"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

const defaultPageSize = 20

// TicketGateway is the remote side of the ticket collection.
type TicketGateway interface {
	ListPaged(ctx context.Context, page, pageSize int) (domain.PagedResult, error)
	Create(ctx context.Context, in validation.CreateTicketInput) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	Assign(ctx context.Context, id, technician string) (*domain.Ticket, error)
	Respond(ctx context.Context, id, message string) (*domain.TicketEvent, error)
	Delete(ctx context.Context, id string) error
	ListTechnicians(ctx context.Context) []domain.Technician
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Gateway     TicketGateway
	Preferences repository.PreferenceRepository
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	PageSize    int
	Now         func() time.Time
}

// TicketState is an immutable view of the collection.
type TicketState struct {
	Tickets     []domain.Ticket
	Total       int
	Page        int
	PageSize    int
	Loading     bool
	Err         error
	FieldErrors map[string]string
	Filters     domain.FilterSet
}

// TicketService keeps a local copy of one page of tickets and applies
// mutations to it before the backend confirms them. Each mutation snapshots
// the collection, patches it, calls the gateway, then either commits the
// authoritative result or restores the snapshot.
//
// Snapshot+patch and settlement each run under mu; the gateway call does not.
// Concurrent mutations of the same ticket are last-write-wins, and a rollback
// restores its own snapshot even if other mutations settled in between.
type TicketService struct {
	gateway TicketGateway
	prefs   repository.PreferenceRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	refreshes singleflight.Group

	mu          sync.Mutex
	items       []domain.Ticket
	total       int
	page        int
	pageSize    int
	filters     domain.FilterSet
	lastErr     error
	fieldErrors map[string]string
	pending     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TicketService{
		gateway:  deps.Gateway,
		prefs:    deps.Preferences,
		logger:   logger.Named("tickets"),
		metrics:  deps.Metrics,
		now:      now,
		items:    []domain.Ticket{},
		page:     1,
		pageSize: pageSize,
	}
}

type snapshot struct {
	items []domain.Ticket
	total int
}

// must be called with s.mu held.
func (s *TicketService) snapshotLocked() snapshot {
	return snapshot{items: cloneTickets(s.items), total: s.total}
}

// must be called with s.mu held.
func (s *TicketService) restoreLocked(snap snapshot) {
	s.items = snap.items
	s.total = snap.total
}

// Bootstrap restores persisted filters and loads the first page concurrently.
func (s *TicketService) Bootstrap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.RestoreFilters(gctx) })
	g.Go(func() error { return s.Refresh(gctx) })
	return g.Wait()
}

// Refresh reloads the current page. Concurrent refreshes of the same page
// share one gateway call.
func (s *TicketService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.lastErr = nil
	s.fieldErrors = nil
	s.pending++
	page, pageSize := s.page, s.pageSize
	s.mu.Unlock()

	key := fmt.Sprintf("%d/%d", page, pageSize)
	ch := s.refreshes.DoChan(key, func() (any, error) {
		return s.gateway.ListPaged(context.WithoutCancel(ctx), page, pageSize)
	})

	select {
	case res := <-ch:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending--
		if res.Err != nil {
			s.recordErrorLocked("refresh", res.Err)
			return res.Err
		}
		result := res.Val.(domain.PagedResult)
		s.items = cloneTickets(result.Items)
		s.total = result.Total
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
		return ctx.Err()
	}
}

// SetPage switches to another page and loads it.
func (s *TicketService) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// AddTicket inserts a temporary ticket at the head of the collection, then
// replaces it with the created ticket or rolls back. New tickets always open
// as ABIERTO; any other status in the input is ignored.
func (s *TicketService) AddTicket(ctx context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
	in.Status = domain.StatusOpen
	tempID := domain.NewTemporaryID()
	optimistic := domain.Ticket{
		ID:          tempID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		Status:      in.Status,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.lastErr = nil
	s.fieldErrors = nil
	snap := s.snapshotLocked()
	s.items = append([]domain.Ticket{optimistic}, s.items...)
	s.total++
	s.pending++
	s.mu.Unlock()

	return settle(ctx, func(ctx context.Context) (*domain.Ticket, error) {
		created, err := s.gateway.Create(ctx, in)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending--
		if err != nil {
			s.rollbackLocked("create", snap, err)
			return nil, err
		}
		items := removeTicket(s.items, tempID)
		items = removeTicket(items, created.ID)
		s.items = append([]domain.Ticket{created.Clone()}, items...)
		s.commitLocked("create")
		return created, nil
	})
}

// SetStatus patches a ticket's status locally, then persists it.
func (s *TicketService) SetStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := s.rejectTemporary("update_status", id); err != nil {
		return nil, err
	}
	return s.patch(ctx, "update_status", id,
		func(t *domain.Ticket) { t.Status = status },
		func(ctx context.Context) (*domain.Ticket, error) { return s.gateway.UpdateStatus(ctx, id, status) },
	)
}

// Assign patches a ticket's assignee locally, then persists it. An empty
// technician clears the assignment.
func (s *TicketService) Assign(ctx context.Context, id, technician string) (*domain.Ticket, error) {
	if err := s.rejectTemporary("assign", id); err != nil {
		return nil, err
	}
	technician = strings.TrimSpace(technician)
	return s.patch(ctx, "assign", id,
		func(t *domain.Ticket) {
			if technician == "" {
				t.AssignedTo = nil
				return
			}
			v := technician
			t.AssignedTo = &v
		},
		func(ctx context.Context) (*domain.Ticket, error) { return s.gateway.Assign(ctx, id, technician) },
	)
}

// Respond records a reply on a ticket. Replies are not part of the
// collection, so nothing is patched.
func (s *TicketService) Respond(ctx context.Context, id, message string) (*domain.TicketEvent, error) {
	if err := s.rejectTemporary("respond", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastErr = nil
	s.fieldErrors = nil
	s.pending++
	s.mu.Unlock()

	return settle(ctx, func(ctx context.Context) (*domain.TicketEvent, error) {
		ev, err := s.gateway.Respond(ctx, id, message)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending--
		if err != nil {
			s.recordErrorLocked("respond", err)
			s.metrics.RecordMutation("respond", observability.OutcomeRolledBack)
			return nil, err
		}
		s.commitLocked("respond")
		return ev, nil
	})
}

// RemoveTicket drops a ticket locally, then deletes it remotely. A temporary
// ticket is only removed locally.
func (s *TicketService) RemoveTicket(ctx context.Context, id string) error {
	s.mu.Lock()
	s.lastErr = nil
	s.fieldErrors = nil
	snap := s.snapshotLocked()
	s.items = removeTicket(s.items, id)
	if s.total > 0 {
		s.total--
	}
	if domain.IsTemporaryID(id) {
		s.mu.Unlock()
		s.metrics.RecordMutation("delete", observability.OutcomeLocal)
		return nil
	}
	s.pending++
	s.mu.Unlock()

	_, err := settle(ctx, func(ctx context.Context) (struct{}, error) {
		err := s.gateway.Delete(ctx, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending--
		if err != nil {
			s.rollbackLocked("delete", snap, err)
			return struct{}{}, err
		}
		s.commitLocked("delete")
		return struct{}{}, nil
	})
	return err
}

// patch applies fn to the ticket with id, then settles with the result of
// remote: the server copy replaces the patched entry, or the snapshot is restored.
func (s *TicketService) patch(
	ctx context.Context,
	op, id string,
	fn func(*domain.Ticket),
	remote func(context.Context) (*domain.Ticket, error),
) (*domain.Ticket, error) {
	s.mu.Lock()
	s.lastErr = nil
	s.fieldErrors = nil
	snap := s.snapshotLocked()
	items := cloneTickets(s.items)
	for i := range items {
		if items[i].ID == id {
			fn(&items[i])
		}
	}
	s.items = items
	s.pending++
	s.mu.Unlock()

	return settle(ctx, func(ctx context.Context) (*domain.Ticket, error) {
		updated, err := remote(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending--
		if err != nil {
			s.rollbackLocked(op, snap, err)
			return nil, err
		}
		items := cloneTickets(s.items)
		for i := range items {
			if items[i].ID == updated.ID {
				items[i] = updated.Clone()
			}
		}
		s.items = items
		s.commitLocked(op)
		return updated, nil
	})
}

func (s *TicketService) rejectTemporary(op, id string) error {
	if !domain.IsTemporaryID(id) {
		return nil
	}
	err := apperrors.NewUnknownError(fmt.Sprintf("ticket %s has not been saved yet", id), nil)
	s.mu.Lock()
	s.recordErrorLocked(op, err)
	s.mu.Unlock()
	s.metrics.RecordMutation(op, observability.OutcomeRejected)
	return err
}

// must be called with s.mu held.
func (s *TicketService) rollbackLocked(op string, snap snapshot, err error) {
	s.restoreLocked(snap)
	s.recordErrorLocked(op, err)
	s.metrics.RecordMutation(op, observability.OutcomeRolledBack)
}

// must be called with s.mu held.
func (s *TicketService) commitLocked(op string) {
	s.lastErr = nil
	s.fieldErrors = nil
	s.metrics.RecordMutation(op, observability.OutcomeCommitted)
}

// must be called with s.mu held.
func (s *TicketService) recordErrorLocked(op string, err error) {
	de := apperrors.ToDomainError(err)
	s.lastErr = de
	if de.Code == apperrors.CodeValidation {
		s.fieldErrors = de.FieldMap()
	}
	s.logger.Debug("ticket operation failed",
		zap.String("operation", op), zap.String("code", de.Code), zap.Error(err))
}

// ClearError dismisses the current error and any field errors.
func (s *TicketService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
	s.fieldErrors = nil
}

// Tickets returns a copy of the loaded page.
func (s *TicketService) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTickets(s.items)
}

// Total is the number of tickets across all pages.
func (s *TicketService) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Loading reports whether any load or mutation is outstanding.
func (s *TicketService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Err returns the most recent failure, or nil.
func (s *TicketService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// FieldErrors returns field -> message from the most recent validation failure.
func (s *TicketService) FieldErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFieldErrors(s.fieldErrors)
}

// Snapshot returns the whole state at once.
func (s *TicketService) Snapshot() TicketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TicketState{
		Tickets:     cloneTickets(s.items),
		Total:       s.total,
		Page:        s.page,
		PageSize:    s.pageSize,
		Loading:     s.pending > 0,
		Err:         s.lastErr,
		FieldErrors: cloneFieldErrors(s.fieldErrors),
		Filters:     s.filters,
	}
}

// Summary aggregates the loaded page.
func (s *TicketService) Summary() domain.Summary {
	return ComputeSummary(s.Tickets())
}

// Technicians lists candidate assignees.
func (s *TicketService) Technicians(ctx context.Context) []domain.Technician {
	return s.gateway.ListTechnicians(ctx)
}

// settle runs work on its own goroutine with a context that is never
// cancelled, so a dispatched mutation always settles the collection. The
// caller may stop waiting when ctx is done.
func settle[T any](ctx context.Context, work func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := work(context.WithoutCancel(ctx))
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func cloneTickets(in []domain.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func removeTicket(in []domain.Ticket, id string) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(in))
	for _, t := range in {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func cloneFieldErrors(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
