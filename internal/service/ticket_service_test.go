package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/validation"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

type fakeGateway struct {
	listFn    func(ctx context.Context, page, pageSize int) (domain.PagedResult, error)
	createFn  func(ctx context.Context, in validation.CreateTicketInput) (*domain.Ticket, error)
	updateFn  func(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	assignFn  func(ctx context.Context, id, technician string) (*domain.Ticket, error)
	respondFn func(ctx context.Context, id, message string) (*domain.TicketEvent, error)
	deleteFn  func(ctx context.Context, id string) error
	techFn    func(ctx context.Context) []domain.Technician

	calls atomic.Int32
}

func (f *fakeGateway) ListPaged(ctx context.Context, page, pageSize int) (domain.PagedResult, error) {
	f.calls.Add(1)
	return f.listFn(ctx, page, pageSize)
}

func (f *fakeGateway) Create(ctx context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
	f.calls.Add(1)
	return f.createFn(ctx, in)
}

func (f *fakeGateway) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	f.calls.Add(1)
	return f.updateFn(ctx, id, status)
}

func (f *fakeGateway) Assign(ctx context.Context, id, technician string) (*domain.Ticket, error) {
	f.calls.Add(1)
	return f.assignFn(ctx, id, technician)
}

func (f *fakeGateway) Respond(ctx context.Context, id, message string) (*domain.TicketEvent, error) {
	f.calls.Add(1)
	return f.respondFn(ctx, id, message)
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.calls.Add(1)
	return f.deleteFn(ctx, id)
}

func (f *fakeGateway) ListTechnicians(ctx context.Context) []domain.Technician {
	f.calls.Add(1)
	return f.techFn(ctx)
}

var baseTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func ticket(id string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		Title:       "Ticket " + id,
		Description: "Description " + id,
		Priority:    domain.PriorityMedium,
		Status:      status,
		CreatedAt:   baseTime,
	}
}

// loadedService returns a service whose collection holds tickets, with total set.
func loadedService(t *testing.T, gw *fakeGateway, total int, tickets ...domain.Ticket) *TicketService {
	t.Helper()
	gw.listFn = func(context.Context, int, int) (domain.PagedResult, error) {
		return domain.PagedResult{Items: tickets, Total: total}, nil
	}
	svc := NewTicketService(TicketDependencies{Gateway: gw, Now: func() time.Time { return baseTime }})
	require.NoError(t, svc.Refresh(context.Background()))
	gw.calls.Store(0)
	return svc
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 42, ticket("2", domain.StatusOpen), ticket("1", domain.StatusClosed))

	state := svc.Snapshot()
	assert.Equal(t, []string{"2", "1"}, ids(state.Tickets))
	assert.Equal(t, 42, state.Total)
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, defaultPageSize, state.PageSize)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
}

func TestRefresh_ErrorIsKeptUntilCleared(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))
	gw.listFn = func(context.Context, int, int) (domain.PagedResult, error) {
		return domain.PagedResult{}, apperrors.NewNetworkError(errors.New("offline"))
	}

	err := svc.Refresh(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))
	assert.True(t, apperrors.IsCode(svc.Err(), apperrors.CodeNetwork))
	assert.Equal(t, []string{"1"}, ids(svc.Tickets()), "failed refresh keeps the collection")

	svc.ClearError()
	assert.NoError(t, svc.Err())
}

func TestRefresh_ConcurrentCallsShareOneLoad(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 0)

	release := make(chan struct{})
	gw.listFn = func(context.Context, int, int) (domain.PagedResult, error) {
		<-release
		return domain.PagedResult{Items: []domain.Ticket{ticket("9", domain.StatusOpen)}, Total: 1}, nil
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- svc.Refresh(context.Background()) }()
	}
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.pending == 2
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, []string{"9"}, ids(svc.Tickets()))
	assert.False(t, svc.Loading())
}

func TestAddTicket_OptimisticThenCommit(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 5, ticket("1", domain.StatusOpen))

	started := make(chan struct{})
	release := make(chan struct{})
	gw.createFn = func(_ context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
		close(started)
		<-release
		created := ticket("77", domain.StatusOpen)
		created.Title = in.Title
		created.Priority = in.Priority
		return &created, nil
	}

	type result struct {
		ticket *domain.Ticket
		err    error
	}
	done := make(chan result, 1)
	go func() {
		created, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{
			Title: "Bug login", Description: "Cannot sign in", Priority: domain.PriorityHigh,
		})
		done <- result{created, err}
	}()

	<-started
	pending := svc.Snapshot()
	require.Len(t, pending.Tickets, 2)
	assert.True(t, pending.Tickets[0].IsTemporary())
	assert.Equal(t, "Bug login", pending.Tickets[0].Title)
	assert.Equal(t, domain.StatusOpen, pending.Tickets[0].Status)
	assert.Equal(t, 6, pending.Total)
	assert.True(t, pending.Loading)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "77", res.ticket.ID)

	settled := svc.Snapshot()
	assert.Equal(t, []string{"77", "1"}, ids(settled.Tickets))
	assert.Equal(t, 6, settled.Total)
	assert.False(t, settled.Loading)
}

func TestAddTicket_ValidationRollsBackWithFieldErrors(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 3, ticket("1", domain.StatusOpen))
	before := svc.Snapshot()

	gw.createFn = func(_ context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
		_, err := validation.ValidateCreate(in)
		return nil, err
	}

	_, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{
		Title: "ab", Description: "Cannot sign in", Priority: domain.PriorityHigh,
	})
	require.Error(t, err)

	after := svc.Snapshot()
	assert.Equal(t, before.Tickets, after.Tickets)
	assert.Equal(t, before.Total, after.Total)
	assert.True(t, apperrors.IsCode(after.Err, apperrors.CodeValidation))
	assert.Equal(t, "title must be at least 3 characters", after.FieldErrors["title"])

	gw.createFn = func(context.Context, validation.CreateTicketInput) (*domain.Ticket, error) {
		created := ticket("8", domain.StatusOpen)
		return &created, nil
	}
	_, err = svc.AddTicket(context.Background(), validation.CreateTicketInput{
		Title: "Valid", Description: "Valid text", Priority: domain.PriorityLow,
	})
	require.NoError(t, err)
	assert.Nil(t, svc.FieldErrors(), "success clears field errors")
	assert.NoError(t, svc.Err())
}

func TestAddTicket_ConcurrentCreatesKeepEachOthersPlaceholders(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 0)

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var n atomic.Int32
	gw.createFn = func(_ context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
		if n.Add(1) == 1 {
			close(firstStarted)
			<-releaseFirst
		}
		created := ticket("id-"+in.Title, domain.StatusOpen)
		return &created, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{Title: "first", Description: "xxx", Priority: domain.PriorityLow})
		done <- err
	}()
	<-firstStarted

	_, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{Title: "second", Description: "xxx", Priority: domain.PriorityLow})
	require.NoError(t, err)

	mid := svc.Tickets()
	require.Len(t, mid, 2)
	assert.Equal(t, "id-second", mid[0].ID)
	assert.True(t, mid[1].IsTemporary(), "the first placeholder survives the second commit")

	close(releaseFirst)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"id-first", "id-second"}, ids(svc.Tickets()))
	assert.Equal(t, 2, svc.Total())
}

func TestSetStatus_CommitReplacesWithServerCopy(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 2, ticket("1", domain.StatusOpen), ticket("2", domain.StatusOpen))

	gw.updateFn = func(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
		server := ticket(id, status)
		tech := "Ana"
		server.AssignedTo = &tech
		return &server, nil
	}

	updated, err := svc.SetStatus(context.Background(), "1", domain.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, updated.Status)

	got := svc.Tickets()
	assert.Equal(t, domain.StatusClosed, got[0].Status)
	require.NotNil(t, got[0].AssignedTo)
	assert.Equal(t, "Ana", *got[0].AssignedTo)
	assert.Equal(t, domain.StatusOpen, got[1].Status)
}

func TestSetStatus_FailureRestoresSnapshot(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 2, ticket("1", domain.StatusOpen), ticket("2", domain.StatusInProgress))
	before := svc.Snapshot()

	started := make(chan struct{})
	release := make(chan struct{})
	gw.updateFn = func(context.Context, string, domain.TicketStatus) (*domain.Ticket, error) {
		close(started)
		<-release
		return nil, apperrors.NewNetworkError(errors.New("offline"))
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.SetStatus(context.Background(), "1", domain.StatusClosed)
		done <- err
	}()

	<-started
	assert.Equal(t, domain.StatusClosed, svc.Tickets()[0].Status, "patched before the gateway answers")

	close(release)
	err := <-done
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))

	after := svc.Snapshot()
	assert.Equal(t, before.Tickets, after.Tickets)
	assert.Equal(t, before.Total, after.Total)
	assert.True(t, apperrors.IsCode(after.Err, apperrors.CodeNetwork))
}

func TestTemporaryIDGuard(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("temp-17", domain.StatusOpen))

	_, err := svc.SetStatus(context.Background(), "temp-17", domain.StatusClosed)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknown))
	_, err = svc.Assign(context.Background(), "temp-17", "Ana")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknown))
	_, err = svc.Respond(context.Background(), "temp-17", "hello")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknown))
	assert.Equal(t, domain.StatusOpen, svc.Tickets()[0].Status)

	require.NoError(t, svc.RemoveTicket(context.Background(), "temp-17"))
	assert.Empty(t, svc.Tickets())
	assert.Zero(t, svc.Total())
	assert.Zero(t, gw.calls.Load())
}

func TestRemoveTicket(t *testing.T) {
	t.Parallel()

	t.Run("commit", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{deleteFn: func(context.Context, string) error { return nil }}
		svc := loadedService(t, gw, 2, ticket("1", domain.StatusOpen), ticket("2", domain.StatusOpen))

		require.NoError(t, svc.RemoveTicket(context.Background(), "1"))
		assert.Equal(t, []string{"2"}, ids(svc.Tickets()))
		assert.Equal(t, 1, svc.Total())
	})

	t.Run("rollback", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{deleteFn: func(context.Context, string) error {
			return apperrors.NewConnectionError(errors.New("down"))
		}}
		svc := loadedService(t, gw, 2, ticket("1", domain.StatusOpen), ticket("2", domain.StatusOpen))

		err := svc.RemoveTicket(context.Background(), "1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDBConnection))
		assert.Equal(t, []string{"1", "2"}, ids(svc.Tickets()))
		assert.Equal(t, 2, svc.Total())
	})

	t.Run("total never negative", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{deleteFn: func(context.Context, string) error { return nil }}
		svc := loadedService(t, gw, 0)

		require.NoError(t, svc.RemoveTicket(context.Background(), "5"))
		assert.Zero(t, svc.Total())
	})
}

func TestConcurrentUpdates_LastSettlementWins(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	gw.updateFn = func(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
		if status == domain.StatusClosed {
			close(slowStarted)
			<-releaseSlow
		}
		server := ticket(id, status)
		return &server, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.SetStatus(context.Background(), "1", domain.StatusClosed)
		done <- err
	}()
	<-slowStarted

	_, err := svc.SetStatus(context.Background(), "1", domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, svc.Tickets()[0].Status)

	close(releaseSlow)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StatusClosed, svc.Tickets()[0].Status, "the mutation that settles last wins")
}

func TestConcurrentUpdates_RollbackRestoresItsOwnSnapshot(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	gw.updateFn = func(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
		if status == domain.StatusClosed {
			close(slowStarted)
			<-releaseSlow
			return nil, apperrors.NewNetworkError(errors.New("timeout"))
		}
		server := ticket(id, status)
		return &server, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.SetStatus(context.Background(), "1", domain.StatusClosed)
		done <- err
	}()
	<-slowStarted

	_, err := svc.SetStatus(context.Background(), "1", domain.StatusInProgress)
	require.NoError(t, err)

	close(releaseSlow)
	require.Error(t, <-done)
	assert.Equal(t, domain.StatusOpen, svc.Tickets()[0].Status,
		"rolling back the first mutation also discards the second, which settled in between")
}

func TestMutationSettlesAfterCallerGivesUp(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))

	started := make(chan struct{})
	release := make(chan struct{})
	settled := make(chan struct{})
	gw.assignFn = func(_ context.Context, id, technician string) (*domain.Ticket, error) {
		close(started)
		<-release
		defer close(settled)
		server := ticket(id, domain.StatusOpen)
		server.AssignedTo = &technician
		return &server, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Assign(ctx, "1", "Ana")
		done <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	<-settled
	require.Eventually(t, func() bool { return !svc.Loading() }, time.Second, time.Millisecond)
	got := svc.Tickets()[0]
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "Ana", *got.AssignedTo)
}

func TestAssign_ClearsAssignee(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	assigned := ticket("1", domain.StatusOpen)
	tech := "Luis"
	assigned.AssignedTo = &tech
	svc := loadedService(t, gw, 1, assigned)

	gw.assignFn = func(_ context.Context, id, technician string) (*domain.Ticket, error) {
		assert.Empty(t, technician)
		server := ticket(id, domain.StatusOpen)
		return &server, nil
	}

	_, err := svc.Assign(context.Background(), "1", "  ")
	require.NoError(t, err)
	assert.Nil(t, svc.Tickets()[0].AssignedTo)
}

func TestRespond(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))

	gw.respondFn = func(_ context.Context, id, message string) (*domain.TicketEvent, error) {
		return &domain.TicketEvent{ID: "e1", TicketID: id, Type: domain.EventResponse, Details: map[string]any{"message": message}}, nil
	}
	ev, err := svc.Respond(context.Background(), "1", "On it")
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.ID)

	gw.respondFn = func(context.Context, string, string) (*domain.TicketEvent, error) {
		return nil, apperrors.NewSchemaError("response could not be recorded", nil)
	}
	_, err = svc.Respond(context.Background(), "1", "again")
	assert.True(t, apperrors.IsCode(svc.Err(), apperrors.CodeDBSchema))
	assert.Error(t, err)
	assert.Len(t, svc.Tickets(), 1)
}

func TestBootstrapRestoresFiltersAndLoads(t *testing.T) {
	t.Parallel()
	prefs := repository.NewMemoryPreferenceRepository()
	require.NoError(t, prefs.SaveFilters(context.Background(), domain.FilterSet{Status: string(domain.StatusClosed)}))

	gw := &fakeGateway{listFn: func(context.Context, int, int) (domain.PagedResult, error) {
		return domain.PagedResult{
			Items: []domain.Ticket{ticket("1", domain.StatusOpen), ticket("2", domain.StatusClosed)},
			Total: 2,
		}, nil
	}}
	svc := NewTicketService(TicketDependencies{Gateway: gw, Preferences: prefs})

	require.NoError(t, svc.Bootstrap(context.Background()))
	assert.Len(t, svc.Tickets(), 2)
	assert.Equal(t, []string{"2"}, ids(svc.FilteredTickets()))
}

func TestFilterSettersPersist(t *testing.T) {
	t.Parallel()
	prefs := repository.NewMemoryPreferenceRepository()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 0)
	svc.prefs = prefs
	ctx := context.Background()

	svc.SetSearch(ctx, "login")
	svc.SetTechnicianFilter(ctx, domain.UnassignedFilter)

	saved, err := prefs.LoadFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterSet{Search: "login", Technician: domain.UnassignedFilter}, saved)

	svc.ClearFilters(ctx)
	saved, err = prefs.LoadFilters(ctx)
	require.NoError(t, err)
	assert.True(t, saved.Empty())
}

func TestTechnicians(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{techFn: func(context.Context) []domain.Technician {
		return []domain.Technician{{ID: "t1", Name: "Ana"}}
	}}
	svc := NewTicketService(TicketDependencies{Gateway: gw})

	assert.Equal(t, []domain.Technician{{ID: "t1", Name: "Ana"}}, svc.Technicians(context.Background()))
}

func TestAddTicket_AlwaysOpens(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 0)

	started := make(chan struct{})
	release := make(chan struct{})
	var sent domain.TicketStatus
	gw.createFn = func(_ context.Context, in validation.CreateTicketInput) (*domain.Ticket, error) {
		sent = in.Status
		close(started)
		<-release
		created := ticket("12", in.Status)
		return &created, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{
			Title: "Printer jam", Description: "Paper stuck", Priority: domain.PriorityLow, Status: domain.StatusClosed,
		})
		done <- err
	}()

	<-started
	placeholder := svc.Tickets()
	require.Len(t, placeholder, 1)
	assert.Equal(t, domain.StatusOpen, placeholder[0].Status)
	assert.Equal(t, domain.StatusOpen, sent)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StatusOpen, svc.Tickets()[0].Status)
}

func TestAddTicket_SchemaFailureRevertsToEmpty(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := loadedService(t, gw, 0)
	gw.createFn = func(context.Context, validation.CreateTicketInput) (*domain.Ticket, error) {
		return nil, apperrors.NewSchemaError("column titulo does not exist", nil)
	}

	_, err := svc.AddTicket(context.Background(), validation.CreateTicketInput{
		Title: "Bug login", Description: "Cannot sign in", Priority: domain.PriorityHigh,
	})
	require.Error(t, err)

	state := svc.Snapshot()
	assert.Equal(t, []domain.Ticket{}, state.Tickets)
	assert.Zero(t, state.Total)
	assert.False(t, state.Loading)
	assert.True(t, apperrors.IsCode(svc.Err(), apperrors.CodeDBSchema))
}

func TestMutationsClearPreviousErrorWhenStarting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wire func(gw *fakeGateway, release <-chan struct{}, started chan<- struct{})
		run  func(svc *TicketService) error
	}{
		{
			name: "set status",
			wire: func(gw *fakeGateway, release <-chan struct{}, started chan<- struct{}) {
				gw.updateFn = func(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
					close(started)
					<-release
					updated := ticket(id, status)
					return &updated, nil
				}
			},
			run: func(svc *TicketService) error {
				_, err := svc.SetStatus(context.Background(), "1", domain.StatusClosed)
				return err
			},
		},
		{
			name: "assign",
			wire: func(gw *fakeGateway, release <-chan struct{}, started chan<- struct{}) {
				gw.assignFn = func(_ context.Context, id, technician string) (*domain.Ticket, error) {
					close(started)
					<-release
					return &domain.Ticket{ID: id, Status: domain.StatusOpen, AssignedTo: &technician}, nil
				}
			},
			run: func(svc *TicketService) error {
				_, err := svc.Assign(context.Background(), "1", "Ana")
				return err
			},
		},
		{
			name: "respond",
			wire: func(gw *fakeGateway, release <-chan struct{}, started chan<- struct{}) {
				gw.respondFn = func(_ context.Context, id, message string) (*domain.TicketEvent, error) {
					close(started)
					<-release
					return &domain.TicketEvent{TicketID: id, Type: domain.EventResponse}, nil
				}
			},
			run: func(svc *TicketService) error {
				_, err := svc.Respond(context.Background(), "1", "On it")
				return err
			},
		},
		{
			name: "remove",
			wire: func(gw *fakeGateway, release <-chan struct{}, started chan<- struct{}) {
				gw.deleteFn = func(context.Context, string) error {
					close(started)
					<-release
					return nil
				}
			},
			run: func(svc *TicketService) error {
				return svc.RemoveTicket(context.Background(), "1")
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gw := &fakeGateway{}
			svc := loadedService(t, gw, 1, ticket("1", domain.StatusOpen))
			gw.listFn = func(context.Context, int, int) (domain.PagedResult, error) {
				return domain.PagedResult{}, apperrors.NewNetworkError(errors.New("offline"))
			}
			require.Error(t, svc.Refresh(context.Background()))
			require.Error(t, svc.Err())

			started := make(chan struct{})
			release := make(chan struct{})
			tt.wire(gw, release, started)

			done := make(chan error, 1)
			go func() { done <- tt.run(svc) }()

			<-started
			assert.NoError(t, svc.Err(), "a new attempt clears the previous error")
			assert.True(t, svc.Loading())

			close(release)
			require.NoError(t, <-done)
			assert.NoError(t, svc.Err())
		})
	}
}

func TestFilterSettersCompose(t *testing.T) {
	t.Parallel()

	urgentOpen := ticket("1", domain.StatusOpen)
	urgentOpen.Priority = domain.PriorityHigh
	calmOpen := ticket("2", domain.StatusOpen)
	urgentClosed := ticket("3", domain.StatusClosed)
	urgentClosed.Priority = domain.PriorityHigh
	tickets := []domain.Ticket{urgentOpen, calmOpen, urgentClosed}

	orders := map[string]func(svc *TicketService, ctx context.Context){
		"status then priority": func(svc *TicketService, ctx context.Context) {
			svc.SetStatusFilter(ctx, string(domain.StatusOpen))
			svc.SetPriorityFilter(ctx, string(domain.PriorityHigh))
		},
		"priority then status": func(svc *TicketService, ctx context.Context) {
			svc.SetPriorityFilter(ctx, string(domain.PriorityHigh))
			svc.SetStatusFilter(ctx, string(domain.StatusOpen))
		},
	}

	for name, apply := range orders {
		apply := apply
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc := loadedService(t, &fakeGateway{}, len(tickets), tickets...)

			apply(svc, ctx)
			assert.Equal(t, domain.FilterSet{Status: string(domain.StatusOpen), Priority: string(domain.PriorityHigh)}, svc.Filters())
			assert.Equal(t, []string{"1"}, ids(svc.FilteredTickets()))

			svc.SetStatusFilter(ctx, "")
			assert.Equal(t, []string{"1", "3"}, ids(svc.FilteredTickets()))

			svc.SetPriorityFilter(ctx, "")
			assert.Equal(t, []string{"1", "2", "3"}, ids(svc.FilteredTickets()))
			assert.True(t, svc.Filters().Empty())
		})
	}
}
