package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/sla"
	apperrors "github.com/spec-kit/incident-router/pkg/util/errorutil"
)

type fixture struct {
	store       *memStore
	tickets     *TicketService
	assignments *AssignmentService
	areaChanges *AreaChangeService
	metrics     *observability.Metrics
	logs        *observer.ObservedLogs

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T, applyOnApproval bool) *fixture {
	t.Helper()
	store := newMemStore()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher()
	f := &fixture{store: store, metrics: observability.NewMetrics(), logs: logs}

	record := func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketClaimed, events.EventTicketReleased,
		events.EventTicketStateChanged, events.EventAreaChangeRequested, events.EventAreaChangeResolved,
	} {
		dispatcher.Subscribe(et, record)
	}

	now := func() time.Time { return store.now }
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   fakeTickets{store},
		CategoryRepo: fakeCatalog{store},
		StateRepo:    fakeCatalog{store},
		CommentRepo:  fakeComments{store},
		HistoryRepo:  fakeHistory{store},
		Calculator:   sla.NewCalculator(),
		Dispatcher:   dispatcher,
		Logger:       logger,
		Now:          now,
	})
	f.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  fakeTickets{store},
		ReleaseRepo: fakeReleases{store},
		Dispatcher:  dispatcher,
		Metrics:     f.metrics,
		Logger:      logger,
	})
	f.areaChanges = NewAreaChangeService(AreaChangeDependencies{
		AreaChangeRepo:  fakeAreaChanges{store},
		TicketRepo:      fakeTickets{store},
		ActorRepo:       fakeActors{store},
		AreaRepo:        fakeAreas{store},
		Dispatcher:      dispatcher,
		Logger:          logger,
		Now:             now,
		ApplyOnApproval: applyOnApproval,
	})
	return f
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, code), "want %s, got %v", code, err)
}

func TestCreateTicketComputesDeadlineAndDefaultArea(t *testing.T) {
	f := newFixture(t, true)
	f.store.categories[1] = &domain.Category{ID: 1, Name: "Fallo de Sistema Crítico", Priority: domain.PriorityHigh, SLAHours: 4, DefaultAreaID: 3}
	creator := &domain.Actor{ID: 9}

	ticket, err := f.tickets.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:       "  Sistema caído ",
		Description: "No responde",
		CategoryID:  1,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sistema caído", ticket.Title)
	assert.Equal(t, time.Date(2025, 11, 11, 12, 0, 0, 0, time.UTC), ticket.SLADeadline)
	assert.Equal(t, int64(3), ticket.AreaID)
	assert.Nil(t, ticket.OperatorID)
	assert.Equal(t, domain.StateOpen, ticket.State)
	assert.Equal(t, int64(9), ticket.CreatorID)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.eventTypes())

	history, err := f.tickets.ListHistory(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "creation writes no history")
}

func TestCreateTicketFailures(t *testing.T) {
	f := newFixture(t, true)
	f.store.categories[1] = &domain.Category{ID: 1, SLAHours: 4, DefaultAreaID: 3}
	f.store.categories[2] = &domain.Category{ID: 2, SLAHours: 0, DefaultAreaID: 3}
	actor := &domain.Actor{ID: 9}
	ctx := context.Background()

	_, err := f.tickets.CreateTicket(ctx, actor, TicketCreateInput{Description: "d", CategoryID: 1})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(ctx, actor, TicketCreateInput{Title: "t", Description: "d"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(ctx, actor, TicketCreateInput{Title: "t", Description: "d", CategoryID: 42})
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.tickets.CreateTicket(ctx, actor, TicketCreateInput{Title: "t", Description: "d", CategoryID: 2})
	assertCode(t, err, apperrors.CodeConfiguration)

	delete(f.store.states, domain.StateOpen)
	_, err = f.tickets.CreateTicket(ctx, actor, TicketCreateInput{Title: "t", Description: "d", CategoryID: 1})
	assertCode(t, err, apperrors.CodeConfiguration)
	assert.Equal(t, "service misconfigured", apperrors.ToDomainError(err).Message)
	assert.NotZero(t, f.logs.FilterMessage("initial ticket state missing from catalog").Len())
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	ctx := context.Background()

	_, err := f.tickets.UpdateDetails(ctx, 7, domain.TicketDetails{})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.UpdateDetails(ctx, 8, domain.TicketDetails{Title: ptr("x")})
	assertCode(t, err, apperrors.CodeNotFound)

	ticket, err := f.tickets.UpdateDetails(ctx, 7, domain.TicketDetails{Title: ptr("nuevo")})
	require.NoError(t, err)
	assert.Equal(t, "nuevo", ticket.Title)
	assert.Equal(t, "d", ticket.Description)
	assert.Equal(t, int64(3), ticket.AreaID)
}

func TestDeleteTicket(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	f.store.addTicket(8, 3, nil)
	f.store.dependents[8] = true
	ctx := context.Background()

	require.NoError(t, f.tickets.DeleteTicket(ctx, 7))
	assertCode(t, f.tickets.DeleteTicket(ctx, 7), apperrors.CodeNotFound)
	assertCode(t, f.tickets.DeleteTicket(ctx, 8), apperrors.CodeConflict)
}

func TestChangeStateEnforcesTransitions(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	actor := &domain.Actor{ID: 5}
	ctx := context.Background()

	_, err := f.tickets.ChangeState(ctx, actor, 7, domain.StateResolved)
	assertCode(t, err, apperrors.CodeValidation)

	for _, next := range []string{domain.StateAssigned, domain.StateInProgress, domain.StateResolved, domain.StateClosed} {
		ticket, err := f.tickets.ChangeState(ctx, actor, 7, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, ticket.State)
	}

	_, err = f.tickets.ChangeState(ctx, actor, 7, domain.StateInProgress)
	assertCode(t, err, apperrors.CodeValidation)

	history, err := f.tickets.ListHistory(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestComments(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	actor := &domain.Actor{ID: 5}
	ctx := context.Background()

	_, err := f.tickets.AddComment(ctx, actor, 7, "   ")
	assertCode(t, err, apperrors.CodeValidation)
	_, err = f.tickets.AddComment(ctx, actor, 99, "hola")
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.tickets.AddComment(ctx, actor, 7, "primero")
	require.NoError(t, err)
	_, err = f.tickets.AddComment(ctx, actor, 7, "segundo")
	require.NoError(t, err)

	view, err := f.tickets.GetTicket(ctx, 7)
	require.NoError(t, err)
	require.Len(t, view.Comments, 2)
	assert.Equal(t, "primero", view.Comments[0].Body)
}

func TestClaimAssignsOperator(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	x := f.store.addActor(10, 2, ptr(int64(3)))

	ticket, err := f.assignments.ClaimTicket(context.Background(), x, 7)
	require.NoError(t, err)
	require.NotNil(t, ticket.OperatorID)
	assert.Equal(t, int64(10), *ticket.OperatorID)
	assert.Equal(t, domain.StateOpen, ticket.State, "claim never moves the state")
}

func TestClaimConflictAndScope(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)
	x := f.store.addActor(10, 2, ptr(int64(3)))
	y := f.store.addActor(11, 2, ptr(int64(3)))
	outsider := f.store.addActor(12, 2, ptr(int64(4)))
	noArea := f.store.addActor(13, 2, nil)
	ctx := context.Background()

	_, err := f.assignments.ClaimTicket(ctx, x, 7)
	require.NoError(t, err)

	_, err = f.assignments.ClaimTicket(ctx, y, 7)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, "already claimed", apperrors.ToDomainError(err).Message)

	f.store.addTicket(8, 3, nil)
	_, err = f.assignments.ClaimTicket(ctx, outsider, 8)
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.assignments.ClaimTicket(ctx, noArea, 8)
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.assignments.ClaimTicket(ctx, x, 99)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestConcurrentClaimsHaveExactlyOneWinner(t *testing.T) {
	f := newFixture(t, true)
	f.store.addTicket(7, 3, nil)

	const operators = 16
	var wins, conflicts int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < operators; i++ {
		op := f.store.addActor(int64(100+i), 2, ptr(int64(3)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.assignments.ClaimTicket(context.Background(), op, 7)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case apperrors.IsCode(err, apperrors.CodeConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(operators-1), conflicts)
	ticket, err := fakeTickets{f.store}.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, ticket.OperatorID)
}

func TestReleaseIsAtomicAndOwnerOnly(t *testing.T) {
	f := newFixture(t, true)
	x := f.store.addActor(10, 2, ptr(int64(3)))
	admin := f.store.addActor(1, 4, ptr(int64(3)))
	f.store.addTicket(7, 3, ptr(int64(10)))
	ctx := context.Background()

	_, err := f.assignments.ReleaseTicket(ctx, admin, 7, nil)
	assertCode(t, err, apperrors.CodeForbidden)
	assert.Equal(t, "not yours to release", apperrors.ToDomainError(err).Message)

	release, err := f.assignments.ReleaseTicket(ctx, x, 7, ptr("blocked"))
	require.NoError(t, err)
	assert.Equal(t, "blocked", *release.Comment)

	ticket, err := fakeTickets{f.store}.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, ticket.OperatorID)

	releases, err := f.assignments.ListReleases(ctx, 7)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, int64(10), releases[0].OperatorID)

	_, err = f.assignments.ReleaseTicket(ctx, x, 7, nil)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.assignments.ReleaseTicket(ctx, x, 99, nil)
	assertCode(t, err, apperrors.CodeNotFound)
}

type failingReleases struct{ fakeReleases }

func (failingReleases) Release(context.Context, *domain.Release) error {
	return errors.New("tx aborted")
}

func TestReleaseFailureReportsError(t *testing.T) {
	f := newFixture(t, true)
	x := f.store.addActor(10, 2, ptr(int64(3)))
	f.store.addTicket(7, 3, ptr(int64(10)))
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:  fakeTickets{f.store},
		ReleaseRepo: failingReleases{fakeReleases{f.store}},
	})

	_, err := svc.ReleaseTicket(context.Background(), x, 7, nil)
	assertCode(t, err, apperrors.CodeInternal)
	assert.Empty(t, f.store.releases)
	assert.NotNil(t, f.store.tickets[7].OperatorID)
}

func TestDeleteReleaseKeepsAssignment(t *testing.T) {
	f := newFixture(t, true)
	x := f.store.addActor(10, 2, ptr(int64(3)))
	f.store.addTicket(7, 3, ptr(int64(10)))
	ctx := context.Background()

	release, err := f.assignments.ReleaseTicket(ctx, x, 7, nil)
	require.NoError(t, err)
	_, err = f.assignments.ClaimTicket(ctx, x, 7)
	require.NoError(t, err)

	require.NoError(t, f.assignments.DeleteRelease(ctx, release.ID))
	assertCode(t, f.assignments.DeleteRelease(ctx, release.ID), apperrors.CodeNotFound)
	assert.True(t, f.store.tickets[7].AssignedTo(10))

	all, err := f.assignments.ListAllReleases(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func seedAreaChange(f *fixture) *domain.Actor {
	f.store.addArea(3)
	f.store.addArea(4)
	f.store.addTicket(9, 3, ptr(int64(10)))
	f.store.addActor(10, 2, ptr(int64(3)))
	return f.store.addActor(20, 3, ptr(int64(3)))
}

func TestCreateAreaChangeValidation(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    AreaChangeCreateInput
		relation string
	}{
		{"missing motive", AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4}, ""},
		{"same area", AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 3, Motive: "m"}, ""},
		{"unknown ticket", AreaChangeCreateInput{TicketID: 99, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"}, "ticket"},
		{"unknown approver", AreaChangeCreateInput{TicketID: 9, ApproverID: ptr(int64(77)), OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"}, "approver"},
		{"unknown destination", AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 5, Motive: "m"}, "destination_area"},
		{"origin is not the ticket area", AreaChangeCreateInput{TicketID: 9, OriginAreaID: 4, DestinationAreaID: 3, Motive: "m"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.areaChanges.CreateRequest(ctx, requester, tt.input)
			assertCode(t, err, apperrors.CodeValidation)
			if tt.relation != "" {
				assert.Equal(t, tt.relation, apperrors.ToDomainError(err).Details["relation"])
			}
		})
	}

	_, err := f.areaChanges.CreateRequest(ctx, &domain.Actor{ID: 55}, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"})
	assertCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "requester", apperrors.ToDomainError(err).Details["relation"])
}

func TestAreaChangeApprovalMovesTicket(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	ctx := context.Background()

	req, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "equipo equivocado"})
	require.NoError(t, err)
	assert.Equal(t, domain.AreaChangePending, req.Status)
	assert.Nil(t, req.RespondedAt)

	resolved, err := f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("APROBADA")})
	require.NoError(t, err)
	assert.Equal(t, domain.AreaChangeApproved, resolved.Status)
	require.NotNil(t, resolved.RespondedAt)
	assert.Equal(t, f.store.now, *resolved.RespondedAt)
	assert.Equal(t, requester.ID, *resolved.ApproverID)

	ticket := f.store.tickets[9]
	assert.Equal(t, int64(4), ticket.AreaID)
	assert.Nil(t, ticket.OperatorID, "operator belonged to the old area")
	assert.Contains(t, f.eventTypes(), events.EventAreaChangeResolved)
}

func TestAreaChangeApprovalWithoutMove(t *testing.T) {
	f := newFixture(t, false)
	requester := seedAreaChange(f)
	ctx := context.Background()

	req, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"})
	require.NoError(t, err)
	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("APROBADA")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.store.tickets[9].AreaID)
}

func TestAreaChangeTerminality(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	ctx := context.Background()

	req, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"})
	require.NoError(t, err)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("CANCELADA")})
	assertCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "invalid status", apperrors.ToDomainError(err).Message)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("RECHAZADA")})
	require.NoError(t, err)

	for _, status := range []string{"APROBADA", "PENDIENTE"} {
		_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr(status)})
		assertCode(t, err, apperrors.CodeValidation)
	}
	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Motive: ptr("otro")})
	assertCode(t, err, apperrors.CodeValidation)

	same, err := f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("RECHAZADA")})
	require.NoError(t, err)
	assert.Equal(t, domain.AreaChangeRejected, same.Status)
	assert.Equal(t, int64(3), f.store.tickets[9].AreaID)
}

func TestAreaChangePendingEditsAndDelete(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	ctx := context.Background()

	req, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"})
	require.NoError(t, err)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{})
	assertCode(t, err, apperrors.CodeValidation)

	updated, err := f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Motive: ptr("detalle")})
	require.NoError(t, err)
	assert.Equal(t, "detalle", updated.Motive)
	assert.Equal(t, domain.AreaChangePending, updated.Status)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, 999, domain.AreaChangePatch{Motive: ptr("x")})
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, req.ID, domain.AreaChangePatch{Status: ptr("APROBADA")})
	require.NoError(t, err)
	require.NoError(t, f.areaChanges.DeleteRequest(ctx, req.ID))
	assert.Equal(t, int64(4), f.store.tickets[9].AreaID, "deleting never reverts an applied change")
	assertCode(t, f.areaChanges.DeleteRequest(ctx, req.ID), apperrors.CodeNotFound)
}

func TestReleaseLogListings(t *testing.T) {
	f := newFixture(t, true)
	x := f.store.addActor(10, 2, ptr(int64(3)))
	f.store.addTicket(7, 3, ptr(int64(10)))
	ctx := context.Background()

	_, err := f.assignments.ReleaseTicket(ctx, x, 7, ptr("  turno terminado "))
	require.NoError(t, err)

	logged, err := f.assignments.ListReleases(ctx, 7)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.NotNil(t, logged[0].Comment)
	assert.Equal(t, "turno terminado", *logged[0].Comment)

	_, err = f.assignments.ListReleases(ctx, 404)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestAreaChangeLookups(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	ctx := context.Background()

	req, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "m"})
	require.NoError(t, err)

	got, err := f.areaChanges.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requester.ID, got.RequesterID)

	_, err = f.areaChanges.GetRequest(ctx, 999)
	assertCode(t, err, apperrors.CodeNotFound)

	list, err := f.areaChanges.ListByTicket(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.areaChanges.ListByTicket(ctx, 404)
	assertCode(t, err, apperrors.CodeNotFound)
	assert.Contains(t, f.eventTypes(), events.EventAreaChangeRequested)
}

func TestStaleAreaChangeCannotMoveTicket(t *testing.T) {
	f := newFixture(t, true)
	requester := seedAreaChange(f)
	f.store.addArea(5)
	ctx := context.Background()

	first, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 4, Motive: "a"})
	require.NoError(t, err)
	second, err := f.areaChanges.CreateRequest(ctx, requester, AreaChangeCreateInput{TicketID: 9, OriginAreaID: 3, DestinationAreaID: 5, Motive: "b"})
	require.NoError(t, err)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, first.ID, domain.AreaChangePatch{Status: ptr("APROBADA")})
	require.NoError(t, err)

	_, err = f.areaChanges.UpdateRequest(ctx, requester, second.ID, domain.AreaChangePatch{Status: ptr("APROBADA")})
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, int64(4), f.store.tickets[9].AreaID)

	stale, err := f.areaChanges.GetRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AreaChangePending, stale.Status)
	assert.Nil(t, stale.RespondedAt)

	rejected, err := f.areaChanges.UpdateRequest(ctx, requester, second.ID, domain.AreaChangePatch{Status: ptr("RECHAZADA")})
	require.NoError(t, err)
	assert.Equal(t, domain.AreaChangeRejected, rejected.Status)
	assert.Equal(t, int64(4), f.store.tickets[9].AreaID)
}

type recordingQueue struct {
	mu     sync.Mutex
	events []events.Event
}

func (q *recordingQueue) Enqueue(e events.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	return true
}

func TestNotificationsForwardEveryEventToWebhooks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	queue := &recordingQueue{}
	NewNotificationService(dispatcher, zap.NewNop(), queue).RegisterHandlers()

	all := []events.EventType{
		events.EventTicketCreated, events.EventTicketClaimed, events.EventTicketReleased,
		events.EventTicketStateChanged, events.EventTicketSLABreached,
		events.EventAreaChangeRequested, events.EventAreaChangeResolved,
	}
	for i, et := range all {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: et, TicketID: int64(i + 1)}))
	}

	require.Len(t, queue.events, len(all))
	for i, e := range queue.events {
		assert.Equal(t, all[i], e.Type)
		assert.NotEmpty(t, e.ID)
	}
}

func TestNotificationsWithoutWebhookQueue(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), nil).RegisterHandlers()
	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: 1}))
}
