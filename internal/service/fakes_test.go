package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/repository"
)

var fkViolation = &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}

// memStore is an in-memory stand-in for the relational store. Guarded writes
// hold the lock across check and write, like a conditional UPDATE.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	tickets    map[int64]*domain.Ticket
	states     map[string]*domain.State
	categories map[int64]*domain.Category
	areas      map[int64]*domain.Area
	actors     map[int64]*domain.Actor
	comments   []domain.Comment
	history    []domain.TicketHistory
	releases   []domain.Release
	requests   map[int64]*domain.AreaChangeRequest
	// dependents marks tickets whose delete violates a foreign key.
	dependents map[int64]bool
	now        time.Time
}

func newMemStore() *memStore {
	m := &memStore{
		nextID:     100,
		tickets:    map[int64]*domain.Ticket{},
		states:     map[string]*domain.State{},
		categories: map[int64]*domain.Category{},
		areas:      map[int64]*domain.Area{},
		actors:     map[int64]*domain.Actor{},
		requests:   map[int64]*domain.AreaChangeRequest{},
		dependents: map[int64]bool{},
		now:        time.Date(2025, 11, 11, 8, 0, 0, 0, time.UTC),
	}
	for i, name := range []string{
		domain.StateOpen, domain.StateAssigned, domain.StateInProgress,
		domain.StatePending, domain.StateResolved, domain.StateClosed,
	} {
		m.states[name] = &domain.State{ID: int64(i + 1), Name: name}
	}
	return m
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) stateName(id int64) string {
	for _, s := range m.states {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (m *memStore) addArea(id int64) {
	m.areas[id] = &domain.Area{ID: id, Name: "area"}
}

func (m *memStore) addActor(id, roleID int64, areaID *int64) *domain.Actor {
	a := &domain.Actor{ID: id, RoleID: roleID, AreaID: areaID, Active: true}
	m.actors[id] = a
	return a
}

func (m *memStore) addTicket(id, areaID int64, operator *int64) *domain.Ticket {
	t := &domain.Ticket{
		ID:          id,
		Title:       "t",
		Description: "d",
		StateID:     m.states[domain.StateOpen].ID,
		State:       domain.StateOpen,
		CategoryID:  1,
		AreaID:      areaID,
		OperatorID:  operator,
		CreatorID:   1,
		SLADeadline: m.now.Add(4 * time.Hour),
		CreatedAt:   m.now,
	}
	m.tickets[id] = t
	return t
}

func (m *memStore) appendHistory(h domain.TicketHistory) {
	h.ID = m.id()
	h.CreatedAt = m.now
	m.history = append(m.history, h)
}

type fakeTickets struct{ *memStore }

func (f fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f fakeTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	cp.State = f.stateName(t.StateID)
	return &cp, nil
}

func (f fakeTickets) UpdateDetails(_ context.Context, id int64, d domain.TicketDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if d.Title != nil {
		t.Title = *d.Title
	}
	if d.Description != nil {
		t.Description = *d.Description
	}
	return nil
}

func (f fakeTickets) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	if f.dependents[id] {
		return fkViolation
	}
	delete(f.tickets, id)
	return nil
}

func (f fakeTickets) Claim(_ context.Context, ticketID, operatorID, areaID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.OperatorID != nil || t.AreaID != areaID {
		return repository.ErrConditionFailed
	}
	op := operatorID
	t.OperatorID = &op
	f.appendHistory(domain.TicketHistory{TicketID: ticketID, ActorID: &op, ChangeType: domain.ChangeTypeClaim})
	return nil
}

func (f fakeTickets) TransitionState(_ context.Context, ticketID, from, to, actorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.StateID != from {
		return repository.ErrConditionFailed
	}
	t.StateID = to
	f.appendHistory(domain.TicketHistory{TicketID: ticketID, ActorID: &actorID, ChangeType: domain.ChangeTypeState})
	return nil
}

func (f fakeTickets) ListOverdue(_ context.Context, now time.Time, exclude []string, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := map[string]bool{}
	for _, s := range exclude {
		skip[s] = true
	}
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.SLABreachedAt == nil && t.SLADeadline.Before(now) && !skip[f.stateName(t.StateID)] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SLADeadline.Before(out[j].SLADeadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeTickets) MarkBreached(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.SLABreachedAt != nil {
		return false, nil
	}
	t.SLABreachedAt = &at
	return true, nil
}

type fakeReleases struct{ *memStore }

func (f fakeReleases) Release(_ context.Context, r *domain.Release) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[r.TicketID]
	if !ok || !t.AssignedTo(r.OperatorID) {
		return repository.ErrConditionFailed
	}
	t.OperatorID = nil
	r.ID = f.id()
	r.CreatedAt = f.now
	f.releases = append(f.releases, *r)
	f.appendHistory(domain.TicketHistory{TicketID: r.TicketID, ActorID: &r.OperatorID, ChangeType: domain.ChangeTypeRelease})
	return nil
}

func (f fakeReleases) GetByID(_ context.Context, id int64) (*domain.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.releases {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakeReleases) ListByTicket(_ context.Context, ticketID int64) ([]domain.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Release
	for _, r := range f.releases {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeReleases) ListAll(_ context.Context) ([]domain.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Release, 0, len(f.releases))
	for i := len(f.releases) - 1; i >= 0; i-- {
		out = append(out, f.releases[i])
	}
	return out, nil
}

func (f fakeReleases) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.releases {
		if r.ID == id {
			f.releases = append(f.releases[:i], f.releases[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeAreaChanges struct{ *memStore }

func (f fakeAreaChanges) Create(_ context.Context, r *domain.AreaChangeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	r.RequestedAt = f.now
	cp := *r
	f.requests[r.ID] = &cp
	return nil
}

func (f fakeAreaChanges) GetByID(_ context.Context, id int64) (*domain.AreaChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f fakeAreaChanges) ListByTicket(_ context.Context, ticketID int64) ([]domain.AreaChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AreaChangeRequest
	for _, r := range f.requests {
		if r.TicketID == ticketID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeAreaChanges) UpdatePending(_ context.Context, id int64, motive *string, approverID *int64) (*domain.AreaChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Status != domain.AreaChangePending {
		return nil, repository.ErrConditionFailed
	}
	if motive != nil {
		r.Motive = *motive
	}
	if approverID != nil {
		r.ApproverID = approverID
	}
	cp := *r
	return &cp, nil
}

func (f fakeAreaChanges) Resolve(_ context.Context, res repository.AreaChangeResolution) (*domain.AreaChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[res.RequestID]
	if !ok || r.Status != domain.AreaChangePending {
		return nil, repository.ErrConditionFailed
	}
	move := res.MoveTicket && res.Status == domain.AreaChangeApproved
	if move {
		if t, ok := f.tickets[r.TicketID]; !ok || t.AreaID != r.OriginAreaID {
			return nil, repository.ErrConditionFailed
		}
	}
	r.Status = res.Status
	approver := res.ApproverID
	r.ApproverID = &approver
	at := res.RespondedAt
	r.RespondedAt = &at
	if res.Motive != nil {
		r.Motive = *res.Motive
	}
	if move {
		t := f.tickets[r.TicketID]
		t.AreaID = r.DestinationAreaID
		t.OperatorID = nil
		f.appendHistory(domain.TicketHistory{TicketID: t.ID, ActorID: &approver, ChangeType: domain.ChangeTypeArea})
	}
	cp := *r
	return &cp, nil
}

func (f fakeAreaChanges) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.requests, id)
	return nil
}

type fakeComments struct{ *memStore }

func (f fakeComments) Create(_ context.Context, c *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	c.CreatedAt = f.now
	f.comments = append(f.comments, *c)
	return nil
}

func (f fakeComments) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Comment
	for _, c := range f.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeHistory struct{ *memStore }

func (f fakeHistory) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeCatalog struct{ *memStore }

func (f fakeCatalog) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f fakeCatalog) GetByName(_ context.Context, name string) (*domain.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[name]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

type fakeActors struct{ *memStore }

func (f fakeActors) GetByID(_ context.Context, id int64) (*domain.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

type fakeAreas struct{ *memStore }

func (f fakeAreas) GetByID(_ context.Context, id int64) (*domain.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.areas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}
