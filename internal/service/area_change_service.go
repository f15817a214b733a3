package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/repository"
	apperrors "github.com/spec-kit/incident-router/pkg/util/errorutil"
)

var allowedAreaChangeStatuses = []domain.AreaChangeStatus{
	domain.AreaChangePending,
	domain.AreaChangeApproved,
	domain.AreaChangeRejected,
}

// AreaChangeService runs the area reassignment approval workflow.
type AreaChangeService struct {
	requests        repository.AreaChangeRepository
	tickets         repository.TicketRepository
	actors          repository.ActorRepository
	areas           repository.AreaRepository
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	now             func() time.Time
	applyOnApproval bool
}

// AreaChangeDependencies bundles collaborators.
type AreaChangeDependencies struct {
	AreaChangeRepo repository.AreaChangeRepository
	TicketRepo     repository.TicketRepository
	ActorRepo      repository.ActorRepository
	AreaRepo       repository.AreaRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Now            func() time.Time
	// ApplyOnApproval moves the ticket to the destination area when a request is approved.
	ApplyOnApproval bool
}

// AreaChangeCreateInput describes a new request. The requester is the current actor.
type AreaChangeCreateInput struct {
	TicketID          int64
	ApproverID        *int64
	OriginAreaID      int64
	DestinationAreaID int64
	Motive            string
}

// NewAreaChangeService constructs the service.
func NewAreaChangeService(deps AreaChangeDependencies) *AreaChangeService {
	return &AreaChangeService{
		requests:        deps.AreaChangeRepo,
		tickets:         deps.TicketRepo,
		actors:          deps.ActorRepo,
		areas:           deps.AreaRepo,
		dispatcher:      deps.Dispatcher,
		logger:          loggerOrNop(deps.Logger),
		now:             clockOrNow(deps.Now),
		applyOnApproval: deps.ApplyOnApproval,
	}
}

// CreateRequest opens a PENDIENTE request after checking every reference.
func (s *AreaChangeService) CreateRequest(ctx context.Context, requester *domain.Actor, input AreaChangeCreateInput) (*domain.AreaChangeRequest, error) {
	motive := strings.TrimSpace(input.Motive)
	var missing []string
	if motive == "" {
		missing = append(missing, "motive")
	}
	if input.TicketID <= 0 {
		missing = append(missing, "ticket_id")
	}
	if requester == nil || requester.ID <= 0 {
		missing = append(missing, "requester_id")
	}
	if input.OriginAreaID <= 0 {
		missing = append(missing, "origin_area_id")
	}
	if input.DestinationAreaID <= 0 {
		missing = append(missing, "destination_area_id")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if input.OriginAreaID == input.DestinationAreaID {
		return nil, apperrors.NewValidationError("origin and destination areas must differ", map[string]any{
			"origin_area_id":      input.OriginAreaID,
			"destination_area_id": input.DestinationAreaID,
		})
	}

	var ticket *domain.Ticket
	if err := s.checkReference(ctx, "ticket", input.TicketID, func(ctx context.Context, id int64) error {
		var err error
		ticket, err = s.tickets.GetByID(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	if ticket.AreaID != input.OriginAreaID {
		return nil, apperrors.NewValidationError("origin area does not match ticket area", map[string]any{
			"origin_area_id": input.OriginAreaID,
			"ticket_area_id": ticket.AreaID,
		})
	}
	if err := s.checkActor(ctx, "requester", requester.ID); err != nil {
		return nil, err
	}
	if input.ApproverID != nil {
		if err := s.checkActor(ctx, "approver", *input.ApproverID); err != nil {
			return nil, err
		}
	}
	if err := s.checkArea(ctx, "origin_area", input.OriginAreaID); err != nil {
		return nil, err
	}
	if err := s.checkArea(ctx, "destination_area", input.DestinationAreaID); err != nil {
		return nil, err
	}

	req := &domain.AreaChangeRequest{
		TicketID:          input.TicketID,
		RequesterID:       requester.ID,
		ApproverID:        input.ApproverID,
		OriginAreaID:      input.OriginAreaID,
		DestinationAreaID: input.DestinationAreaID,
		Motive:            motive,
		Status:            domain.AreaChangePending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventAreaChangeRequested,
		TicketID: req.TicketID,
		ActorID:  &requester.ID,
		Payload:  areaChangePayload(req, false),
	})
	return req, nil
}

// GetRequest returns one request.
func (s *AreaChangeService) GetRequest(ctx context.Context, requestID int64) (*domain.AreaChangeRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, requestNotFound(requestID)
		}
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

// ListByTicket returns a ticket's requests oldest first.
func (s *AreaChangeService) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AreaChangeRequest, error) {
	if _, err := getTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return reqs, nil
}

// UpdateRequest applies a patch. A status other than PENDIENTE resolves the
// request: the response time and approver are stamped and, when enabled, the
// ticket moves to the destination area in the same transaction. Resolved
// requests accept no further changes.
func (s *AreaChangeService) UpdateRequest(ctx context.Context, actor *domain.Actor, requestID int64, patch domain.AreaChangePatch) (*domain.AreaChangeRequest, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	current, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperrors.NewValidationError("no fields to update", map[string]any{
			"allowed": []string{"status", "motive", "approver_id"},
		})
	}

	var status *domain.AreaChangeStatus
	if patch.Status != nil {
		parsed, ok := domain.ParseAreaChangeStatus(*patch.Status)
		if !ok {
			return nil, invalidStatus(*patch.Status)
		}
		status = &parsed
	}
	if patch.Motive != nil {
		motive := strings.TrimSpace(*patch.Motive)
		if motive == "" {
			return nil, apperrors.NewValidationError("motive cannot be empty", nil)
		}
		patch.Motive = &motive
	}

	if current.Status.Terminal() {
		if status != nil && *status != current.Status {
			return nil, invalidStatus(string(*status))
		}
		if patch.Motive != nil || patch.ApproverID != nil {
			return nil, alreadyResolved(current)
		}
		return current, nil
	}

	if patch.ApproverID != nil {
		if err := s.checkActor(ctx, "approver", *patch.ApproverID); err != nil {
			return nil, err
		}
	}

	if status == nil || *status == domain.AreaChangePending {
		updated, err := s.requests.UpdatePending(ctx, requestID, patch.Motive, patch.ApproverID)
		if err != nil {
			return nil, s.explainLostUpdate(ctx, requestID, status, err)
		}
		return updated, nil
	}

	approverID := actor.ID
	if patch.ApproverID != nil {
		approverID = *patch.ApproverID
	}
	move := s.applyOnApproval && *status == domain.AreaChangeApproved
	resolved, err := s.requests.Resolve(ctx, repository.AreaChangeResolution{
		RequestID:   requestID,
		Status:      *status,
		ApproverID:  approverID,
		Motive:      patch.Motive,
		RespondedAt: s.now(),
		MoveTicket:  move,
	})
	if err != nil {
		return nil, s.explainLostUpdate(ctx, requestID, status, err)
	}

	if move {
		s.logger.Info("ticket moved by approved area change",
			zap.Int64("ticket_id", resolved.TicketID),
			zap.Int64("request_id", resolved.ID),
			zap.Int64("destination_area_id", resolved.DestinationAreaID))
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventAreaChangeResolved,
		TicketID: resolved.TicketID,
		ActorID:  &actor.ID,
		Payload:  areaChangePayload(resolved, move),
	})
	return resolved, nil
}

// DeleteRequest removes a request. An applied area change stays applied.
func (s *AreaChangeService) DeleteRequest(ctx context.Context, requestID int64) error {
	if err := s.requests.Delete(ctx, requestID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return requestNotFound(requestID)
		}
		return apperrors.MapError(err)
	}
	return nil
}

// explainLostUpdate classifies a guarded write that matched nothing: either the
// request was resolved meanwhile or the ticket left the origin area.
func (s *AreaChangeService) explainLostUpdate(ctx context.Context, requestID int64, status *domain.AreaChangeStatus, err error) error {
	if !errors.Is(err, repository.ErrConditionFailed) {
		return apperrors.MapError(err)
	}
	latest, getErr := s.GetRequest(ctx, requestID)
	if getErr != nil {
		return getErr
	}
	if !latest.Status.Terminal() {
		// Still pending, so the ticket guard failed.
		return apperrors.NewConflict("ticket no longer in origin area", map[string]any{
			"request_id":     latest.ID,
			"ticket_id":      latest.TicketID,
			"origin_area_id": latest.OriginAreaID,
		})
	}
	if status != nil && *status != latest.Status {
		return invalidStatus(string(*status))
	}
	return alreadyResolved(latest)
}

func (s *AreaChangeService) checkActor(ctx context.Context, relation string, id int64) error {
	return s.checkReference(ctx, relation, id, func(ctx context.Context, id int64) error {
		_, err := s.actors.GetByID(ctx, id)
		return err
	})
}

func (s *AreaChangeService) checkArea(ctx context.Context, relation string, id int64) error {
	return s.checkReference(ctx, relation, id, func(ctx context.Context, id int64) error {
		_, err := s.areas.GetByID(ctx, id)
		return err
	})
}

func (s *AreaChangeService) checkReference(ctx context.Context, relation string, id int64, lookup func(context.Context, int64) error) error {
	err := lookup(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewValidationError("invalid "+relation+" reference", map[string]any{
			"relation": relation,
			"id":       id,
		})
	}
	return apperrors.MapError(err)
}

func areaChangePayload(req *domain.AreaChangeRequest, applied bool) events.AreaChangePayload {
	return events.AreaChangePayload{
		RequestID:         req.ID,
		OriginAreaID:      req.OriginAreaID,
		DestinationAreaID: req.DestinationAreaID,
		Status:            req.Status,
		Applied:           applied,
	}
}

func invalidStatus(got string) error {
	return apperrors.NewValidationError("invalid status", map[string]any{
		"status":  got,
		"allowed": allowedAreaChangeStatuses,
	})
}

func alreadyResolved(req *domain.AreaChangeRequest) error {
	return apperrors.NewValidationError("request already resolved", map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
	})
}

func requestNotFound(requestID int64) error {
	return apperrors.NewNotFound("area change request", map[string]any{"request_id": requestID})
}
