package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/events"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/repository"
	apperrors "github.com/spec-kit/incident-router/pkg/util/errorutil"
)

// AssignmentService arbitrates exclusive ownership of tickets. It is the only
// path that changes a ticket's operator.
type AssignmentService struct {
	tickets    repository.TicketRepository
	releases   repository.ReleaseRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	ReleaseRepo repository.ReleaseRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		releases:   deps.ReleaseRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
	}
}

// ClaimTicket assigns an unassigned ticket of the operator's own area to the
// operator. The write is conditional on the ticket still being unassigned, so
// of two concurrent claims exactly one wins and the other gets a conflict.
func (s *AssignmentService) ClaimTicket(ctx context.Context, operator *domain.Actor, ticketID int64) (*domain.Ticket, error) {
	if operator == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if operator.AreaID == nil {
		s.metrics.RecordClaim(observability.ClaimForbidden)
		return nil, apperrors.NewForbidden("operator has no area")
	}
	areaID := *operator.AreaID

	err := s.tickets.Claim(ctx, ticketID, operator.ID, areaID)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, s.explainLostClaim(ctx, operator, ticketID)
		}
		s.metrics.RecordClaim(observability.ClaimError)
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordClaim(observability.ClaimWon)

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketClaimed,
		TicketID: ticketID,
		ActorID:  &operator.ID,
		Payload:  events.TicketClaimedPayload{OperatorID: operator.ID, AreaID: areaID},
	})
	return getTicket(ctx, s.tickets, ticketID)
}

// explainLostClaim classifies a claim whose guarded write matched nothing.
func (s *AssignmentService) explainLostClaim(ctx context.Context, operator *domain.Actor, ticketID int64) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordClaim(observability.ClaimError)
			return ticketNotFound(ticketID)
		}
		s.metrics.RecordClaim(observability.ClaimError)
		return apperrors.MapError(err)
	}
	if !operator.InArea(ticket.AreaID) {
		s.metrics.RecordClaim(observability.ClaimForbidden)
		return apperrors.NewForbidden("ticket belongs to another area")
	}
	s.metrics.RecordClaim(observability.ClaimConflict)
	return apperrors.NewConflict("already claimed", map[string]any{"ticket_id": ticketID})
}

// ReleaseTicket gives up ownership. Only the current operator may release; the
// release record and the unassignment commit together.
func (s *AssignmentService) ReleaseTicket(ctx context.Context, operator *domain.Actor, ticketID int64, comment *string) (*domain.Release, error) {
	if operator == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	ticket, err := getTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.AssignedTo(operator.ID) {
		return nil, apperrors.NewForbidden("not yours to release")
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	release := &domain.Release{TicketID: ticketID, OperatorID: operator.ID, Comment: comment}
	if err := s.releases.Release(ctx, release); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			// Ownership moved between the read and the guarded write.
			return nil, apperrors.NewForbidden("not yours to release")
		}
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordRelease()

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketReleased,
		TicketID: ticketID,
		ActorID:  &operator.ID,
		Payload: events.TicketReleasedPayload{
			ReleaseID:  release.ID,
			OperatorID: operator.ID,
			Comment:    release.Comment,
		},
	})
	return release, nil
}

// ListReleases returns a ticket's release log oldest first.
func (s *AssignmentService) ListReleases(ctx context.Context, ticketID int64) ([]domain.Release, error) {
	if _, err := getTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	releases, err := s.releases.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return releases, nil
}

// ListAllReleases returns every release record newest first.
func (s *AssignmentService) ListAllReleases(ctx context.Context) ([]domain.Release, error) {
	releases, err := s.releases.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return releases, nil
}

// DeleteRelease purges a release record. The ticket's current assignment is untouched.
func (s *AssignmentService) DeleteRelease(ctx context.Context, releaseID int64) error {
	if err := s.releases.Delete(ctx, releaseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("release", map[string]any{"release_id": releaseID})
		}
		return apperrors.MapError(err)
	}
	return nil
}
