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
	"github.com/spec-kit/incident-router/internal/sla"
	apperrors "github.com/spec-kit/incident-router/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	states     repository.StateRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	calculator *sla.Calculator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	StateRepo    repository.StateRepository
	CommentRepo  repository.CommentRepository
	HistoryRepo  repository.TicketHistoryRepository
	Calculator   *sla.Calculator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Now          func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	CategoryID  int64
	PassengerID *int64
}

// TicketView is a ticket with its thread and audit trail.
type TicketView struct {
	Ticket   *domain.Ticket
	Comments []domain.Comment
	History  []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	calculator := deps.Calculator
	if calculator == nil {
		calculator = sla.NewCalculator()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		states:     deps.StateRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		calculator: calculator,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Now),
	}
}

// CreateTicket opens a ticket in the category's default area with its SLA deadline.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if input.CategoryID <= 0 {
		missing = append(missing, "category_id")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.MapError(err)
	}

	open, err := s.states.GetByName(ctx, domain.StateOpen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("initial ticket state missing from catalog", zap.String("state", domain.StateOpen))
			return nil, apperrors.NewConfigurationError(err)
		}
		return nil, apperrors.MapError(err)
	}

	createdAt := s.now()
	deadline, err := s.calculator.Deadline(createdAt, category)
	if err != nil {
		s.logger.Error("category carries an unusable SLA",
			zap.Int64("category_id", category.ID),
			zap.Int("sla_hours", category.SLAHours),
			zap.Error(err))
		return nil, apperrors.NewConfigurationError(err)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		StateID:     open.ID,
		State:       open.Name,
		CategoryID:  category.ID,
		AreaID:      category.DefaultAreaID,
		CreatorID:   actor.ID,
		PassengerID: input.PassengerID,
		SLADeadline: deadline,
		CreatedAt:   createdAt,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, apperrors.NewValidationError("invalid reference", map[string]any{"passenger_id": input.PassengerID})
		}
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketCreatedPayload{
			CategoryID:  ticket.CategoryID,
			AreaID:      ticket.AreaID,
			Title:       ticket.Title,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// GetTicket returns the ticket with comments and history.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketView{Ticket: ticket, Comments: comments, History: history}, nil
}

// UpdateDetails edits title and description only.
func (s *TicketService) UpdateDetails(ctx context.Context, ticketID int64, details domain.TicketDetails) (*domain.Ticket, error) {
	if details.Empty() {
		return nil, apperrors.NewValidationError("no fields to update", map[string]any{"allowed": []string{"title", "description"}})
	}
	if details.Title != nil {
		title := strings.TrimSpace(*details.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		details.Title = &title
	}
	if details.Description != nil {
		description := strings.TrimSpace(*details.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description cannot be empty", nil)
		}
		details.Description = &description
	}

	if err := s.tickets.UpdateDetails(ctx, ticketID, details); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}
	return s.loadTicket(ctx, ticketID)
}

// DeleteTicket hard-deletes a ticket with no dependents.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID int64) error {
	err := s.tickets.Delete(ctx, ticketID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ticketNotFound(ticketID)
	case repository.IsForeignKeyViolation(err):
		return apperrors.NewConflict("ticket has dependent records", map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.MapError(err)
	}
}

// ChangeState moves a ticket along the lifecycle.
func (s *TicketService) ChangeState(ctx context.Context, actor *domain.Actor, ticketID int64, stateName string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	stateName = strings.TrimSpace(stateName)
	if stateName == "" {
		return nil, apperrors.NewValidationError("state is required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.State, stateName) {
		return nil, apperrors.NewValidationError("invalid state transition", map[string]any{
			"from":    ticket.State,
			"to":      stateName,
			"allowed": allowedTransitions[ticket.State],
		})
	}

	target, err := s.states.GetByName(ctx, stateName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("lifecycle state missing from catalog", zap.String("state", stateName))
			return nil, apperrors.NewConfigurationError(err)
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.tickets.TransitionState(ctx, ticketID, ticket.StateID, target.ID, actor.ID); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apperrors.NewConflict("ticket state changed concurrently", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketStateChanged,
		TicketID: ticketID,
		ActorID:  &actor.ID,
		Payload:  events.TicketStateChangedPayload{OldState: ticket.State, NewState: target.Name},
	})
	return s.loadTicket(ctx, ticketID)
}

// AddComment appends a note to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.Actor, ticketID int64, body string) (*domain.Comment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", nil)
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{TicketID: ticketID, AuthorID: actor.ID, Body: body}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// ListComments returns the thread oldest first.
func (s *TicketService) ListComments(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListHistory returns the audit trail oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return getTicket(ctx, s.tickets, ticketID)
}

var allowedTransitions = map[string][]string{
	domain.StateOpen:       {domain.StateAssigned},
	domain.StateAssigned:   {domain.StateInProgress},
	domain.StateInProgress: {domain.StatePending, domain.StateResolved},
	domain.StatePending:    {domain.StateInProgress, domain.StateResolved},
	domain.StateResolved:   {domain.StateClosed, domain.StateInProgress},
	domain.StateClosed:     {},
}

func isValidTransition(current, next string) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
