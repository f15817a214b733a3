package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	UpdateDetails(ctx context.Context, id int64, details domain.TicketDetails) error
	Delete(ctx context.Context, id int64) error
	// Claim sets the operator only while the ticket is unassigned and still in
	// areaID. It returns ErrConditionFailed when the guard does not hold.
	Claim(ctx context.Context, ticketID, operatorID, areaID int64) error
	// TransitionState moves the ticket from fromStateID to toStateID, returning
	// ErrConditionFailed when the persisted state is no longer fromStateID.
	TransitionState(ctx context.Context, ticketID, fromStateID, toStateID, actorID int64) error
	ListOverdue(ctx context.Context, now time.Time, excludeStates []string, limit int) ([]domain.Ticket, error)
	MarkBreached(ctx context.Context, ticketID int64, at time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.title, t.description, t.state_id, s.name, t.category_id, t.assigned_area_id,
        t.assigned_operator_id, t.creator_id, t.passenger_id, t.sla_deadline, t.sla_breached_at,
        t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, state_id, category_id, assigned_area_id,
            assigned_operator_id, creator_id, passenger_id, sla_deadline, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.StateID,
		ticket.CategoryID,
		ticket.AreaID,
		ticket.OperatorID,
		ticket.CreatorID,
		ticket.PassengerID,
		ticket.SLADeadline,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + `
        FROM tickets t JOIN states s ON s.id = t.state_id
        WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) UpdateDetails(ctx context.Context, id int64, details domain.TicketDetails) error {
	const query = `
        UPDATE tickets SET title=COALESCE($2, title), description=COALESCE($3, description), updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, details.Title, details.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Claim(ctx context.Context, ticketID, operatorID, areaID int64) error {
	const claim = `
        UPDATE tickets SET assigned_operator_id=$2, updated_at=NOW()
        WHERE id=$1 AND assigned_operator_id IS NULL AND assigned_area_id=$3`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, claim, ticketID, operatorID, areaID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrConditionFailed
		}
		return insertHistory(ctx, tx, &domain.TicketHistory{
			TicketID:   ticketID,
			ActorID:    &operatorID,
			ChangeType: domain.ChangeTypeClaim,
			OldValue:   map[string]any{"assigned_operator_id": nil},
			NewValue:   map[string]any{"assigned_operator_id": operatorID},
		})
	})
}

func (r *ticketRepository) TransitionState(ctx context.Context, ticketID, fromStateID, toStateID, actorID int64) error {
	const transition = `
        UPDATE tickets SET state_id=$3, updated_at=NOW()
        WHERE id=$1 AND state_id=$2`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, transition, ticketID, fromStateID, toStateID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrConditionFailed
		}
		return insertHistory(ctx, tx, &domain.TicketHistory{
			TicketID:   ticketID,
			ActorID:    &actorID,
			ChangeType: domain.ChangeTypeState,
			OldValue:   map[string]any{"state_id": fromStateID},
			NewValue:   map[string]any{"state_id": toStateID},
		})
	})
}

func (r *ticketRepository) ListOverdue(ctx context.Context, now time.Time, excludeStates []string, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s
        FROM tickets t JOIN states s ON s.id = t.state_id
        WHERE t.sla_breached_at IS NULL AND t.sla_deadline < $1 AND NOT (s.name = ANY($2))
        ORDER BY t.sla_deadline ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query, now, excludeStates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MarkBreached(ctx context.Context, ticketID int64, at time.Time) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE tickets SET sla_breached_at=$2 WHERE id=$1 AND sla_breached_at IS NULL`, ticketID, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.StateID,
		&ticket.State,
		&ticket.CategoryID,
		&ticket.AreaID,
		&ticket.OperatorID,
		&ticket.CreatorID,
		&ticket.PassengerID,
		&ticket.SLADeadline,
		&ticket.SLABreachedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
