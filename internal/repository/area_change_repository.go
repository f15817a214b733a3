package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// AreaChangeResolution describes a transition of a request out of PENDIENTE.
type AreaChangeResolution struct {
	RequestID   int64
	Status      domain.AreaChangeStatus
	ApproverID  int64
	Motive      *string
	RespondedAt time.Time
	// MoveTicket applies the destination area to the ticket in the same transaction.
	MoveTicket bool
}

// AreaChangeRepository persists area-change requests.
type AreaChangeRepository interface {
	Create(ctx context.Context, req *domain.AreaChangeRequest) error
	GetByID(ctx context.Context, id int64) (*domain.AreaChangeRequest, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AreaChangeRequest, error)
	// UpdatePending edits motive/approver while the request is PENDIENTE.
	UpdatePending(ctx context.Context, id int64, motive *string, approverID *int64) (*domain.AreaChangeRequest, error)
	// Resolve returns ErrConditionFailed when the request already left PENDIENTE
	// or, when moving the ticket, the ticket is no longer in the origin area.
	Resolve(ctx context.Context, res AreaChangeResolution) (*domain.AreaChangeRequest, error)
	Delete(ctx context.Context, id int64) error
}

type areaChangeRepository struct {
	pool *pgxpool.Pool
}

// NewAreaChangeRepository builds repository.
func NewAreaChangeRepository(pool *pgxpool.Pool) AreaChangeRepository {
	return &areaChangeRepository{pool: pool}
}

const areaChangeColumns = `id, ticket_id, requester_id, approver_id, origin_area_id, destination_area_id,
        motive, status, requested_at, responded_at`

func (r *areaChangeRepository) Create(ctx context.Context, req *domain.AreaChangeRequest) error {
	const query = `
        INSERT INTO area_change_requests (ticket_id, requester_id, approver_id, origin_area_id,
            destination_area_id, motive, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, requested_at`
	return r.pool.QueryRow(ctx, query,
		req.TicketID,
		req.RequesterID,
		req.ApproverID,
		req.OriginAreaID,
		req.DestinationAreaID,
		req.Motive,
		req.Status,
	).Scan(&req.ID, &req.RequestedAt)
}

func (r *areaChangeRepository) GetByID(ctx context.Context, id int64) (*domain.AreaChangeRequest, error) {
	query := `SELECT ` + areaChangeColumns + ` FROM area_change_requests WHERE id=$1`
	return scanAreaChange(r.pool.QueryRow(ctx, query, id))
}

func (r *areaChangeRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AreaChangeRequest, error) {
	query := `SELECT ` + areaChangeColumns + `
        FROM area_change_requests WHERE ticket_id=$1 ORDER BY requested_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AreaChangeRequest
	for rows.Next() {
		req, err := scanAreaChange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *areaChangeRepository) UpdatePending(ctx context.Context, id int64, motive *string, approverID *int64) (*domain.AreaChangeRequest, error) {
	query := `
        UPDATE area_change_requests SET motive=COALESCE($2, motive), approver_id=COALESCE($3, approver_id)
        WHERE id=$1 AND status='PENDIENTE'
        RETURNING ` + areaChangeColumns
	req, err := scanAreaChange(r.pool.QueryRow(ctx, query, id, motive, approverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConditionFailed
	}
	return req, err
}

func (r *areaChangeRepository) Resolve(ctx context.Context, res AreaChangeResolution) (*domain.AreaChangeRequest, error) {
	resolve := `
        UPDATE area_change_requests
        SET status=$2, approver_id=$3, motive=COALESCE($4, motive), responded_at=$5
        WHERE id=$1 AND status='PENDIENTE'
        RETURNING ` + areaChangeColumns
	const lockTicket = `SELECT assigned_area_id, assigned_operator_id FROM tickets WHERE id=$1 FOR UPDATE`
	const moveTicket = `
        UPDATE tickets SET assigned_area_id=$2, assigned_operator_id=NULL, updated_at=NOW()
        WHERE id=$1 AND assigned_area_id=$3`

	var resolved *domain.AreaChangeRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		req, err := scanAreaChange(tx.QueryRow(ctx, resolve, res.RequestID, res.Status, res.ApproverID, res.Motive, res.RespondedAt))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConditionFailed
		}
		if err != nil {
			return err
		}
		resolved = req
		if !res.MoveTicket || req.Status != domain.AreaChangeApproved {
			return nil
		}

		var oldArea int64
		var oldOperator *int64
		if err := tx.QueryRow(ctx, lockTicket, req.TicketID).Scan(&oldArea, &oldOperator); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, moveTicket, req.TicketID, req.DestinationAreaID, req.OriginAreaID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			// The ticket left the origin area; the status change rolls back too.
			return ErrConditionFailed
		}
		return insertHistory(ctx, tx, &domain.TicketHistory{
			TicketID:   req.TicketID,
			ActorID:    &res.ApproverID,
			ChangeType: domain.ChangeTypeArea,
			OldValue:   map[string]any{"assigned_area_id": oldArea, "assigned_operator_id": oldOperator},
			NewValue: map[string]any{
				"assigned_area_id":       req.DestinationAreaID,
				"assigned_operator_id":   nil,
				"area_change_request_id": req.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *areaChangeRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM area_change_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAreaChange(row pgx.Row) (*domain.AreaChangeRequest, error) {
	var req domain.AreaChangeRequest
	if err := row.Scan(
		&req.ID,
		&req.TicketID,
		&req.RequesterID,
		&req.ApproverID,
		&req.OriginAreaID,
		&req.DestinationAreaID,
		&req.Motive,
		&req.Status,
		&req.RequestedAt,
		&req.RespondedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
