package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// ReleaseRepository persists release records and performs the release itself.
type ReleaseRepository interface {
	// Release clears the ticket's operator, guarded by the operator still being
	// release.OperatorID, and inserts the release record in one transaction. It
	// returns ErrConditionFailed when the guard does not hold.
	Release(ctx context.Context, release *domain.Release) error
	GetByID(ctx context.Context, id int64) (*domain.Release, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Release, error)
	ListAll(ctx context.Context) ([]domain.Release, error)
	Delete(ctx context.Context, id int64) error
}

type releaseRepository struct {
	pool *pgxpool.Pool
}

// NewReleaseRepository builds repository.
func NewReleaseRepository(pool *pgxpool.Pool) ReleaseRepository {
	return &releaseRepository{pool: pool}
}

func (r *releaseRepository) Release(ctx context.Context, release *domain.Release) error {
	const unassign = `
        UPDATE tickets SET assigned_operator_id=NULL, updated_at=NOW()
        WHERE id=$1 AND assigned_operator_id=$2`
	const insert = `
        INSERT INTO releases (ticket_id, operator_id, comment)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, unassign, release.TicketID, release.OperatorID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrConditionFailed
		}
		if err := tx.QueryRow(ctx, insert, release.TicketID, release.OperatorID, release.Comment).
			Scan(&release.ID, &release.CreatedAt); err != nil {
			return err
		}
		return insertHistory(ctx, tx, &domain.TicketHistory{
			TicketID:   release.TicketID,
			ActorID:    &release.OperatorID,
			ChangeType: domain.ChangeTypeRelease,
			OldValue:   map[string]any{"assigned_operator_id": release.OperatorID},
			NewValue:   map[string]any{"assigned_operator_id": nil, "release_id": release.ID},
		})
	})
}

func (r *releaseRepository) GetByID(ctx context.Context, id int64) (*domain.Release, error) {
	const query = `SELECT id, ticket_id, operator_id, comment, created_at FROM releases WHERE id=$1`
	var release domain.Release
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&release.ID,
		&release.TicketID,
		&release.OperatorID,
		&release.Comment,
		&release.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *releaseRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Release, error) {
	const query = `
        SELECT id, ticket_id, operator_id, comment, created_at
        FROM releases WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, ticketID)
}

func (r *releaseRepository) ListAll(ctx context.Context) ([]domain.Release, error) {
	const query = `
        SELECT id, ticket_id, operator_id, comment, created_at
        FROM releases ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *releaseRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM releases WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *releaseRepository) list(ctx context.Context, query string, args ...any) ([]domain.Release, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Release
	for rows.Next() {
		var release domain.Release
		if err := rows.Scan(
			&release.ID,
			&release.TicketID,
			&release.OperatorID,
			&release.Comment,
			&release.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, release)
	}
	return result, rows.Err()
}
