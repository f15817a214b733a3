package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// ActorRepository reads the actor directory.
type ActorRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Actor, error)
}

type actorRepository struct {
	pool *pgxpool.Pool
}

// NewActorRepository instantiates the repository.
func NewActorRepository(pool *pgxpool.Pool) ActorRepository {
	return &actorRepository{pool: pool}
}

func (r *actorRepository) GetByID(ctx context.Context, id int64) (*domain.Actor, error) {
	const query = `
        SELECT id, name, email, role_id, area_id, active, created_at
        FROM actors WHERE id=$1`

	var actor domain.Actor
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&actor.ID,
		&actor.Name,
		&actor.Email,
		&actor.RoleID,
		&actor.AreaID,
		&actor.Active,
		&actor.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &actor, nil
}
