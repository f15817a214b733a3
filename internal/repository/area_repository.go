package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// AreaRepository reads operational areas from the reference catalog.
type AreaRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Area, error)
}

type areaRepository struct {
	pool *pgxpool.Pool
}

// NewAreaRepository builds the repository.
func NewAreaRepository(pool *pgxpool.Pool) AreaRepository {
	return &areaRepository{pool: pool}
}

func (r *areaRepository) GetByID(ctx context.Context, id int64) (*domain.Area, error) {
	const query = `SELECT id, name, description FROM areas WHERE id=$1`
	var area domain.Area
	if err := r.pool.QueryRow(ctx, query, id).Scan(&area.ID, &area.Name, &area.Description); err != nil {
		return nil, err
	}
	return &area, nil
}
