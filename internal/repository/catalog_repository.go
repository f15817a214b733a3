package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// CategoryRepository reads ticket categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
}

// StateRepository reads lifecycle state rows.
type StateRepository interface {
	GetByName(ctx context.Context, name string) (*domain.State, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	const query = `
        SELECT id, name, priority, sla_hours, default_area_id
        FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Priority,
		&category.SLAHours,
		&category.DefaultAreaID,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

type stateRepository struct {
	pool *pgxpool.Pool
}

// NewStateRepository builds the repository.
func NewStateRepository(pool *pgxpool.Pool) StateRepository {
	return &stateRepository{pool: pool}
}

func (r *stateRepository) GetByName(ctx context.Context, name string) (*domain.State, error) {
	var state domain.State
	if err := r.pool.QueryRow(ctx, `SELECT id, name FROM states WHERE name=$1`, name).Scan(&state.ID, &state.Name); err != nil {
		return nil, err
	}
	return &state, nil
}
