package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-router/internal/domain"
)

// PermissionRepository resolves the capabilities granted to a role.
type PermissionRepository interface {
	CapabilitiesForRole(ctx context.Context, roleID int64) ([]domain.Capability, error)
}

type permissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository builds the repository.
func NewPermissionRepository(pool *pgxpool.Pool) PermissionRepository {
	return &permissionRepository{pool: pool}
}

func (r *permissionRepository) CapabilitiesForRole(ctx context.Context, roleID int64) ([]domain.Capability, error) {
	const query = `
        SELECT p.name FROM role_permissions rp
        JOIN permissions p ON p.id = rp.permission_id
        WHERE rp.role_id=$1`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Capability
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, domain.Capability(name))
	}
	return result, rows.Err()
}
