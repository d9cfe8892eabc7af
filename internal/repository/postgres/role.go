package postgres

import (
	"context"

	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/repository"
	"github.com/prostokit/excursions/pkg/database"
	apperrors "github.com/prostokit/excursions/pkg/errors"
)

// RoleRepository is a PostgreSQL implementation of repository.RoleRepository.
type RoleRepository struct {
	db database.DBTX
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db database.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

var _ repository.RoleRepository = (*RoleRepository)(nil)

// Ensure makes the role row exist. ON CONFLICT DO NOTHING makes it safe to
// call on every startup and from concurrent instances.
func (r *RoleRepository) Ensure(ctx context.Context, role domain.Role) error {
	query := `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, string(role)); err != nil {
		return apperrors.Wrap(err, "ensure role")
	}

	return nil
}
