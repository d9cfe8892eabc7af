package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/pkg/database"
)

func TestRoleRepository_Ensure(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRoleRepository(mock)

	mock.ExpectExec("INSERT INTO roles").
		WithArgs("admin").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Ensure(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_Ensure_AlreadyPresent(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRoleRepository(mock)

	// Conflicting insert affects zero rows; Ensure still succeeds.
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("parent").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = repo.Ensure(context.Background(), domain.RoleParent)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
