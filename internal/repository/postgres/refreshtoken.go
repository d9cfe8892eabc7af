package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/repository"
	"github.com/prostokit/excursions/pkg/database"
	apperrors "github.com/prostokit/excursions/pkg/errors"
)

// RefreshTokenRepository is a PostgreSQL implementation of
// repository.RefreshTokenRepository.
type RefreshTokenRepository struct {
	db database.DBTX
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

var _ repository.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

// Create inserts a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "insert refresh token")
	}

	return nil
}

// FindActive fetches the token record for the digest if the token is still
// usable. Missing, revoked and expired rows all come back as
// repository.ErrTokenNotActive.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`

	var token domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash, time.Now().UTC()).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrTokenNotActive
		}
		return nil, apperrors.Wrap(err, "find refresh token")
	}

	return &token, nil
}

// Revoke marks the token revoked whatever its current state. COALESCE keeps
// the original revocation time when the token was already revoked, so Revoke
// is idempotent, and expired rows are updated like any other.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = COALESCE(revoked_at, $1)
		WHERE token_hash = $2
		RETURNING id, user_id, token_hash, expires_at, created_at, revoked_at`

	var token domain.RefreshToken
	err := r.db.QueryRow(ctx, query, time.Now().UTC(), tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrTokenNotActive
		}
		return nil, apperrors.Wrap(err, "revoke refresh token")
	}

	return &token, nil
}

// Rotate revokes the active token matching oldHash and inserts next, both in
// one transaction. The conditional UPDATE acts as a compare-and-swap: of two
// concurrent rotations of the same token, the second finds zero active rows
// and fails without writing anything.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "begin rotation")
	}
	defer tx.Rollback(ctx)

	revoke := `
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL AND expires_at > $1
		RETURNING user_id`

	now := time.Now().UTC()

	var userID string
	if err := tx.QueryRow(ctx, revoke, now, oldHash).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrTokenNotActive
		}
		return nil, apperrors.Wrap(err, "revoke rotated token")
	}

	insert := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	next.UserID = userID
	if _, err := tx.Exec(ctx, insert,
		next.ID,
		next.UserID,
		next.TokenHash,
		next.ExpiresAt,
		next.CreatedAt,
	); err != nil {
		return nil, apperrors.Wrap(err, "insert successor token")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Wrap(err, "commit rotation")
	}

	return next, nil
}
