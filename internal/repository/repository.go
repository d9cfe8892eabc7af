package repository

import (
	"context"
	"errors"

	"github.com/prostokit/excursions/internal/domain"
)

// ErrTokenNotActive is returned by refresh token lookups and rotations when
// no active row matches the presented token. Unknown, expired, revoked and
// already-rotated tokens are all reported through this one error so callers
// cannot tell the cases apart.
var ErrTokenNotActive = errors.New("refresh token not active")

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RoleRepository manages the role reference table.
type RoleRepository interface {
	// Ensure makes the named role exist, creating it if missing. It is
	// idempotent and safe to call concurrently.
	Ensure(ctx context.Context, role domain.Role) error
}

// RefreshTokenRepository persists refresh token records. Repositories only
// ever see token digests, never raw token values.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error

	// FindActive returns the token record matching the digest if it is
	// unrevoked and unexpired, otherwise ErrTokenNotActive.
	FindActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks the token revoked regardless of its current state: active,
	// expired and already-revoked rows are all accepted, and an earlier
	// revocation time is preserved. Only an unknown digest yields
	// ErrTokenNotActive. The revoked record is returned.
	Revoke(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Rotate atomically revokes the token matching oldHash and persists next
	// in its place, in one transaction. When the old token is not active the
	// rotation fails with ErrTokenNotActive and nothing is written; under
	// concurrent rotation of the same token at most one call succeeds.
	Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error)
}
