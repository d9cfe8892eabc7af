package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prostokit/excursions/internal/auth"
	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/event"
	"github.com/prostokit/excursions/internal/repository"
	apperrors "github.com/prostokit/excursions/pkg/errors"
)

// SessionService implements the credential and session lifecycle: account
// registration, login, refresh token rotation and logout.
type SessionService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	tokens     repository.RefreshTokenRepository
	codec      *auth.Codec
	refreshTTL time.Duration
	events     event.Publisher
	logger     *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	tokens repository.RefreshTokenRepository,
	codec *auth.Codec,
	refreshTTL time.Duration,
	events event.Publisher,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		users:      users,
		roles:      roles,
		tokens:     tokens,
		codec:      codec,
		refreshTTL: refreshTTL,
		events:     events,
		logger:     logger,
	}
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Role     string
}

// Register creates a user account and opens its first session. The email is
// normalized to lower case before storage so lookups and the uniqueness
// constraint agree on identity.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.roles.Ensure(ctx, role); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)
	s.events.UserRegistered(ctx, user)

	return user, pair, nil
}

// Login verifies credentials and opens a new session. Unknown email and
// wrong password produce the identical error, so the endpoint cannot be used
// to probe for registered addresses.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, apperrors.InvalidCredentials()
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return user, pair, nil
}

// Refresh exchanges a refresh token for a fresh token pair, retiring the
// presented token in the same transaction. A token can be exchanged exactly
// once: a replay, whether from an attacker or a retrying client, gets
// INVALID_TOKEN.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	opaque, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := &domain.RefreshToken{
		ID:        uuid.New().String(),
		TokenHash: auth.HashToken(opaque),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	rotated, err := s.tokens.Rotate(ctx, auth.HashToken(refreshToken), next)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			return nil, apperrors.InvalidToken()
		}
		return nil, err
	}

	access, err := s.codec.Mint(rotated.UserID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session refreshed", slog.String("user_id", rotated.UserID))

	return &domain.TokenPair{AccessToken: access, RefreshToken: opaque}, nil
}

// Logout revokes the presented refresh token, closing the session. A known
// token is revoked unconditionally, whether active, expired or already
// revoked; only a token that was never issued fails. Access tokens already
// minted stay valid until their short expiry.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.tokens.Revoke(ctx, auth.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			return apperrors.InvalidToken()
		}
		return err
	}

	s.logger.InfoContext(ctx, "session revoked", slog.String("user_id", record.UserID))
	s.events.SessionRevoked(ctx, record.UserID)

	return nil
}

// GetUser fetches a user by id.
func (s *SessionService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// ResolvePrincipal verifies an access token and loads the current user it
// names. The user is re-read from storage on every call: a token minted for
// a since-deleted account resolves to INVALID_TOKEN, and role checks always
// see the stored role rather than anything carried in the token.
func (s *SessionService) ResolvePrincipal(ctx context.Context, accessToken string) (*domain.User, error) {
	subject, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, err
	}

	return user, nil
}

func (s *SessionService) issueTokenPair(ctx context.Context, userID string) (*domain.TokenPair, error) {
	access, err := s.codec.Mint(userID)
	if err != nil {
		return nil, err
	}

	opaque, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: auth.HashToken(opaque),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: opaque}, nil
}
