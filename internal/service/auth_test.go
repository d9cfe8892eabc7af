package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prostokit/excursions/internal/auth"
	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/event"
	"github.com/prostokit/excursions/internal/repository"
	apperrors "github.com/prostokit/excursions/pkg/errors"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockRoleRepo struct {
	mock.Mock
}

func (m *mockRoleRepo) Ensure(ctx context.Context, role domain.Role) error {
	return m.Called(ctx, role).Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockTokenRepo) FindActive(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) Revoke(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	args := m.Called(ctx, oldHash, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCodec() *auth.Codec {
	return auth.NewCodec("unit-test-secret-that-is-long-enough", 15*time.Minute)
}

func newTestService(users *mockUserRepo, roles *mockRoleRepo, tokens *mockTokenRepo) *SessionService {
	return NewSessionService(users, roles, tokens, testCodec(), 7*24*time.Hour, event.NoopPublisher{}, testLogger())
}

func TestSessionService_Register(t *testing.T) {
	users := new(mockUserRepo)
	roles := new(mockRoleRepo)
	tokens := new(mockTokenRepo)
	svc := newTestService(users, roles, tokens)

	roles.On("Ensure", mock.Anything, domain.RoleParent).Return(nil)
	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	tokens.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	user, pair, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  Parent@School.Example ",
		Password: "secret123",
		Role:     "parent",
	})
	require.NoError(t, err)

	assert.Equal(t, "parent@school.example", user.Email)
	assert.Equal(t, domain.RoleParent, user.Role)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "secret123"))
	assert.NotEqual(t, "secret123", user.PasswordHash)

	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.RefreshToken)

	subject, err := testCodec().Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)

	users.AssertExpectations(t)
	roles.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestSessionService_Register_UnknownRole(t *testing.T) {
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), new(mockTokenRepo))

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "parent@school.example",
		Password: "secret123",
		Role:     "superuser",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestSessionService_Register_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepo)
	roles := new(mockRoleRepo)
	svc := newTestService(users, roles, new(mockTokenRepo))

	roles.On("Ensure", mock.Anything, domain.RoleTeacher).Return(nil)
	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "teacher@school.example"))

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "teacher@school.example",
		Password: "secret123",
		Role:     "teacher",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

func TestSessionService_Login(t *testing.T) {
	users := new(mockUserRepo)
	tokens := new(mockTokenRepo)
	svc := newTestService(users, new(mockRoleRepo), tokens)

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	stored := &domain.User{
		ID:           uuid.New().String(),
		Email:        "teacher@school.example",
		PasswordHash: hash,
		Role:         domain.RoleTeacher,
		CreatedAt:    time.Now().UTC(),
	}

	users.On("GetByEmail", mock.Anything, "teacher@school.example").Return(stored, nil)
	tokens.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	user, pair, err := svc.Login(context.Background(), "teacher@school.example", "secret123")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestSessionService_Login_FailuresIndistinguishable(t *testing.T) {
	users := new(mockUserRepo)
	svc := newTestService(users, new(mockRoleRepo), new(mockTokenRepo))

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	stored := &domain.User{
		ID:           uuid.New().String(),
		Email:        "known@school.example",
		PasswordHash: hash,
		Role:         domain.RoleParent,
	}

	users.On("GetByEmail", mock.Anything, "known@school.example").Return(stored, nil)
	users.On("GetByEmail", mock.Anything, "unknown@school.example").
		Return(nil, apperrors.NotFound("user", "unknown@school.example"))

	_, _, wrongPassword := svc.Login(context.Background(), "known@school.example", "wrong")
	_, _, unknownEmail := svc.Login(context.Background(), "unknown@school.example", "secret123")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.True(t, errors.Is(wrongPassword, apperrors.ErrInvalidCredentials))
	assert.True(t, errors.Is(unknownEmail, apperrors.ErrInvalidCredentials))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestSessionService_Login_StorageError(t *testing.T) {
	users := new(mockUserRepo)
	svc := newTestService(users, new(mockRoleRepo), new(mockTokenRepo))

	users.On("GetByEmail", mock.Anything, "teacher@school.example").
		Return(nil, errors.New("connection refused"))

	_, _, err := svc.Login(context.Background(), "teacher@school.example", "secret123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestSessionService_Refresh(t *testing.T) {
	tokens := new(mockTokenRepo)
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), tokens)

	userID := uuid.New().String()
	oldToken, err := auth.NewOpaqueToken()
	require.NoError(t, err)

	tokens.On("Rotate", mock.Anything, auth.HashToken(oldToken), mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*domain.RefreshToken).UserID = userID
		}).
		Return(&domain.RefreshToken{UserID: userID}, nil).
		Once()

	pair, err := svc.Refresh(context.Background(), oldToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, oldToken, pair.RefreshToken)

	subject, err := testCodec().Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, subject)
}

func TestSessionService_Refresh_NotActive(t *testing.T) {
	tokens := new(mockTokenRepo)
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), tokens)

	tokens.On("Rotate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrTokenNotActive)

	_, err := svc.Refresh(context.Background(), "some-spent-or-forged-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestSessionService_Logout(t *testing.T) {
	tokens := new(mockTokenRepo)
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), tokens)

	token, err := auth.NewOpaqueToken()
	require.NoError(t, err)
	hash := auth.HashToken(token)

	tokens.On("Revoke", mock.Anything, hash).
		Return(&domain.RefreshToken{UserID: uuid.New().String(), TokenHash: hash}, nil)

	require.NoError(t, svc.Logout(context.Background(), token))
	tokens.AssertExpectations(t)
}

func TestSessionService_Logout_UnknownToken(t *testing.T) {
	tokens := new(mockTokenRepo)
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), tokens)

	tokens.On("Revoke", mock.Anything, mock.Anything).
		Return(nil, repository.ErrTokenNotActive)

	err := svc.Logout(context.Background(), "never-issued")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestSessionService_Logout_ExpiredToken(t *testing.T) {
	store := newMemoryTokenRepo()
	svc := NewSessionService(new(mockUserRepo), new(mockRoleRepo), store, testCodec(), time.Hour, event.NoopPublisher{}, testLogger())

	token, err := auth.NewOpaqueToken()
	require.NoError(t, err)

	require.NoError(t, store.Create(context.Background(), &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    uuid.New().String(),
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	// A known token is revoked whatever its state; repeating is a no-op.
	require.NoError(t, svc.Logout(context.Background(), token))
	require.NoError(t, svc.Logout(context.Background(), token))
}

func TestSessionService_ResolvePrincipal(t *testing.T) {
	users := new(mockUserRepo)
	svc := newTestService(users, new(mockRoleRepo), new(mockTokenRepo))

	stored := &domain.User{
		ID:    uuid.New().String(),
		Email: "admin@school.example",
		Role:  domain.RoleAdmin,
	}

	access, err := testCodec().Mint(stored.ID)
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)

	user, err := svc.ResolvePrincipal(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestSessionService_ResolvePrincipal_DeletedUser(t *testing.T) {
	users := new(mockUserRepo)
	svc := newTestService(users, new(mockRoleRepo), new(mockTokenRepo))

	deletedID := uuid.New().String()
	access, err := testCodec().Mint(deletedID)
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, deletedID).
		Return(nil, apperrors.NotFound("user", deletedID))

	_, err = svc.ResolvePrincipal(context.Background(), access)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestSessionService_ResolvePrincipal_BadToken(t *testing.T) {
	svc := newTestService(new(mockUserRepo), new(mockRoleRepo), new(mockTokenRepo))

	_, err := svc.ResolvePrincipal(context.Background(), "not.a.token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

// memoryTokenRepo is a mutex-guarded in-memory store whose Rotate has the
// same compare-and-swap semantics as the SQL implementation. It exists to
// exercise concurrent rotation without a database.
type memoryTokenRepo struct {
	mu      sync.Mutex
	records map[string]*domain.RefreshToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{records: make(map[string]*domain.RefreshToken)}
}

func (m *memoryTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[token.TokenHash] = token
	return nil
}

func (m *memoryTokenRepo) FindActive(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[tokenHash]
	if !ok || !rec.Active(time.Now().UTC()) {
		return nil, repository.ErrTokenNotActive
	}
	return rec, nil
}

func (m *memoryTokenRepo) Revoke(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[tokenHash]
	if !ok {
		return nil, repository.ErrTokenNotActive
	}
	if rec.RevokedAt == nil {
		now := time.Now().UTC()
		rec.RevokedAt = &now
	}
	return rec, nil
}

func (m *memoryTokenRepo) Rotate(_ context.Context, oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := m.records[oldHash]
	if !ok || !rec.Active(now) {
		return nil, repository.ErrTokenNotActive
	}

	rec.RevokedAt = &now
	next.UserID = rec.UserID
	m.records[next.TokenHash] = next
	return next, nil
}

func TestSessionService_Refresh_ExpiredToken(t *testing.T) {
	store := newMemoryTokenRepo()
	svc := NewSessionService(new(mockUserRepo), new(mockRoleRepo), store, testCodec(), time.Hour, event.NoopPublisher{}, testLogger())

	token, err := auth.NewOpaqueToken()
	require.NoError(t, err)

	// Known, unrevoked, but past its expiry. Rotation must treat it exactly
	// like a revoked or unknown token.
	require.NoError(t, store.Create(context.Background(), &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    uuid.New().String(),
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	_, err = svc.Refresh(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestSessionService_Refresh_ConcurrentRotation(t *testing.T) {
	store := newMemoryTokenRepo()
	svc := NewSessionService(new(mockUserRepo), new(mockRoleRepo), store, testCodec(), time.Hour, event.NoopPublisher{}, testLogger())

	token, err := auth.NewOpaqueToken()
	require.NoError(t, err)

	userID := uuid.New().String()
	require.NoError(t, store.Create(context.Background(), &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		CreatedAt: time.Now().UTC(),
	}))

	const rotations = 8
	results := make(chan error, rotations)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < rotations; i++ {
		go func() {
			start.Wait()
			_, err := svc.Refresh(context.Background(), token)
			results <- err
		}()
	}
	start.Done()

	var succeeded, rejected int
	for i := 0; i < rotations; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInvalidToken):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one rotation must win")
	assert.Equal(t, rotations-1, rejected)
}
