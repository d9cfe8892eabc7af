package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/prostokit/excursions/pkg/errors"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.True(t, strings.HasPrefix(hash, "$2"), "expected bcrypt record, got %q", hash)
	assert.NotContains(t, hash, "correct horse battery staple")
}

func TestHashPassword_ByteLimit(t *testing.T) {
	// 40 two-byte runes: 40 characters but 80 bytes, past bcrypt's 72-byte cap.
	long := strings.Repeat("ü", 40)

	_, err := HashPassword(long)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	// Exactly at the limit still hashes.
	hash, err := HashPassword(strings.Repeat("a", 72))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := HashPassword("secret123")
	require.NoError(t, err)

	second, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		record   string
		password string
		want     bool
	}{
		{
			name:     "matching password",
			record:   hash,
			password: "secret123",
			want:     true,
		},
		{
			name:     "wrong password",
			record:   hash,
			password: "secret124",
			want:     false,
		},
		{
			name:     "empty password",
			record:   hash,
			password: "",
			want:     false,
		},
		{
			name:     "malformed record",
			record:   "not-a-bcrypt-record",
			password: "secret123",
			want:     false,
		},
		{
			name:     "empty record",
			record:   "",
			password: "secret123",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.record, tt.password))
		})
	}
}
