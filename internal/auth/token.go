package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	apperrors "github.com/prostokit/excursions/pkg/errors"
)

// refreshTokenBytes is the entropy of an opaque refresh token. 32 bytes of
// CSPRNG output makes tokens infeasible to guess or brute-force online.
const refreshTokenBytes = 32

// NewOpaqueToken generates a new random refresh token in URL-safe base64.
// The raw value is returned to the client exactly once and never stored.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Wrap(err, "generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest of a refresh token. Only digests
// are persisted, so a leaked token table cannot be replayed as-is.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
