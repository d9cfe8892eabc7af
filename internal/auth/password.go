package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/prostokit/excursions/pkg/errors"
)

// bcryptCost is the work factor for password hashing. bcrypt embeds a fresh
// random salt and the cost in every hash record, so verification needs no
// parameters beyond the record itself.
const bcryptCost = 12

// maxPasswordBytes is bcrypt's input limit. It counts bytes, not runes, so a
// short multibyte password can still exceed it.
const maxPasswordBytes = 72

// HashPassword derives a salted one-way hash of the password. Two calls with
// the same password produce different records. Passwords over bcrypt's
// 72-byte limit are rejected as invalid input rather than silently truncated.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash record.
// A malformed or truncated record verifies as false, never as an error: a
// corrupt hash is indistinguishable from a wrong password to the caller.
func CheckPassword(hashRecord, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashRecord), []byte(password)) == nil
}
