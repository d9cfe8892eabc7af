package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/prostokit/excursions/pkg/errors"
)

const issuer = "excursions-backend"

// Codec mints and verifies short-lived HS256 access tokens. A token is a
// self-contained assertion of (subject, expiry); it carries no other server
// state and cannot be revoked before its natural expiry.
type Codec struct {
	secret    []byte
	accessTTL time.Duration
}

// NewCodec creates an access token codec with the given signing secret and
// token lifetime.
func NewCodec(secret string, accessTTL time.Duration) *Codec {
	return &Codec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// Mint produces a signed access token for the given subject, expiring
// accessTTL from now.
func (c *Codec) Mint(subjectID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperrors.Wrap(err, "sign access token")
	}

	return signed, nil
}

// Verify checks the token signature and expiry and returns the subject.
// The accepted algorithm is fixed to HS256 and never read from the token
// header. All failure modes (bad signature, malformed payload, expiry)
// collapse into the same INVALID_TOKEN error.
func (c *Codec) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", apperrors.InvalidToken()
	}

	return claims.Subject, nil
}
